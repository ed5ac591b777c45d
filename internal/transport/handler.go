package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go-image-moderation/internal/config"
	apperrors "go-image-moderation/internal/errors"
	"go-image-moderation/internal/logger"
	"go-image-moderation/internal/service"
	"go-image-moderation/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// EventCounters exposes aggregated task event counts
type EventCounters interface {
	GetMetrics() map[string]interface{}
}

// NewHandler builds the HTTP router. events may be nil.
func NewHandler(svc service.ModerationService, events EventCounters, cfg *config.Config) http.Handler {
	r := gin.Default()

	// Add middleware
	r.Use(
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck)

	v1 := r.Group("/v1")
	v1.GET("/scheduler/metrics", schedulerMetrics(svc, events))
	v1.POST("/moderation/images", moderateImage(svc, cfg))
	v1.POST("/moderation/models", moderateModel(svc, cfg))

	return r
}

func moderateImage(svc service.ModerationService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		var req models.ImageModerationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}

		logger.WithFields(logrus.Fields{
			"path":      c.Request.URL.Path,
			"image_url": req.ImageURL,
			"inline":    len(req.Image) > 0,
			"priority":  req.Priority,
			"mode":      req.Mode,
			"ip":        c.ClientIP(),
		}).Debug("Processing image moderation request")

		resp, err := svc.ModerateImage(ctx, req)
		if err != nil {
			_ = c.Error(err)
			return
		}

		logger.WithFields(logrus.Fields{
			"processing_time_ms":  time.Since(startTime).Milliseconds(),
			"requires_moderation": resp.Decision.RequiresModeration,
			"is_adult":            resp.Decision.IsAdult,
		}).Info("Image moderation completed successfully")

		c.JSON(http.StatusOK, resp)
	}
}

func moderateModel(svc service.ModerationService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		var req models.ModelModerationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}

		resp, err := svc.ModerateModel(ctx, req)
		if err != nil {
			_ = c.Error(err)
			return
		}

		logger.WithFields(logrus.Fields{
			"processing_time_ms":  time.Since(startTime).Milliseconds(),
			"requires_moderation": resp.Decision.RequiresModeration,
			"is_adult":            resp.Decision.IsAdult,
		}).Info("Model moderation completed successfully")

		c.JSON(http.StatusOK, resp)
	}
}

func schedulerMetrics(svc service.ModerationService, events EventCounters) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{"scheduler": svc.SchedulerMetrics()}
		if events != nil {
			body["events"] = events.GetMetrics()
		}
		c.JSON(http.StatusOK, body)
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last().Err
			respondError(c, determineStatusCode(err), "request processing failed", err)
		}
	}
}

func determineStatusCode(err error) int {
	// Check if it's a custom app error first
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	// Fallback to context-based errors
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondBindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondError(c, http.StatusRequestEntityTooLarge, "request body too large", err)
		return
	}
	respondError(c, http.StatusBadRequest, "invalid request format", err)
}

func respondError(c *gin.Context, code int, message string, err error) {
	// Log the error with context
	entry := logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	})
	if code >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}
