package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go-image-moderation/internal/analyzer"
	apperrors "go-image-moderation/internal/errors"
	"go-image-moderation/internal/logger"
	"go-image-moderation/internal/moderation"
	"go-image-moderation/internal/scheduler"
	"go-image-moderation/internal/storage"
	"go-image-moderation/pkg/models"

	"github.com/sirupsen/logrus"
)

// ModerationService turns moderation requests into verdicts
type ModerationService interface {
	ModerateImage(ctx context.Context, req models.ImageModerationRequest) (*ImageModerationResponse, error)
	ModerateModel(ctx context.Context, req models.ModelModerationRequest) (*ModelModerationResponse, error)
	SchedulerMetrics() scheduler.Metrics
}

// Queue is the part of the scheduler the service depends on
type Queue interface {
	Enqueue(payload []byte, opts scheduler.EnqueueOptions) (*scheduler.Future, error)
	Metrics() scheduler.Metrics
}

// Evaluator fuses signals into a verdict
type Evaluator interface {
	EvaluateModel(ctx moderation.ModelContext) moderation.ModelDecision
	EvaluateImage(ctx moderation.ImageContext) moderation.ImageDecision
}

// ImageSource downloads an image by URL
type ImageSource interface {
	Fetch(ctx context.Context, imageURL string) ([]byte, error)
}

// Summarizer produces a computer-vision moderation summary. Failures are
// tolerated and treated as no summary.
type Summarizer interface {
	Summarize(ctx context.Context, payload []byte) (*models.ModerationSummary, error)
}

// ImageModerationResponse is the verdict for one image plus the signals behind it
type ImageModerationResponse struct {
	Decision     moderation.ImageDecision  `json:"decision"`
	Analysis     *models.AnalysisResult    `json:"analysis,omitempty"`
	Summary      *models.ModerationSummary `json:"summary,omitempty"`
	EmbeddedText []string                  `json:"embedded_text,omitempty"`
}

// ModelModerationResponse is the verdict for one model asset
type ModelModerationResponse struct {
	Decision        moderation.ModelDecision `json:"decision"`
	PreviewAnalysis *models.AnalysisResult   `json:"preview_analysis,omitempty"`
}

// Option customizes the service
type Option func(*moderationService)

// WithSummarizer plugs in a CV summary generator
func WithSummarizer(s Summarizer) Option {
	return func(m *moderationService) {
		m.summarizer = s
	}
}

// WithAnalysisTimeout bounds how long a request waits for its analysis.
// The queued task keeps running after the wait gives up.
func WithAnalysisTimeout(d time.Duration) Option {
	return func(m *moderationService) {
		m.analysisTimeout = d
	}
}

// WithTextExtractor replaces the embedded text extractor
func WithTextExtractor(extract func(payload []byte) []string) Option {
	return func(m *moderationService) {
		m.extractText = extract
	}
}

type moderationService struct {
	queue           Queue
	engine          Evaluator
	source          ImageSource
	summarizer      Summarizer
	extractText     func(payload []byte) []string
	analysisTimeout time.Duration
	log             *logrus.Entry
}

// NewModerationService creates a moderation service. source may be nil, in
// which case only inline images are accepted.
func NewModerationService(queue Queue, engine Evaluator, source ImageSource, opts ...Option) ModerationService {
	s := &moderationService{
		queue:       queue,
		engine:      engine,
		source:      source,
		extractText: analyzer.ExtractEmbeddedText,
		log:         logger.WithComponent("moderation-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ModerateImage analyzes the image, gathers every text signal and returns
// the fused verdict
func (s *moderationService) ModerateImage(ctx context.Context, req models.ImageModerationRequest) (*ImageModerationResponse, error) {
	if req.Mode != "" && !req.Mode.Valid() {
		return nil, apperrors.NewValidationError("mode must be fast or full", nil)
	}
	payload, err := s.resolveImage(ctx, req.Image, req.ImageURL, true)
	if err != nil {
		return nil, err
	}

	analysis, err := s.analyze(ctx, payload, scheduler.EnqueueOptions{
		Priority: scheduler.ParsePriority(req.Priority),
		Mode:     req.Mode,
	})
	if err != nil {
		return nil, err
	}

	summary := s.summarize(ctx, payload)
	embedded := s.extractText(payload)

	extra := make([]string, 0, len(req.ExtraTexts)+len(embedded)+len(analysis.RenderedText))
	extra = append(extra, req.ExtraTexts...)
	extra = append(extra, embedded...)
	extra = append(extra, analysis.RenderedText...)

	decision := s.engine.EvaluateImage(moderation.ImageContext{
		Title:          req.Title,
		Description:    req.Description,
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Model:          req.Model,
		Sampler:        req.Sampler,
		Tags:           req.Tags,
		Metadata:       rawBlobs(req.Metadata),
		AdultKeywords:  req.AdultKeywords,
		PriorAnalysis:  analysis,
		Summary:        summary,
		ExtraTexts:     extra,
	})

	s.log.WithFields(logrus.Fields{
		"task_id":             analysis.TaskID,
		"mode":                analysis.Mode,
		"is_adult":            decision.IsAdult,
		"requires_moderation": decision.RequiresModeration,
		"illegal_minor":       decision.IllegalMinor,
		"illegal_beast":       decision.IllegalBeast,
	}).Info("Image moderated")

	return &ImageModerationResponse{
		Decision:     decision,
		Analysis:     analysis,
		Summary:      summary,
		EmbeddedText: embedded,
	}, nil
}

// ModerateModel screens a model asset. The preview image, when given, is
// analyzed first and used as prior analysis.
func (s *moderationService) ModerateModel(ctx context.Context, req models.ModelModerationRequest) (*ModelModerationResponse, error) {
	payload, err := s.resolveImage(ctx, req.PreviewImage, req.PreviewImageURL, false)
	if err != nil {
		return nil, err
	}

	var prior *models.AnalysisResult
	if payload != nil {
		prior, err = s.analyze(ctx, payload, scheduler.EnqueueOptions{
			Priority: scheduler.ParsePriority(req.Priority),
		})
		if err != nil {
			return nil, err
		}
	}

	decision := s.engine.EvaluateModel(moderation.ModelContext{
		Title:         req.Title,
		Description:   req.Description,
		Trigger:       req.Trigger,
		Tags:          req.Tags,
		Metadata:      rawBlobs(req.Metadata),
		AdultKeywords: req.AdultKeywords,
		PriorAnalysis: prior,
	})

	s.log.WithFields(logrus.Fields{
		"is_adult":            decision.IsAdult,
		"requires_moderation": decision.RequiresModeration,
		"metadata_adult":      decision.MetadataAdult,
		"metadata_minor":      decision.MetadataMinor,
		"metadata_beast":      decision.MetadataBeast,
		"has_preview":         prior != nil,
	}).Info("Model moderated")

	return &ModelModerationResponse{
		Decision:        decision,
		PreviewAnalysis: prior,
	}, nil
}

func (s *moderationService) SchedulerMetrics() scheduler.Metrics {
	return s.queue.Metrics()
}

// resolveImage returns inline bytes or downloads imageURL. With required
// unset, no image at all yields a nil payload.
func (s *moderationService) resolveImage(ctx context.Context, inline []byte, imageURL string, required bool) ([]byte, error) {
	switch {
	case len(inline) > 0 && imageURL != "":
		return nil, apperrors.NewValidationError("provide either an inline image or an image URL, not both", nil)
	case len(inline) > 0:
		return inline, nil
	case imageURL == "":
		if required {
			return nil, apperrors.NewValidationError("image or image_url is required", nil)
		}
		return nil, nil
	case s.source == nil:
		return nil, apperrors.NewValidationError("image URLs are not accepted", storage.ErrUnsupportedSource)
	}

	payload, err := s.source.Fetch(ctx, imageURL)
	if err != nil {
		var appErr *apperrors.AppError
		switch {
		case errors.As(err, &appErr):
			return nil, appErr
		case errors.Is(err, storage.ErrImageTooLarge):
			return nil, apperrors.NewValidationError("image exceeds the size limit", err)
		case errors.Is(err, storage.ErrUnsupportedSource):
			return nil, apperrors.NewValidationError("unsupported image source", err)
		case errors.Is(err, context.DeadlineExceeded):
			return nil, apperrors.NewTimeoutError("image fetch timeout", err)
		default:
			return nil, apperrors.NewNetworkError("failed to fetch image", err)
		}
	}
	return payload, nil
}

// analyze enqueues payload and waits for the scheduler to settle it
func (s *moderationService) analyze(ctx context.Context, payload []byte, opts scheduler.EnqueueOptions) (*models.AnalysisResult, error) {
	future, err := s.queue.Enqueue(payload, opts)
	if err != nil {
		if errors.Is(err, scheduler.ErrOverloaded) {
			return nil, apperrors.NewOverloadError("analysis queue is full, retry later", err)
		}
		return nil, apperrors.NewInternalError("failed to enqueue analysis", err)
	}

	waitCtx := ctx
	if s.analysisTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.analysisTimeout)
		defer cancel()
	}

	result, err := future.Wait(waitCtx)
	switch {
	case err == nil && result == nil:
		return nil, apperrors.NewProcessingError("image analysis returned no result", nil)
	case err == nil:
		return result, nil
	case errors.Is(err, context.DeadlineExceeded):
		return nil, apperrors.NewTimeoutError("image analysis timeout", err)
	case errors.Is(err, context.Canceled):
		return nil, apperrors.NewTimeoutError("request cancelled while waiting for analysis", err)
	default:
		return nil, apperrors.NewProcessingError("image analysis failed", err)
	}
}

func (s *moderationService) summarize(ctx context.Context, payload []byte) *models.ModerationSummary {
	if s.summarizer == nil {
		return nil
	}
	summary, err := s.summarizer.Summarize(ctx, payload)
	if err != nil {
		s.log.WithError(err).Warn("Moderation summary unavailable, continuing without it")
		return nil
	}
	return summary
}

func rawBlobs(blobs []json.RawMessage) []any {
	if len(blobs) == 0 {
		return nil
	}
	out := make([]any, len(blobs))
	for i, blob := range blobs {
		out[i] = blob
	}
	return out
}
