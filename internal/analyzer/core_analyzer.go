// Package analyzer is the reference pixel analyzer plugged into the
// scheduler. Fast mode runs the skin-tone heuristic and the perceptual hash
// blocklist; full mode adds the optional CNN classifier and OCR.
package analyzer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"sync"
	"time"

	"go-image-moderation/internal/logger"
	"go-image-moderation/pkg/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// maxPixels guards against decompression bombs
const maxPixels = 64 << 20

// ErrImageTooLarge is returned for images above the pixel limit
var ErrImageTooLarge = errors.New("image exceeds the pixel limit")

// Settings is the hot-reloadable part of the analyzer configuration
type Settings struct {
	Thresholds    Thresholds
	BlockedHashes []string
}

// Option customizes an Analyzer
type Option func(*Analyzer)

// WithClassifier plugs in a CNN classifier used in full mode
func WithClassifier(c Classifier) Option {
	return func(a *Analyzer) {
		a.classifier = c
	}
}

// WithTextRecognizer plugs in an OCR backend used in full mode
func WithTextRecognizer(r TextRecognizer) Option {
	return func(a *Analyzer) {
		a.recognizer = r
	}
}

// WithWorkerPool replaces the pool pixel metrics run on
func WithWorkerPool(pool *WorkerPool) Option {
	return func(a *Analyzer) {
		a.pool = pool
	}
}

// Analyzer implements scheduler.Analyzer
type Analyzer struct {
	pool       *WorkerPool
	metrics    MetricsCalculator
	classifier Classifier
	recognizer TextRecognizer
	log        *logrus.Entry

	mu         sync.RWMutex
	thresholds Thresholds
	blocklist  *Blocklist
}

// New creates an analyzer with default thresholds and an empty blocklist
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		log:        logger.WithComponent("analyzer"),
		thresholds: DefaultThresholds(),
		blocklist:  &Blocklist{},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.pool == nil {
		a.pool = NewWorkerPool(0)
	}
	a.pool.Start()
	a.metrics = NewMetricsCalculator(a.pool)
	return a
}

// UpdateSettings swaps thresholds and the blocklist. The previous settings
// stay active when a blocked hash does not parse.
func (a *Analyzer) UpdateSettings(s Settings) error {
	blocklist, err := NewBlocklist(s.BlockedHashes)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.thresholds = s.Thresholds
	a.blocklist = blocklist
	a.mu.Unlock()

	a.log.WithFields(logrus.Fields{
		"skin_ratio":     s.Thresholds.SkinRatio,
		"nsfw":           s.Thresholds.NSFW,
		"hash_distance":  s.Thresholds.HashDistance,
		"blocked_hashes": blocklist.Len(),
	}).Info("Analyzer settings updated")
	return nil
}

// Thresholds returns the active thresholds
func (a *Analyzer) Thresholds() Thresholds {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.thresholds
}

// Analyze decodes payload and analyzes it in the given mode
func (a *Analyzer) Analyze(ctx context.Context, payload []byte, mode models.AnalysisMode) (*models.AnalysisResult, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width*cfg.Height > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	opts := OptionsForMode(mode).WithThresholds(a.Thresholds())
	return a.AnalyzeImage(ctx, img, payload, opts), nil
}

// AnalyzeImage runs the analysis on a decoded image. payload is the encoded
// form handed to OCR and may be nil.
func (a *Analyzer) AnalyzeImage(ctx context.Context, img image.Image, payload []byte, opts AnalysisOptions) *AnalysisResult {
	start := time.Now()
	bounds := img.Bounds()

	result := &AnalysisResult{
		Mode:      opts.Mode,
		Timestamp: start,
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
	}

	m := a.metrics.CalculateBasicMetrics(downscale(img, opts.MaxDimension))
	result.Scores.SkinRatio = m.skinRatio
	skinFlag := opts.Thresholds.SkinRatio > 0 && m.skinRatio >= opts.Thresholds.SkinRatio

	if !opts.SkipHash {
		a.matchBlocklist(img, opts.Thresholds.HashDistance, result)
	}

	nsfwFlag := false
	if !opts.SkipClassifier && a.classifier != nil {
		score, err := a.classifier.Classify(ctx, img)
		if err != nil {
			a.log.WithError(err).Warn("Classifier failed, using heuristics only")
			result.Errors = append(result.Errors, fmt.Sprintf("classifier: %v", err))
		} else {
			result.Scores.NSFW = &score
			nsfwFlag = opts.Thresholds.NSFW > 0 && score >= opts.Thresholds.NSFW
		}
	}

	if !opts.SkipOCR && a.recognizer != nil && len(payload) > 0 {
		text, err := a.recognizer.Recognize(ctx, payload)
		if err != nil {
			a.log.WithError(err).Warn("OCR failed")
			result.Errors = append(result.Errors, fmt.Sprintf("ocr: %v", err))
		} else if text != "" {
			result.RenderedText = []string{text}
		}
	}

	// A classifier score supersedes the skin heuristic
	if result.Scores.NSFW != nil {
		result.IsAdult = nsfwFlag || result.KnownBadMatch
	} else {
		result.IsAdult = skinFlag || result.KnownBadMatch
	}

	result.ProcessingTimeSec = time.Since(start).Seconds()

	a.log.WithFields(logrus.Fields{
		"mode":        opts.Mode,
		"width":       result.Width,
		"height":      result.Height,
		"skin_ratio":  result.Scores.SkinRatio,
		"known_bad":   result.KnownBadMatch,
		"is_adult":    result.IsAdult,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Image analyzed")

	return result
}

func (a *Analyzer) matchBlocklist(img image.Image, maxDistance int, result *AnalysisResult) {
	hash, err := DifferenceHash(img)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("perceptual hash: %v", err))
		return
	}
	result.PerceptualHash = FormatHash(hash)

	a.mu.RLock()
	blocklist := a.blocklist
	a.mu.RUnlock()

	if dist, ok := blocklist.Match(hash, maxDistance); ok {
		result.KnownBadMatch = true
		a.log.WithFields(logrus.Fields{
			"hash":     result.PerceptualHash,
			"distance": dist,
		}).Warn("Image matches a blocked hash")
	}
}

// Close stops the worker pool and releases the OCR backend
func (a *Analyzer) Close() error {
	a.pool.Close()
	if a.recognizer != nil {
		return a.recognizer.Close()
	}
	return nil
}

// downscale shrinks img so its longer side is at most maxDim
func downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img
	}

	scale := float64(maxDim) / float64(max(w, h))
	nw := max(1, int(float64(w)*scale))
	nh := max(1, int(float64(h)*scale))

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}
