package analyzer

import (
	"context"
	"image"
)

// Classifier scores an image for adult content. Scores are in 0..1.
type Classifier interface {
	Classify(ctx context.Context, img image.Image) (float64, error)
}

// TextRecognizer extracts text rendered into the pixels (OCR)
type TextRecognizer interface {
	Recognize(ctx context.Context, payload []byte) (string, error)
	Close() error
}

// MetricsCalculator handles pixel statistics
type MetricsCalculator interface {
	CalculateBasicMetrics(img image.Image) metrics
}
