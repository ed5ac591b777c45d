//go:build ocr

package analyzer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// tesseractRecognizer wraps one gosseract client. The client is not safe for
// concurrent use, so calls are serialized.
type tesseractRecognizer struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewTextRecognizer returns the Tesseract-backed recognizer
func NewTextRecognizer(language string) (TextRecognizer, error) {
	client := gosseract.NewClient()
	if language == "" {
		language = "eng"
	}
	if err := client.SetLanguage(language); err != nil {
		client.Close()
		return nil, fmt.Errorf("set OCR language: %w", err)
	}
	return &tesseractRecognizer{client: client}, nil
}

func (r *tesseractRecognizer) Recognize(ctx context.Context, payload []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.client.SetImageFromBytes(payload); err != nil {
		return "", fmt.Errorf("load image for OCR: %w", err)
	}
	text, err := r.client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR text extraction: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func (r *tesseractRecognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client.Close()
}
