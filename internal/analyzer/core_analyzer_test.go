package analyzer

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"go-image-moderation/pkg/models"
)

type fakeClassifier struct {
	score float64
	err   error
	calls int
}

func (c *fakeClassifier) Classify(ctx context.Context, img image.Image) (float64, error) {
	c.calls++
	return c.score, c.err
}

type fakeRecognizer struct {
	text   string
	err    error
	calls  int
	closed bool
}

func (r *fakeRecognizer) Recognize(ctx context.Context, payload []byte) (string, error) {
	r.calls++
	return r.text, r.err
}

func (r *fakeRecognizer) Close() error {
	r.closed = true
	return nil
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

func newTestAnalyzer(t *testing.T, opts ...Option) *Analyzer {
	t.Helper()
	a := New(append([]Option{WithWorkerPool(NewWorkerPool(2))}, opts...)...)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestAnalyze_SkinImageFastMode(t *testing.T) {
	a := newTestAnalyzer(t)

	result, err := a.Analyze(context.Background(), pngBytes(t, createTestImage(64, 48, skinTone)), models.ModeFast)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if result.Mode != models.ModeFast {
		t.Errorf("Expected mode fast, got %s", result.Mode)
	}
	if result.Width != 64 || result.Height != 48 {
		t.Errorf("Expected 64x48, got %dx%d", result.Width, result.Height)
	}
	if math.Abs(result.Scores.SkinRatio-1) > 1e-9 {
		t.Errorf("Expected skin ratio 1, got %f", result.Scores.SkinRatio)
	}
	if !result.IsAdult {
		t.Error("Expected skin-dominated image to be flagged")
	}
	if result.PerceptualHash == "" {
		t.Error("Expected perceptual hash to be set")
	}
	if result.Timestamp.IsZero() {
		t.Error("Expected timestamp to be set")
	}
}

func TestAnalyze_NeutralImage(t *testing.T) {
	a := newTestAnalyzer(t)

	result, err := a.Analyze(context.Background(), pngBytes(t, createGradientImage(64, 64)), models.ModeFull)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if result.IsAdult {
		t.Error("Expected gradient image not to be flagged")
	}
	if result.Scores.SkinRatio != 0 {
		t.Errorf("Expected skin ratio 0, got %f", result.Scores.SkinRatio)
	}
	if result.Scores.NSFW != nil {
		t.Error("Expected no NSFW score without a classifier")
	}
}

func TestAnalyze_InvalidPayload(t *testing.T) {
	a := newTestAnalyzer(t)

	_, err := a.Analyze(context.Background(), []byte("not an image"), models.ModeFast)
	if err == nil {
		t.Fatal("Expected error for invalid payload")
	}
}

func TestAnalyze_BlocklistMatch(t *testing.T) {
	a := newTestAnalyzer(t)
	img := createGradientImage(64, 64)

	hash, err := DifferenceHash(img)
	if err != nil {
		t.Fatalf("Failed to hash image: %v", err)
	}
	if err := a.UpdateSettings(Settings{
		Thresholds:    DefaultThresholds(),
		BlockedHashes: []string{FormatHash(hash)},
	}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	result, err := a.Analyze(context.Background(), pngBytes(t, img), models.ModeFast)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !result.KnownBadMatch {
		t.Error("Expected blocklist match")
	}
	if !result.IsAdult {
		t.Error("Expected blocklist match to flag the image")
	}
}

func TestAnalyze_ClassifierSupersedesSkin(t *testing.T) {
	classifier := &fakeClassifier{score: 0.1}
	a := newTestAnalyzer(t, WithClassifier(classifier))
	payload := pngBytes(t, createTestImage(32, 32, skinTone))

	full, err := a.Analyze(context.Background(), payload, models.ModeFull)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if full.Scores.NSFW == nil || *full.Scores.NSFW != 0.1 {
		t.Errorf("Expected NSFW score 0.1, got %v", full.Scores.NSFW)
	}
	if full.IsAdult {
		t.Error("Expected low classifier score to override the skin heuristic")
	}

	fast, err := a.Analyze(context.Background(), payload, models.ModeFast)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if classifier.calls != 1 {
		t.Errorf("Expected classifier to run only in full mode, got %d calls", classifier.calls)
	}
	if !fast.IsAdult {
		t.Error("Expected fast mode to rely on the skin heuristic")
	}
}

func TestAnalyze_ClassifierHighScore(t *testing.T) {
	a := newTestAnalyzer(t, WithClassifier(&fakeClassifier{score: 0.95}))

	result, err := a.Analyze(context.Background(), pngBytes(t, createGradientImage(32, 32)), models.ModeFull)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !result.IsAdult {
		t.Error("Expected high classifier score to flag the image")
	}
}

func TestAnalyze_ClassifierErrorFallsBack(t *testing.T) {
	a := newTestAnalyzer(t, WithClassifier(&fakeClassifier{err: errors.New("model offline")}))

	result, err := a.Analyze(context.Background(), pngBytes(t, createTestImage(32, 32, skinTone)), models.ModeFull)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(result.Errors) != 1 {
		t.Errorf("Expected 1 recorded error, got %v", result.Errors)
	}
	if result.Scores.NSFW != nil {
		t.Error("Expected no NSFW score after classifier failure")
	}
	if !result.IsAdult {
		t.Error("Expected skin heuristic to decide after classifier failure")
	}
}

func TestAnalyze_OCR(t *testing.T) {
	recognizer := &fakeRecognizer{text: "rendered words"}
	a := New(WithTextRecognizer(recognizer))
	payload := pngBytes(t, createGradientImage(16, 16))

	full, err := a.Analyze(context.Background(), payload, models.ModeFull)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(full.RenderedText) != 1 || full.RenderedText[0] != "rendered words" {
		t.Errorf("Expected rendered text, got %v", full.RenderedText)
	}

	fast, err := a.Analyze(context.Background(), payload, models.ModeFast)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(fast.RenderedText) != 0 {
		t.Errorf("Expected no OCR in fast mode, got %v", fast.RenderedText)
	}
	if recognizer.calls != 1 {
		t.Errorf("Expected 1 OCR call, got %d", recognizer.calls)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Unexpected close error: %v", err)
	}
	if !recognizer.closed {
		t.Error("Expected Close to release the recognizer")
	}
}

func TestUpdateSettings_InvalidHashKeepsPrevious(t *testing.T) {
	a := newTestAnalyzer(t)
	before := a.Thresholds()

	err := a.UpdateSettings(Settings{
		Thresholds:    Thresholds{SkinRatio: 0.1},
		BlockedHashes: []string{"zz"},
	})
	if err == nil {
		t.Fatal("Expected error for invalid hash")
	}
	if a.Thresholds() != before {
		t.Errorf("Expected thresholds %+v to stay, got %+v", before, a.Thresholds())
	}
}

func TestUpdateSettings_ThresholdsApply(t *testing.T) {
	a := newTestAnalyzer(t)
	payload := pngBytes(t, createTestImage(32, 32, skinTone))

	if err := a.UpdateSettings(Settings{Thresholds: Thresholds{SkinRatio: 0}}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	result, err := a.Analyze(context.Background(), payload, models.ModeFast)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.IsAdult {
		t.Error("Expected zero skin threshold to disable the heuristic")
	}
}

func TestDownscale(t *testing.T) {
	img := createTestImage(400, 100, color.RGBA{1, 2, 3, 255})

	scaled := downscale(img, 200)
	if scaled.Bounds().Dx() != 200 || scaled.Bounds().Dy() != 50 {
		t.Errorf("Expected 200x50, got %v", scaled.Bounds())
	}

	if downscale(img, 0) != image.Image(img) {
		t.Error("Expected zero max dimension to keep the image")
	}
	if downscale(img, 500) != image.Image(img) {
		t.Error("Expected small image to be kept")
	}
}
