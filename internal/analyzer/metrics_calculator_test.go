package analyzer

import (
	"image"
	"image/color"
	"math"
	"testing"
)

var skinTone = color.RGBA{224, 172, 140, 255}

// createTestImage creates a single-color test image
func createTestImage(width, height int, fillColor color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, fillColor)
		}
	}
	return img
}

// createGradientImage creates a diagonal gray gradient
func createGradientImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			intensity := uint8((x + y) * 255 / (width + height))
			img.Set(x, y, color.RGBA{intensity, intensity, intensity, 255})
		}
	}
	return img
}

func TestCalculateBasicMetrics_Gray(t *testing.T) {
	calc := NewMetricsCalculator(nil)

	m := calc.CalculateBasicMetrics(createTestImage(100, 100, color.RGBA{128, 128, 128, 255}))

	if m.skinRatio != 0 {
		t.Errorf("Expected no skin pixels, got ratio %f", m.skinRatio)
	}
	if m.avgSaturation > 0.01 {
		t.Errorf("Expected low saturation for gray image, got %f", m.avgSaturation)
	}
	expected := 128.0 / 255.0
	if math.Abs(m.avgLuminance-expected) > 0.01 {
		t.Errorf("Expected luminance ~%f, got %f", expected, m.avgLuminance)
	}
	if m.pixels != 10000 {
		t.Errorf("Expected 10000 pixels, got %d", m.pixels)
	}
}

func TestCalculateBasicMetrics_Skin(t *testing.T) {
	pool := NewWorkerPool(4)
	pool.Start()
	defer pool.Close()
	calc := NewMetricsCalculator(pool)

	m := calc.CalculateBasicMetrics(createTestImage(64, 64, skinTone))

	if math.Abs(m.skinRatio-1) > 1e-9 {
		t.Errorf("Expected skin ratio 1, got %f", m.skinRatio)
	}
}

func TestCalculateBasicMetrics_HalfSkin(t *testing.T) {
	pool := NewWorkerPool(3)
	pool.Start()
	defer pool.Close()
	calc := NewMetricsCalculator(pool)

	img := createTestImage(40, 30, color.RGBA{30, 60, 200, 255})
	for y := 0; y < 30; y++ {
		for x := 0; x < 20; x++ {
			img.Set(x, y, skinTone)
		}
	}

	m := calc.CalculateBasicMetrics(img)

	if math.Abs(m.skinRatio-0.5) > 1e-9 {
		t.Errorf("Expected skin ratio 0.5, got %f", m.skinRatio)
	}
}

func TestCalculateBasicMetrics_UnevenStrips(t *testing.T) {
	pool := NewWorkerPool(4)
	pool.Start()
	defer pool.Close()
	calc := NewMetricsCalculator(pool)

	// 5 rows over 4 workers leaves strips of 2, 2, 1 and 0 rows
	img := createTestImage(10, 5, color.RGBA{30, 60, 200, 255})
	for x := 0; x < 10; x++ {
		img.Set(x, 4, skinTone)
	}

	m := calc.CalculateBasicMetrics(img)

	if math.Abs(m.skinRatio-0.2) > 1e-9 {
		t.Errorf("Expected skin ratio 0.2, got %f", m.skinRatio)
	}
	if m.pixels != 50 {
		t.Errorf("Expected 50 pixels, got %d", m.pixels)
	}
}

func TestCalculateBasicMetrics_Empty(t *testing.T) {
	calc := NewMetricsCalculator(nil)

	m := calc.CalculateBasicMetrics(image.NewRGBA(image.Rect(0, 0, 0, 0)))

	if m != (metrics{}) {
		t.Errorf("Expected zero metrics, got %+v", m)
	}
}

func TestIsSkin(t *testing.T) {
	tests := []struct {
		name     string
		c        color.RGBA
		expected bool
	}{
		{"light skin", skinTone, true},
		{"tan skin", color.RGBA{198, 134, 66, 255}, true},
		{"gray", color.RGBA{128, 128, 128, 255}, false},
		{"blue", color.RGBA{30, 60, 200, 255}, false},
		{"pure red", color.RGBA{255, 0, 0, 255}, false},
		{"dark", color.RGBA{60, 30, 20, 255}, false},
		{"white", color.RGBA{255, 255, 255, 255}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, g, b := float64(tt.c.R)/255, float64(tt.c.G)/255, float64(tt.c.B)/255
			h, s, _ := rgbToHSV(r, g, b)
			if got := isSkin(r, g, b, h, s); got != tt.expected {
				t.Errorf("Expected %v, got %v (h=%f s=%f)", tt.expected, got, h, s)
			}
		})
	}
}

func TestRgbToHSV(t *testing.T) {
	tests := []struct {
		name       string
		r, g, b    float64
		eh, es, ev float64
	}{
		{"black", 0, 0, 0, 0, 0, 0},
		{"white", 1, 1, 1, 0, 0, 1},
		{"red", 1, 0, 0, 0, 1, 1},
		{"green", 0, 1, 0, 120, 1, 1},
		{"blue", 0, 0, 1, 240, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, s, v := rgbToHSV(tt.r, tt.g, tt.b)
			if math.Abs(h-tt.eh) > 0.01 || math.Abs(s-tt.es) > 0.01 || math.Abs(v-tt.ev) > 0.01 {
				t.Errorf("Expected (%f, %f, %f), got (%f, %f, %f)", tt.eh, tt.es, tt.ev, h, s, v)
			}
		})
	}
}
