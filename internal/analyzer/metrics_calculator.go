package analyzer

import (
	"image"
	"math"

	"gonum.org/v1/gonum/stat"
)

// metricsCalculator implements MetricsCalculator by splitting the image into
// horizontal strips processed on the worker pool
type metricsCalculator struct {
	pool *WorkerPool
}

// NewMetricsCalculator creates a metrics calculator. A nil pool processes
// strips on the calling goroutine.
func NewMetricsCalculator(pool *WorkerPool) MetricsCalculator {
	return &metricsCalculator{pool: pool}
}

type stripResult struct {
	skin, lum, sat float64
	pixels         int
}

// CalculateBasicMetrics computes the skin-tone ratio and average
// luminance and saturation
func (mc *metricsCalculator) CalculateBasicMetrics(img image.Image) metrics {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return metrics{}
	}

	strips := 1
	if mc.pool != nil {
		strips = mc.pool.Workers()
	}
	if height < strips {
		strips = height
	}
	rowsPerStrip := (height + strips - 1) / strips

	results := make([]stripResult, strips)
	jobs := make([]func(), 0, strips)
	for i := 0; i < strips; i++ {
		startY := bounds.Min.Y + i*rowsPerStrip
		endY := min(startY+rowsPerStrip, bounds.Max.Y)
		out := &results[i]
		jobs = append(jobs, func() {
			*out = mc.scanStrip(img, bounds.Min.X, bounds.Max.X, startY, endY)
		})
	}

	if mc.pool != nil {
		mc.pool.Run(jobs)
	} else {
		for _, job := range jobs {
			job()
		}
	}

	skin := make([]float64, 0, strips)
	lum := make([]float64, 0, strips)
	sat := make([]float64, 0, strips)
	weights := make([]float64, 0, strips)
	total := 0
	for _, r := range results {
		if r.pixels == 0 {
			continue
		}
		n := float64(r.pixels)
		skin = append(skin, r.skin/n)
		lum = append(lum, r.lum/n)
		sat = append(sat, r.sat/n)
		weights = append(weights, n)
		total += r.pixels
	}
	if total == 0 {
		return metrics{}
	}

	return metrics{
		skinRatio:     stat.Mean(skin, weights),
		avgLuminance:  stat.Mean(lum, weights),
		avgSaturation: stat.Mean(sat, weights),
		pixels:        total,
	}
}

func (mc *metricsCalculator) scanStrip(img image.Image, minX, maxX, startY, endY int) stripResult {
	var r stripResult
	for y := startY; y < endY; y++ {
		for x := minX; x < maxX; x++ {
			rv, gv, bv, _ := img.At(x, y).RGBA()
			rf := float64(rv>>8) / 255
			gf := float64(gv>>8) / 255
			bf := float64(bv>>8) / 255

			h, s, v := rgbToHSV(rf, gf, bf)
			r.sat += s
			r.lum += v
			if isSkin(rf, gf, bf, h, s) {
				r.skin++
			}
			r.pixels++
		}
	}
	return r
}

// isSkin combines the RGB skin rule with a hue and saturation band.
// Channels are normalized to 0..1.
func isSkin(r, g, b, h, s float64) bool {
	const (
		minR = 95.0 / 255
		minG = 40.0 / 255
		minB = 20.0 / 255
		diff = 15.0 / 255
	)
	if r <= minR || g <= minG || b <= minB {
		return false
	}
	spread := math.Max(r, math.Max(g, b)) - math.Min(r, math.Min(g, b))
	if spread <= diff || math.Abs(r-g) <= diff || r <= g || r <= b {
		return false
	}
	return h <= 50 && s >= 0.1 && s <= 0.75
}

// rgbToHSV provides RGB to HSV conversion
func rgbToHSV(r, g, b float64) (h, s, v float64) {
	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	delta := max - min

	v = max

	if max == 0 {
		s = 0
	} else {
		s = delta / max
	}

	if delta == 0 {
		h = 0
	} else if max == r {
		h = 60 * (((g - b) / delta) + 0)
	} else if max == g {
		h = 60 * (((b - r) / delta) + 2)
	} else {
		h = 60 * (((r - g) / delta) + 4)
	}

	if h < 0 {
		h += 360
	}

	return h, s, v
}
