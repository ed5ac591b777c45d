package analyzer

import "go-image-moderation/pkg/models"

// Thresholds are the tunable decision points of the analyzer. They are part
// of the hot-reloadable runtime configuration.
type Thresholds struct {
	// SkinRatio at or above which the skin heuristic flags an image
	SkinRatio float64 `yaml:"skin_ratio"`
	// NSFW classifier score at or above which an image is flagged
	NSFW float64 `yaml:"nsfw"`
	// HashDistance is the largest Hamming distance counted as a blocklist match
	HashDistance int `yaml:"hash_distance"`
}

// DefaultThresholds returns the built-in thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{
		SkinRatio:    0.6,
		NSFW:         0.8,
		HashDistance: 6,
	}
}

// AnalysisOptions provides flexible configuration for one analysis run
type AnalysisOptions struct {
	Mode       models.AnalysisMode
	Thresholds Thresholds

	// Feature toggles
	SkipHash       bool
	SkipClassifier bool
	SkipOCR        bool

	// MaxDimension bounds the longer side the pixel metrics run on; 0 keeps
	// the original size
	MaxDimension int
}

// FastOptions returns options for cheap heuristic analysis
func FastOptions() AnalysisOptions {
	return AnalysisOptions{
		Mode:           models.ModeFast,
		Thresholds:     DefaultThresholds(),
		SkipClassifier: true,
		SkipOCR:        true,
		MaxDimension:   256,
	}
}

// FullOptions returns options for the complete analysis
func FullOptions() AnalysisOptions {
	return AnalysisOptions{
		Mode:         models.ModeFull,
		Thresholds:   DefaultThresholds(),
		MaxDimension: 1024,
	}
}

// OptionsForMode returns the preset for mode, falling back to full
func OptionsForMode(mode models.AnalysisMode) AnalysisOptions {
	if mode == models.ModeFast {
		return FastOptions()
	}
	return FullOptions()
}

// WithThresholds replaces the thresholds
func (opts AnalysisOptions) WithThresholds(t Thresholds) AnalysisOptions {
	opts.Thresholds = t
	return opts
}

// WithoutHashing disables perceptual hashing
func (opts AnalysisOptions) WithoutHashing() AnalysisOptions {
	opts.SkipHash = true
	return opts
}

// WithoutOCR disables rendered text extraction
func (opts AnalysisOptions) WithoutOCR() AnalysisOptions {
	opts.SkipOCR = true
	return opts
}
