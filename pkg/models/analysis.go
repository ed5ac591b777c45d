package models

import "time"

// AnalysisMode selects how deep pixel analysis goes
type AnalysisMode string

const (
	// ModeFast runs cheap heuristics only
	ModeFast AnalysisMode = "fast"
	// ModeFull runs heuristics plus the CNN classifier
	ModeFull AnalysisMode = "full"
)

// Valid reports whether m is a known mode
func (m AnalysisMode) Valid() bool {
	return m == ModeFast || m == ModeFull
}

// AnalysisResult represents the outcome of pixel analysis for one image buffer
type AnalysisResult struct {
	TaskID            string       `json:"task_id,omitempty"`
	Mode              AnalysisMode `json:"mode"`
	Timestamp         time.Time    `json:"timestamp"`
	ProcessingTimeSec float64      `json:"processing_time_sec"`

	// Verdict of the analyzer itself
	IsAdult bool `json:"is_adult"`

	// Scores
	Scores AnalysisScores `json:"scores"`

	// Perceptual hash and blocklist match
	PerceptualHash string `json:"perceptual_hash,omitempty"`
	KnownBadMatch  bool   `json:"known_bad_match,omitempty"`

	Width  int `json:"width"`
	Height int `json:"height"`

	// Text recovered from the pixels (OCR), full mode only
	RenderedText []string `json:"rendered_text,omitempty"`

	// Non-fatal problems hit during analysis
	Errors []string `json:"errors,omitempty"`
}

// AnalysisScores holds the normalized 0..1 signal scores
type AnalysisScores struct {
	SkinRatio float64  `json:"skin_ratio"`
	NSFW      *float64 `json:"nsfw,omitempty"`
}

// ModerationSummary is the computer-vision summary produced outside the core
type ModerationSummary struct {
	IsAdult   bool     `json:"is_adult"`
	NSFWScore float64  `json:"nsfw_score"`
	Labels    []string `json:"labels,omitempty"`
}

// TagRef is a structured tag attached to an asset
type TagRef struct {
	Label   string `json:"label"`
	IsAdult bool   `json:"is_adult,omitempty"`
}

// ValidationError represents a structured validation error
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}
