package models

import "encoding/json"

// ImageModerationRequest represents a request to moderate a single image.
// Exactly one of Image (base64 in JSON) or ImageURL must be set.
type ImageModerationRequest struct {
	Image    []byte `json:"image,omitempty"`
	ImageURL string `json:"image_url,omitempty"`

	Title          string   `json:"title,omitempty"`
	Description    string   `json:"description,omitempty"`
	Prompt         string   `json:"prompt,omitempty"`
	NegativePrompt string   `json:"negative_prompt,omitempty"`
	Model          string   `json:"model,omitempty"`
	Sampler        string   `json:"sampler,omitempty"`
	Tags           []TagRef `json:"tags,omitempty"`
	AdultKeywords  []string `json:"adult_keywords,omitempty"`
	ExtraTexts     []string `json:"extra_texts,omitempty"`

	// Metadata blobs are kept raw; malformed blobs degrade to no signal
	Metadata []json.RawMessage `json:"metadata,omitempty"`

	Priority string       `json:"priority,omitempty"`
	Mode     AnalysisMode `json:"mode,omitempty"`
}

// ModelModerationRequest represents a request to moderate a model asset
type ModelModerationRequest struct {
	Title         string            `json:"title,omitempty"`
	Description   string            `json:"description,omitempty"`
	Trigger       string            `json:"trigger,omitempty"`
	Tags          []TagRef          `json:"tags,omitempty"`
	AdultKeywords []string          `json:"adult_keywords,omitempty"`
	Metadata      []json.RawMessage `json:"metadata,omitempty"`

	// Optional preview image analyzed before the verdict
	PreviewImage    []byte `json:"preview_image,omitempty"`
	PreviewImageURL string `json:"preview_image_url,omitempty"`

	Priority string `json:"priority,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
