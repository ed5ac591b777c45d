package moderation

import (
	"go-image-moderation/pkg/keyword"
	"go-image-moderation/pkg/models"
)

// ModelSignals is everything the adult determinator sees for a model asset
type ModelSignals struct {
	Texts         []string
	Tags          []models.TagRef
	AdultKeywords []string
	PriorAnalysis *models.AnalysisResult
}

// ImageSignals is everything the adult determinator sees for an image asset
type ImageSignals struct {
	Texts           []string
	NegativePrompt  string
	Tags            []models.TagRef
	AdultKeywords   []string
	MetadataStrings []string
	Summary         *models.ModerationSummary
	PriorAnalysis   *models.AnalysisResult
	NSFWThreshold   float64
}

// AdultDeterminator combines keyword and signal evidence into an adult flag
type AdultDeterminator interface {
	DetermineAdultForModel(signals ModelSignals) bool
	DetermineAdultForImage(signals ImageSignals) bool
}

// SignalDeterminator is the default AdultDeterminator.
//
// The negative prompt is ignored: generators list unwanted content there,
// so "nsfw" in a negative prompt is evidence against adult content.
type SignalDeterminator struct{}

// DetermineAdultForModel is true for an adult tag or an adult keyword hit
func (SignalDeterminator) DetermineAdultForModel(signals ModelSignals) bool {
	if anyAdultTag(signals.Tags) {
		return true
	}
	return keyword.NewMatcher(signals.AdultKeywords).Detect(signals.Texts, tagLabels(signals.Tags))
}

// DetermineAdultForImage also honors the CV summary and known-bad hash matches
func (SignalDeterminator) DetermineAdultForImage(signals ImageSignals) bool {
	if anyAdultTag(signals.Tags) {
		return true
	}
	if s := signals.Summary; s != nil {
		if s.IsAdult || (signals.NSFWThreshold > 0 && s.NSFWScore >= signals.NSFWThreshold) {
			return true
		}
	}
	if p := signals.PriorAnalysis; p != nil && p.KnownBadMatch {
		return true
	}

	texts := make([]string, 0, len(signals.Texts)+len(signals.MetadataStrings))
	texts = append(texts, signals.Texts...)
	texts = append(texts, signals.MetadataStrings...)
	return keyword.NewMatcher(signals.AdultKeywords).Detect(texts, tagLabels(signals.Tags))
}

func anyAdultTag(tags []models.TagRef) bool {
	for _, tag := range tags {
		if tag.IsAdult {
			return true
		}
	}
	return false
}

func tagLabels(tags []models.TagRef) []string {
	labels := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag.Label != "" {
			labels = append(labels, tag.Label)
		}
	}
	return labels
}
