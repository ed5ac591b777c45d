// Package moderation fuses keyword, frequency-table and pixel-analysis
// signals into moderation verdicts for model and image assets.
//
// Evaluation never fails. Missing or malformed input contributes no
// signal, while any illegal category always forces RequiresModeration and
// IsAdult.
package moderation

import (
	"strings"
	"sync"

	"go-image-moderation/pkg/category"
	"go-image-moderation/pkg/keyword"
	"go-image-moderation/pkg/models"
)

// Config holds the term sets and thresholds used by the engine
type Config struct {
	Terms      category.TermSets
	Thresholds category.Thresholds
	// NSFWThreshold flags a CV summary as adult; zero disables the score check
	NSFWThreshold float64
}

// DefaultConfig returns a conservative starting configuration
func DefaultConfig() Config {
	return Config{
		Terms: category.TermSets{
			Adult: []string{"nsfw", "nude", "nudity", "naked", "explicit", "porn", "hentai", "sex", "nipples", "pussy", "penis"},
			Minor: []string{"child", "children", "loli", "shota", "toddler", "underage", "minor", "kid", "preteen"},
			Beast: []string{"bestiality", "zoophilia", "animal sex", "feral sex"},
		},
		Thresholds: category.Thresholds{
			Adult: 10,
			Minor: 3,
			Beast: 3,
		},
		NSFWThreshold: 0.8,
	}
}

// ModelContext is the input for a model asset verdict
type ModelContext struct {
	Title         string
	Description   string
	Trigger       string
	Tags          []models.TagRef
	Metadata      []any
	AdultKeywords []string
	PriorAnalysis *models.AnalysisResult
}

// Screening records how the metadata frequency table was scored
type Screening struct {
	Entries    int                 `json:"entries"`
	Scores     category.Result     `json:"scores"`
	Thresholds category.Thresholds `json:"thresholds"`
}

// ModelDecision is the verdict for a model asset
type ModelDecision struct {
	IsAdult            bool       `json:"is_adult"`
	RequiresModeration bool       `json:"requires_moderation"`
	MetadataAdult      bool       `json:"metadata_adult"`
	MetadataMinor      bool       `json:"metadata_minor"`
	MetadataBeast      bool       `json:"metadata_beast"`
	MetadataScreening  *Screening `json:"metadata_screening,omitempty"`
}

// ImageContext is the input for an image asset verdict
type ImageContext struct {
	Title          string
	Description    string
	Prompt         string
	NegativePrompt string
	Model          string
	Sampler        string
	Tags           []models.TagRef
	Metadata       []any
	AdultKeywords  []string
	PriorAnalysis  *models.AnalysisResult
	Summary        *models.ModerationSummary
	ExtraTexts     []string
}

// ImageDecision is the verdict for an image asset
type ImageDecision struct {
	IsAdult            bool `json:"is_adult"`
	RequiresModeration bool `json:"requires_moderation"`
	IllegalMinor       bool `json:"illegal_minor"`
	IllegalBeast       bool `json:"illegal_beast"`
}

// Engine evaluates verdicts. Safe for concurrent use; UpdateConfig swaps the
// term sets without blocking evaluations in flight.
type Engine struct {
	determinator AdultDeterminator

	mu    sync.RWMutex
	state *engineState
}

type engineState struct {
	cfg    Config
	scorer *category.Scorer
	minor  *keyword.Matcher
	beast  *keyword.Matcher
}

// NewEngine creates an engine. A nil determinator uses SignalDeterminator.
func NewEngine(cfg Config, determinator AdultDeterminator) *Engine {
	if determinator == nil {
		determinator = SignalDeterminator{}
	}
	return &Engine{
		determinator: determinator,
		state:        buildState(cfg),
	}
}

// UpdateConfig replaces the term sets and thresholds
func (e *Engine) UpdateConfig(cfg Config) {
	next := buildState(cfg)
	e.mu.Lock()
	e.state = next
	e.mu.Unlock()
}

// Config returns the active configuration
func (e *Engine) Config() Config {
	return e.current().cfg
}

func (e *Engine) current() *engineState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func buildState(cfg Config) *engineState {
	return &engineState{
		cfg:    cfg,
		scorer: category.NewScorer(cfg.Terms),
		minor:  keyword.NewMatcher(cfg.Terms.Minor),
		beast:  keyword.NewMatcher(cfg.Terms.Beast),
	}
}

// EvaluateModel produces the verdict for a model asset from its training
// metadata, texts, tags and an optional prior analysis
func (e *Engine) EvaluateModel(ctx ModelContext) ModelDecision {
	st := e.current()
	var decision ModelDecision

	table := extractFrequencyTable(ctx.Metadata)
	if len(table) > 0 {
		scores := st.scorer.Score(table)
		decision.MetadataAdult = category.Flagged(scores.Adult.Total, st.cfg.Thresholds.Adult)
		decision.MetadataMinor = category.Flagged(scores.Minor.Total, st.cfg.Thresholds.Minor)
		decision.MetadataBeast = category.Flagged(scores.Beast.Total, st.cfg.Thresholds.Beast)
		decision.MetadataScreening = &Screening{
			Entries:    len(table),
			Scores:     scores,
			Thresholds: st.cfg.Thresholds,
		}
	}

	decision.RequiresModeration = decision.MetadataMinor || decision.MetadataBeast

	external := e.determinator.DetermineAdultForModel(ModelSignals{
		Texts:         nonEmpty(ctx.Title, ctx.Description, ctx.Trigger),
		Tags:          ctx.Tags,
		AdultKeywords: adultKeywords(ctx.AdultKeywords, st.cfg),
		PriorAnalysis: ctx.PriorAnalysis,
	})

	decision.IsAdult = external ||
		priorAdult(ctx.PriorAnalysis) ||
		decision.MetadataAdult ||
		decision.RequiresModeration
	return decision
}

// EvaluateImage produces the verdict for an image asset
func (e *Engine) EvaluateImage(ctx ImageContext) ImageDecision {
	st := e.current()

	metadataStrings := flattenStrings(ctx.Metadata)

	external := e.determinator.DetermineAdultForImage(ImageSignals{
		Texts:           append(nonEmpty(ctx.Title, ctx.Description, ctx.Prompt, ctx.Model, ctx.Sampler), ctx.ExtraTexts...),
		NegativePrompt:  ctx.NegativePrompt,
		Tags:            ctx.Tags,
		AdultKeywords:   adultKeywords(ctx.AdultKeywords, st.cfg),
		MetadataStrings: metadataStrings,
		Summary:         ctx.Summary,
		PriorAnalysis:   ctx.PriorAnalysis,
		NSFWThreshold:   st.cfg.NSFWThreshold,
	})

	pooled := nonEmpty(ctx.Title, ctx.Description, ctx.Prompt, ctx.NegativePrompt, ctx.Model, ctx.Sampler)
	pooled = append(pooled, metadataStrings...)
	pooled = append(pooled, ctx.ExtraTexts...)
	labels := tagLabels(ctx.Tags)

	var decision ImageDecision
	decision.IllegalMinor = st.minor.Detect(pooled, labels)
	decision.IllegalBeast = st.beast.Detect(pooled, labels)
	decision.RequiresModeration = decision.IllegalMinor || decision.IllegalBeast
	decision.IsAdult = external || priorAdult(ctx.PriorAnalysis) || decision.RequiresModeration
	return decision
}

// adultKeywords joins the caller's keywords with the configured adult terms
func adultKeywords(supplied []string, cfg Config) []string {
	if len(supplied) == 0 {
		return cfg.Terms.Adult
	}
	out := make([]string, 0, len(supplied)+len(cfg.Terms.Adult))
	out = append(out, supplied...)
	return append(out, cfg.Terms.Adult...)
}

func priorAdult(result *models.AnalysisResult) bool {
	return result != nil && result.IsAdult
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
