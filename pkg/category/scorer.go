// Package category scores normalized frequency tables against the adult,
// minor and beast term sets.
package category

import (
	"strings"

	"go-image-moderation/pkg/frequency"
)

// Category names a moderation category
type Category string

const (
	Adult Category = "adult"
	Minor Category = "minor"
	Beast Category = "beast"
)

// TermSets holds the configured phrases per category
type TermSets struct {
	Adult []string `yaml:"adult_terms" json:"adult_terms"`
	Minor []string `yaml:"minor_terms" json:"minor_terms"`
	Beast []string `yaml:"bestiality_terms" json:"bestiality_terms"`
}

// Thresholds are the minimum scores that flag a category. Zero disables it.
type Thresholds struct {
	Adult int `yaml:"adult" json:"adult"`
	Minor int `yaml:"minor" json:"minor"`
	Beast int `yaml:"beast" json:"beast"`
}

// Score is the aggregate count for one category plus the entries that produced it
type Score struct {
	Category Category          `json:"category"`
	Total    int               `json:"total"`
	Evidence []frequency.Entry `json:"evidence,omitempty"`
}

// Result carries the three category scores for one table
type Result struct {
	Adult Score `json:"adult"`
	Minor Score `json:"minor"`
	Beast Score `json:"beast"`
}

// Scorer holds pre-built term sets. Safe for concurrent use.
type Scorer struct {
	adult map[string]struct{}
	minor map[string]struct{}
	beast map[string]struct{}
}

// NewScorer builds lookup sets from terms
func NewScorer(terms TermSets) *Scorer {
	return &Scorer{
		adult: toSet(terms.Adult),
		minor: toSet(terms.Minor),
		beast: toSet(terms.Beast),
	}
}

// Score applies the term sets to table using exact tag equality.
// An entry may contribute to more than one category.
func (s *Scorer) Score(table frequency.Table) Result {
	result := Result{
		Adult: Score{Category: Adult},
		Minor: Score{Category: Minor},
		Beast: Score{Category: Beast},
	}
	for _, entry := range table {
		if _, ok := s.adult[entry.Tag]; ok {
			result.Adult.add(entry)
		}
		if _, ok := s.minor[entry.Tag]; ok {
			result.Minor.add(entry)
		}
		if _, ok := s.beast[entry.Tag]; ok {
			result.Beast.add(entry)
		}
	}
	return result
}

// ScoreTable scores table against terms without keeping a Scorer around
func ScoreTable(table frequency.Table, terms TermSets) Result {
	return NewScorer(terms).Score(table)
}

// Flagged reports whether score reaches a positive threshold
func Flagged(score, threshold int) bool {
	return threshold > 0 && score >= threshold
}

func (s *Score) add(entry frequency.Entry) {
	s.Total += entry.Count
	s.Evidence = append(s.Evidence, entry)
}

func toSet(terms []string) map[string]struct{} {
	set := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" {
			set[term] = struct{}{}
		}
	}
	return set
}
