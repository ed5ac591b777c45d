// Package keyword implements the approximate keyword matcher used for
// content detection over free text and tag labels.
package keyword

import (
	"regexp"
	"strings"
)

var separatorRun = regexp.MustCompile(`[\s\-_]+`)

// Matcher tests text against a fixed keyword list. Build it once per list
// and reuse it; it is safe for concurrent use.
type Matcher struct {
	keywords []string
}

// NewMatcher normalizes keywords (trim, lowercase) and drops empties and duplicates
func NewMatcher(keywords []string) *Matcher {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return &Matcher{keywords: out}
}

// Len returns the number of usable keywords
func (m *Matcher) Len() int {
	return len(m.keywords)
}

// Empty reports whether the matcher can never match
func (m *Matcher) Empty() bool {
	return m == nil || len(m.keywords) == 0
}

// Match reports whether source contains any keyword.
//
// A keyword matches when it appears as a space-delimited phrase in the
// normalized source, or anywhere as a plain substring. The substring
// fallback deliberately over-matches ("loli" hits "lolita") so that
// compound and partial spellings are not missed.
func (m *Matcher) Match(source string) bool {
	if m.Empty() {
		return false
	}
	src := normalizeSource(source)
	if src == "" {
		return false
	}
	padded := " " + src + " "
	for _, kw := range m.keywords {
		if strings.Contains(padded, " "+kw+" ") || strings.Contains(src, kw) {
			return true
		}
	}
	return false
}

// Detect returns true on the first keyword hit across texts, then tag labels
func (m *Matcher) Detect(texts []string, labels []string) bool {
	if m.Empty() {
		return false
	}
	for _, text := range texts {
		if m.Match(text) {
			return true
		}
	}
	for _, label := range labels {
		if m.Match(label) {
			return true
		}
	}
	return false
}

func normalizeSource(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimSpace(separatorRun.ReplaceAllString(s, " "))
}
