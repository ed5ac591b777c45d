package moderation

import (
	"encoding/json"
	"sort"
	"strings"

	"go-image-moderation/pkg/frequency"
)

const (
	maxFlattenDepth   = 4
	maxFlattenStrings = 50
)

// frequencyKeys are the metadata fields known to carry training tag frequencies
var frequencyKeys = []string{
	"ss_tag_frequency",
	"tag_frequency",
	"tagFrequency",
	"tag_frequencies",
	"tagFrequencies",
}

// containerKeys wrap the training metadata in some file formats
var containerKeys = []string{"__metadata__", "metadata", "modelspec"}

// decodeBlob turns raw JSON bytes or a JSON string into a decoded value.
// Bytes that are not valid JSON come back as a plain string so their text
// still reaches keyword detection.
func decodeBlob(blob any) any {
	switch v := blob.(type) {
	case json.RawMessage:
		return decodeBytes(v)
	case []byte:
		return decodeBytes(v)
	case string:
		trimmed := strings.TrimSpace(v)
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			var decoded any
			if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
				return decoded
			}
		}
		return v
	default:
		return blob
	}
}

func decodeBytes(data []byte) any {
	if len(data) == 0 {
		return nil
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return string(data)
	}
	if s, ok := decoded.(string); ok {
		return decodeBlob(s)
	}
	return decoded
}

// extractFrequencyTable finds every tag-frequency field in the blobs and
// merges them into one normalized table
func extractFrequencyTable(blobs []any) frequency.Table {
	tables := make([]frequency.Table, 0, len(blobs))
	for _, blob := range blobs {
		tables = append(tables, locateFrequencyTables(decodeBlob(blob), 0)...)
	}
	return frequency.Merge(tables...)
}

func locateFrequencyTables(v any, depth int) []frequency.Table {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}

	var tables []frequency.Table
	for _, key := range frequencyKeys {
		if raw, present := m[key]; present {
			tables = append(tables, frequency.Normalize(raw))
		}
	}
	if depth > 0 {
		return tables
	}
	for _, key := range containerKeys {
		if inner, present := m[key]; present {
			tables = append(tables, locateFrequencyTables(decodeBlob(inner), depth+1)...)
		}
	}
	return tables
}

// flattenStrings collects string leaves from the blobs, walking nested
// arrays and objects up to maxFlattenDepth and stopping at maxFlattenStrings.
// Object keys are visited in sorted order so the result is deterministic.
func flattenStrings(blobs []any) []string {
	out := make([]string, 0, 8)
	for _, blob := range blobs {
		if len(out) >= maxFlattenStrings {
			break
		}
		walkStrings(decodeBlob(blob), 0, &out)
	}
	return out
}

func walkStrings(v any, depth int, out *[]string) {
	if len(*out) >= maxFlattenStrings {
		return
	}
	switch val := v.(type) {
	case string:
		*out = append(*out, val)
	case []any:
		if depth >= maxFlattenDepth {
			return
		}
		for _, item := range val {
			walkStrings(item, depth+1, out)
		}
	case map[string]any:
		if depth >= maxFlattenDepth {
			return
		}
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walkStrings(val[k], depth+1, out)
		}
	}
}
