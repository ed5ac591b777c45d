// Package frequency turns the many raw tag-count layouts found in training
// metadata into one canonical, deterministic frequency table.
//
// Parsing never fails: unrecognized shapes and malformed entries produce an
// empty table (or are skipped) instead of an error.
package frequency

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Shape identifies which raw layout a frequency value uses
type Shape int

const (
	// ShapeUnknown is anything that cannot be read as a frequency table
	ShapeUnknown Shape = iota
	// ShapePairList is an array of [tag, count] pairs
	ShapePairList
	// ShapeObjectList is an array of {tag|Tag|name, count|value|frequency} objects
	ShapeObjectList
	// ShapeObjectMap is a plain tag -> count map
	ShapeObjectMap
	// ShapeDatasetMap is a map of dataset name -> tag -> count maps
	ShapeDatasetMap
)

func (s Shape) String() string {
	switch s {
	case ShapePairList:
		return "pair_list"
	case ShapeObjectList:
		return "object_list"
	case ShapeObjectMap:
		return "object_map"
	case ShapeDatasetMap:
		return "dataset_map"
	default:
		return "unknown"
	}
}

var (
	tagKeys   = []string{"tag", "Tag", "name"}
	countKeys = []string{"count", "value", "frequency"}
)

// Classify reports the layout of v. The first element of a list decides
// between pair and object lists; a map is a dataset map only when every
// value is itself a map.
func Classify(v any) Shape {
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			switch item.(type) {
			case []any:
				return ShapePairList
			case map[string]any:
				return ShapeObjectList
			}
		}
		return ShapeUnknown
	case map[string]any:
		if len(val) == 0 {
			return ShapeObjectMap
		}
		for _, inner := range val {
			if _, ok := inner.(map[string]any); !ok {
				return ShapeObjectMap
			}
		}
		return ShapeDatasetMap
	default:
		return ShapeUnknown
	}
}

// Normalize converts a raw decoded JSON value into a Table. Strings holding
// JSON are decoded first. Anything unrecognized yields an empty table.
func Normalize(v any) Table {
	if s, ok := v.(string); ok {
		return Parse([]byte(s))
	}
	if raw, ok := v.(json.RawMessage); ok {
		return Parse(raw)
	}

	acc := newAccumulator()
	collect(acc, v)
	return acc.table()
}

// Parse decodes data as JSON and normalizes it. Invalid JSON yields an empty table.
func Parse(data []byte) Table {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return Table{}
	}
	// Doubly encoded tables are unwrapped once; deeper nesting is ignored.
	if s, ok := v.(string); ok {
		v = nil
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			return Table{}
		}
	}
	acc := newAccumulator()
	collect(acc, v)
	return acc.table()
}

func collect(acc *accumulator, v any) {
	switch Classify(v) {
	case ShapePairList:
		collectPairs(acc, v.([]any))
	case ShapeObjectList:
		collectObjects(acc, v.([]any))
	case ShapeObjectMap:
		collectMap(acc, v.(map[string]any))
	case ShapeDatasetMap:
		for _, inner := range v.(map[string]any) {
			collectMap(acc, inner.(map[string]any))
		}
	}
}

func collectPairs(acc *accumulator, items []any) {
	for _, item := range items {
		pair, ok := item.([]any)
		if !ok || len(pair) < 2 {
			continue
		}
		tag, ok := pair[0].(string)
		if !ok {
			continue
		}
		if count, ok := toCount(pair[1]); ok {
			acc.add(tag, count)
		}
	}
}

func collectObjects(acc *accumulator, items []any) {
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		tag, ok := firstString(obj, tagKeys)
		if !ok {
			continue
		}
		for _, key := range countKeys {
			raw, present := obj[key]
			if !present {
				continue
			}
			if count, ok := toCount(raw); ok {
				acc.add(tag, count)
			}
			break
		}
	}
}

func collectMap(acc *accumulator, m map[string]any) {
	for tag, raw := range m {
		if count, ok := toCount(raw); ok {
			acc.add(tag, count)
		}
	}
}

func firstString(obj map[string]any, keys []string) (string, bool) {
	for _, key := range keys {
		if s, ok := obj[key].(string); ok {
			return s, true
		}
	}
	return "", false
}

// toCount rounds a numeric (or numeric string) value to an int
func toCount(v any) (int, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	rounded := math.Round(f)
	if rounded > math.MaxInt32 {
		rounded = math.MaxInt32
	}
	return int(rounded), true
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}
