package frequency

import "sort"

// Entry is a single tag with its accumulated count
type Entry struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Table is a normalized frequency table: unique lower-cased tags, counts >= 1,
// sorted by count descending then tag ascending.
type Table []Entry

// Total returns the sum of all counts in the table
func (t Table) Total() int {
	total := 0
	for _, e := range t {
		total += e.Count
	}
	return total
}

// Lookup returns the count recorded for tag, or 0 if it is absent
func (t Table) Lookup(tag string) int {
	tag = normalizeTag(tag)
	for _, e := range t {
		if e.Tag == tag {
			return e.Count
		}
	}
	return 0
}

// Merge combines several normalized tables, summing counts of duplicate tags
func Merge(tables ...Table) Table {
	acc := newAccumulator()
	for _, t := range tables {
		for _, e := range t {
			acc.add(e.Tag, e.Count)
		}
	}
	return acc.table()
}

// accumulator sums counts per tag before producing a sorted Table
type accumulator struct {
	counts map[string]int
}

func newAccumulator() *accumulator {
	return &accumulator{counts: make(map[string]int)}
}

func (a *accumulator) add(tag string, count int) {
	tag = normalizeTag(tag)
	if tag == "" || count <= 0 {
		return
	}
	a.counts[tag] += count
}

func (a *accumulator) table() Table {
	out := make(Table, 0, len(a.counts))
	for tag, count := range a.counts {
		out = append(out, Entry{Tag: tag, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}
