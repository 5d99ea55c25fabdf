// Package tags holds the tag rules shared by the HTTP boundary, the stores
// and the search engine: normalization, the allowed character set, the
// superset match used by tag filters and the popularity fold.
package tags

import (
	"regexp"
	"sort"
	"strings"

	"github.com/imagiseum/gallery/internal/model"
)

const (
	// MaxLength is the longest tag the store accepts.
	MaxLength = 64
	// MaxPerImage bounds the tag set of a single image.
	MaxPerImage = 10
)

var allowed = regexp.MustCompile(`^[a-zA-Z0-9 ]+$`)

// Valid reports whether tag only uses letters, digits and spaces and fits
// in MaxLength.
func Valid(tag string) bool {
	return len(tag) <= MaxLength && allowed.MatchString(tag)
}

// Normalize trims and lower-cases every tag, drops empty entries and
// duplicates, and keeps the first-seen order.
func Normalize(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// ParseFilter splits a comma separated query value into a normalized filter.
func ParseFilter(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return Normalize(strings.Split(raw, ","))
}

// ContainsAll reports whether have is a superset of want.
func ContainsAll(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[t] = struct{}{}
	}
	for _, t := range want {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}

// Tally counts, for every distinct tag, how many of the given tag sets
// contain it, and returns the ranking.
func Tally(sets [][]string) []model.TagCount {
	counts := map[string]int{}
	for _, set := range sets {
		seen := make(map[string]struct{}, len(set))
		for _, t := range set {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			counts[t]++
		}
	}
	return Rank(counts)
}

// Rank orders counts by descending count, then ascending name.
func Rank(counts map[string]int) []model.TagCount {
	out := make([]model.TagCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, model.TagCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}
