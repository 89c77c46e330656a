package terms

import (
	"encoding/json"
	"sort"
	"strings"
	"unicode"
)

// libraryEntry is the dictionary record shape: a CJK term plus an optional
// English equivalent.
type libraryEntry struct {
	Chinese string `json:"chinese"`
	English string `json:"english"`
}

// cjkFieldDelims are the separators used inside a single dictionary field to
// list term variants.
var cjkFieldDelims = []string{"/", "、", "，", ",", ";", "；", "|"}

// parseLibrary converts a raw dictionary source into a flat term list.
// Three formats are recognized, tried in order: a JSON array of entries,
// line-oriented JSON objects, and plain delimited lines. Malformed lines are
// skipped, never fatal.
func parseLibrary(source string, cfg Config) []string {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil
	}

	if strings.HasPrefix(source, "[") {
		var entries []libraryEntry
		if err := json.Unmarshal([]byte(source), &entries); err == nil {
			var out []string
			for _, e := range entries {
				out = append(out, termsFromEntry(e, true)...)
			}
			return out
		}
	}

	var out []string
	for _, line := range strings.Split(source, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "{") {
			var e libraryEntry
			if err := json.Unmarshal([]byte(line), &e); err == nil {
				out = append(out, termsFromEntry(e, cfg.IncludeLatin)...)
				continue
			}
			// Malformed JSON line: fall through to plain parsing.
		}

		out = append(out, termsFromPlainLine(line)...)
	}
	return out
}

// termsFromEntry extracts terms from one dictionary record. CJK fields are
// split on the variant delimiters and every run of two or more ideographs is
// kept as its own term.
func termsFromEntry(e libraryEntry, includeLatin bool) []string {
	var out []string
	for _, part := range splitOnAny(e.Chinese, cjkFieldDelims) {
		for _, run := range cjkRuns(part, 2) {
			out = append(out, run)
		}
	}
	if includeLatin {
		english := strings.TrimSpace(e.English)
		if len([]rune(english)) >= 2 {
			out = append(out, english)
		}
	}
	return out
}

func termsFromPlainLine(line string) []string {
	var out []string
	for _, part := range splitOnAny(line, []string{",", ";", "|"}) {
		out = append(out, cjkRuns(part, 2)...)
	}
	return out
}

func splitOnAny(s string, delims []string) []string {
	parts := []string{s}
	for _, d := range delims {
		var next []string
		for _, p := range parts {
			next = append(next, strings.Split(p, d)...)
		}
		parts = next
	}
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// cjkRuns returns every maximal run of ideographs in s with at least minLen
// runes.
func cjkRuns(s string, minLen int) []string {
	var runs []string
	var cur []rune
	flush := func() {
		if len(cur) >= minLen {
			runs = append(runs, string(cur))
		}
		cur = cur[:0]
	}
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			cur = append(cur, r)
		} else {
			flush()
		}
	}
	flush()
	return runs
}

// dedupeAndLimit deduplicates terms, drops any term fully contained in an
// already-kept longer term, and truncates the result to max entries. Longer
// terms win over their substrings.
func dedupeAndLimit(in []string, max int) []string {
	if len(in) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(in))
	unique := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		unique = append(unique, t)
	}

	// Longest first so substring suppression keeps the most specific term.
	sort.SliceStable(unique, func(i, j int) bool {
		li, lj := len([]rune(unique[i])), len([]rune(unique[j]))
		if li != lj {
			return li > lj
		}
		return unique[i] < unique[j]
	})

	var kept []string
	for _, t := range unique {
		contained := false
		for _, k := range kept {
			if strings.Contains(k, t) {
				contained = true
				break
			}
		}
		if !contained {
			kept = append(kept, t)
		}
		if max > 0 && len(kept) >= max {
			break
		}
	}
	return kept
}

func containsCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// lowerASCII lowercases Latin letters without touching multi-byte runes.
func lowerASCII(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, s)
}
