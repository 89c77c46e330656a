package core

import (
	"fmt"
	"sort"
	"strings"
)

// FuseResults merges one semantic ranking and any number of per-term keyword
// rankings into a single list via Reciprocal Rank Fusion: each item at
// 1-based rank r contributes weight/(k+r) to its composite key.
//
// Semantic items key on (source, original index), so two chunks of the same
// document stay distinct. Keyword items key on (source, joined terms), so
// one document matched by two different probe terms contributes twice while
// repeats of the same source+term pair collapse. When a keyword occurrence
// lands on a key the semantic list already produced, scores accumulate and
// the keyword occurrence's text and metadata win.
func FuseResults(semantic []SearchResult, keywordLists [][]SearchResult, weightSemantic, weightKeyword, k float64) []SearchResult {
	if k <= 0 {
		k = DefaultRRFK
	}

	type fusedEntry struct {
		item    SearchResult
		score   float64
		keyword bool
		order   int
	}
	entries := make(map[string]*fusedEntry)
	nextOrder := 0

	upsert := func(key string, item SearchResult, contribution float64, fromKeyword bool) {
		e, ok := entries[key]
		if !ok {
			e = &fusedEntry{item: item, order: nextOrder}
			nextOrder++
			entries[key] = e
		}
		e.score += contribution
		if fromKeyword {
			e.keyword = true
			// Keyword occurrence refreshes the payload: its text is
			// preferred when present, and its matched terms extend the
			// record.
			if item.Text != "" {
				e.item.Text = item.Text
			}
			if item.Metadata != nil {
				e.item.Metadata = item.Metadata
			}
			e.item.KeywordScore = item.KeywordScore
			e.item.MatchedTerms = mergeTerms(e.item.MatchedTerms, item.MatchedTerms)
		}
	}

	for i, item := range semantic {
		key := fmt.Sprintf("%s-%d", item.SourceID, i)
		upsert(key, item, weightSemantic/(k+float64(i+1)), false)
	}

	for _, list := range keywordLists {
		seen := make(map[string]struct{}, len(list))
		for i, item := range list {
			key := fmt.Sprintf("%s-%s", item.SourceID, strings.Join(item.MatchedTerms, ","))
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			upsert(key, item, weightKeyword/(k+float64(i+1)), true)
		}
	}

	fused := make([]*fusedEntry, 0, len(entries))
	for _, e := range entries {
		fused = append(fused, e)
	}
	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		return fused[i].order < fused[j].order
	})

	out := make([]SearchResult, 0, len(fused))
	for _, e := range fused {
		item := e.item
		item.Score = e.score
		if e.keyword {
			item.SearchType = SearchTypeKeyword
		} else {
			item.SearchType = SearchTypeSemantic
		}
		out = append(out, item)
	}
	return out
}

func mergeTerms(existing, incoming []string) []string {
	out := existing
	for _, t := range incoming {
		found := false
		for _, have := range out {
			if have == t {
				found = true
				break
			}
		}
		if !found {
			out = append(out, t)
		}
	}
	return out
}
