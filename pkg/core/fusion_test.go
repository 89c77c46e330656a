package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func semanticItem(source, text string) SearchResult {
	return SearchResult{
		Text:       text,
		SourceID:   source,
		SearchType: SearchTypeSemantic,
		Metadata:   map[string]any{"text": text, "docId": source},
	}
}

func keywordItem(source, text, term string, rank float64) SearchResult {
	return SearchResult{
		Text:         text,
		SourceID:     source,
		SearchType:   SearchTypeKeyword,
		KeywordScore: rank,
		MatchedTerms: []string{term},
		Metadata:     map[string]any{"text": text, "docId": source},
	}
}

func TestFuseSemanticOnlyWeighting(t *testing.T) {
	semantic := []SearchResult{
		semanticItem("a", "alpha"),
		semanticItem("b", "beta"),
		semanticItem("c", "gamma"),
	}
	keyword := [][]SearchResult{
		{keywordItem("c", "gamma", "x", 0.9)},
		{keywordItem("b", "beta", "y", 0.8)},
	}

	// With the keyword side weighted to zero, the top of the fused list
	// must reproduce the semantic order exactly.
	fused := FuseResults(semantic, keyword, 1, 0, 60)
	require.GreaterOrEqual(t, len(fused), 3)
	assert.Equal(t, "alpha", fused[0].Text)
	assert.Equal(t, "beta", fused[1].Text)
	assert.Equal(t, "gamma", fused[2].Text)
}

func TestFuseRankContribution(t *testing.T) {
	semantic := []SearchResult{semanticItem("a", "alpha")}
	fused := FuseResults(semantic, nil, 1, 0, 60)

	require.Len(t, fused, 1)
	assert.InDelta(t, 1.0/61.0, fused[0].Score, 1e-9)
	assert.Equal(t, SearchTypeSemantic, fused[0].SearchType)
}

func TestFuseSemanticPositionsStayDistinct(t *testing.T) {
	// Two chunks of the same document must not collapse on the semantic
	// side: identity includes the original index.
	semantic := []SearchResult{
		semanticItem("doc", "chunk one"),
		semanticItem("doc", "chunk two"),
	}

	fused := FuseResults(semantic, nil, 1, 1, 60)
	assert.Len(t, fused, 2)
}

func TestFuseKeywordIdentity(t *testing.T) {
	semantic := []SearchResult{semanticItem("a", "alpha")}

	t.Run("same source different terms count twice", func(t *testing.T) {
		keyword := [][]SearchResult{
			{keywordItem("doc", "text", "龙傲天", 0.5)},
			{keywordItem("doc", "text", "斗破苍穹", 0.4)},
		}
		fused := FuseResults(semantic, keyword, 1, 1, 60)
		assert.Len(t, fused, 3)
	})

	t.Run("same source same term collapses", func(t *testing.T) {
		keyword := [][]SearchResult{
			{keywordItem("doc", "text", "龙傲天", 0.5)},
			{keywordItem("doc", "text", "龙傲天", 0.4)},
		}
		fused := FuseResults(semantic, keyword, 1, 1, 60)
		// One semantic entry plus one accumulated keyword entry.
		require.Len(t, fused, 2)
		var kw *SearchResult
		for i := range fused {
			if fused[i].SearchType == SearchTypeKeyword {
				kw = &fused[i]
			}
		}
		require.NotNil(t, kw)
		// Two rank-1 contributions at k=60 accumulate additively.
		assert.InDelta(t, 2.0/61.0, kw.Score, 1e-9)
	})
}

func TestFuseKeywordTouchFlipsSearchType(t *testing.T) {
	semantic := []SearchResult{semanticItem("a", "alpha")}
	keyword := [][]SearchResult{{keywordItem("b", "beta", "term", 0.4)}}

	fused := FuseResults(semantic, keyword, 0.5, 0.5, 60)
	types := map[string]SearchType{}
	for _, f := range fused {
		types[f.SourceID] = f.SearchType
	}
	assert.Equal(t, SearchTypeSemantic, types["a"])
	assert.Equal(t, SearchTypeKeyword, types["b"])
}

func TestFuseKeywordMetadataWins(t *testing.T) {
	// A keyword occurrence that lands on an existing key refreshes the
	// payload with its own text and metadata.
	semantic := []SearchResult{semanticItem("doc", "old text")}
	// Craft a keyword item whose composite key collides with the semantic
	// key "doc-0": source "doc" and joined terms "0".
	kw := keywordItem("doc", "new text", "0", 0.9)

	fused := FuseResults(semantic, [][]SearchResult{{kw}}, 0.5, 0.5, 60)
	require.Len(t, fused, 1)
	assert.Equal(t, "new text", fused[0].Text)
	assert.Equal(t, SearchTypeKeyword, fused[0].SearchType)
	assert.InDelta(t, 0.5/61.0+0.5/61.0, fused[0].Score, 1e-9)
}

func TestFuseDescendingOrder(t *testing.T) {
	semantic := []SearchResult{
		semanticItem("a", "first"),
		semanticItem("b", "second"),
		semanticItem("c", "third"),
	}
	keyword := [][]SearchResult{{keywordItem("c", "third", "t", 0.9)}}

	fused := FuseResults(semantic, keyword, 0.5, 0.5, 60)
	for i := 1; i < len(fused); i++ {
		assert.GreaterOrEqual(t, fused[i-1].Score, fused[i].Score)
	}
}

func TestFuseConfiguredWeightsChangeOrder(t *testing.T) {
	t.Setenv("PGRAG_WEIGHT_SEMANTIC", "0.1")
	t.Setenv("PGRAG_WEIGHT_KEYWORD", "0.9")

	cfg, err := FromEnv()
	require.NoError(t, err)

	semantic := []SearchResult{semanticItem("a", "alpha")}
	keyword := [][]SearchResult{{keywordItem("b", "beta", "term", 0.4)}}

	// With no per-request alpha the env-configured pair decides: a heavy
	// keyword weight puts the keyword hit first.
	wSem, wKw := cfg.FusionWeights(nil)
	fused := FuseResults(semantic, keyword, wSem, wKw, cfg.RRFK)
	require.Len(t, fused, 2)
	assert.Equal(t, "beta", fused[0].Text)

	// An explicit alpha overrides the configured pair.
	alpha := 0.9
	wSem, wKw = cfg.FusionWeights(&alpha)
	fused = FuseResults(semantic, keyword, wSem, wKw, cfg.RRFK)
	require.Len(t, fused, 2)
	assert.Equal(t, "alpha", fused[0].Text)
}

func TestFuseEmptyInputs(t *testing.T) {
	assert.Empty(t, FuseResults(nil, nil, 1, 1, 60))
	assert.Len(t, FuseResults(nil, [][]SearchResult{{keywordItem("a", "t", "x", 0.1)}}, 1, 1, 60), 1)
}
