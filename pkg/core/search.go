package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SimilaritySearch is the orchestrated query path: embed the query text, run
// the semantic (or hybrid-blended) search, optionally fan out per-term
// keyword searches, fuse the rankings, annotate matched terms and curate the
// final sources.
//
// A missing namespace returns an empty response with no error. Query-time
// failures are recovered into an empty response whose Message field carries
// the reason; configuration errors propagate.
func (s *PgStore) SimilaritySearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if req.Namespace == "" {
		return nil, wrapError("search", ErrMissingNamespace)
	}
	s.mu.RLock()
	embedder := s.embedder
	s.mu.RUnlock()
	if embedder == nil {
		return nil, wrapError("search", errors.New("no embedder configured"))
	}
	if req.TopN <= 0 {
		req.TopN = DefaultTopN
	}

	exists, err := s.NamespaceExists(ctx, req.Namespace)
	if err != nil {
		return s.recovered("namespace check failed", err), nil
	}
	if !exists {
		return &SearchResponse{}, nil
	}

	queryVec, err := embedder.Embed(ctx, req.Query)
	if err != nil {
		return s.recovered("failed to embed query", err), nil
	}

	alpha := s.config.ResolveAlpha(req.Alpha)

	var extracted []string
	if req.Hybrid {
		extracted = s.library.Extract(req.Query, 0)
	}

	// The semantic query and the per-term keyword queries are independent;
	// fusion waits for all of them.
	var (
		semantic     []SearchResult
		keywordLists = make([][]SearchResult, len(extracted))
	)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if req.Hybrid {
			semantic, err = s.HybridSemanticSearch(gctx, req.Namespace, queryVec,
				req.Query, req.TopN, req.Threshold, alpha, req.Exclude)
		} else {
			semantic, err = s.SemanticSearch(gctx, req.Namespace, queryVec,
				req.TopN, req.Threshold, req.Exclude)
		}
		return err
	})

	for i, term := range extracted {
		i, term := i, term
		g.Go(func() error {
			hits, err := s.KeywordSearch(gctx, req.Namespace, term,
				s.config.PerTermLimit, req.Threshold, req.Exclude)
			if err != nil {
				return err
			}
			keywordLists[i] = hits
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return s.recovered("search query failed", err), nil
	}

	var results []SearchResult
	if req.Hybrid {
		merged := mergeKeywordLists(keywordLists, req.TopN)
		wSem, wKw := s.config.FusionWeights(req.Alpha)
		results = FuseResults(semantic, merged, wSem, wKw, s.config.RRFK)
	} else {
		results = semantic
	}
	if len(results) > req.TopN {
		results = results[:req.TopN]
	}

	annotateMatches(results, extracted)

	resp := &SearchResponse{Sources: results}
	for _, r := range results {
		resp.ContextTexts = append(resp.ContextTexts, r.Text)
	}

	s.logger.Debug("similarity search completed",
		zap.String("namespace", req.Namespace),
		zap.Bool("hybrid", req.Hybrid),
		zap.Strings("terms", extracted),
		zap.Int("results", len(results)))
	return resp, nil
}

// recovered converts a query-time failure into an empty response with a
// message, after logging the structured cause.
func (s *PgStore) recovered(msg string, err error) *SearchResponse {
	s.logger.Error(msg, zap.Error(err))
	return &SearchResponse{Message: fmt.Sprintf("%s: %v", msg, err)}
}

// mergeKeywordLists flattens the per-term hit lists into fusion inputs:
// duplicates by source + term set collapse, the strongest keyword scores
// come first, and the total is capped at topN.
func mergeKeywordLists(lists [][]SearchResult, topN int) [][]SearchResult {
	type keyed struct {
		list int
		item SearchResult
	}
	seen := make(map[string]struct{})
	var flat []keyed
	for li, list := range lists {
		for _, item := range list {
			key := item.SourceID + "|" + strings.Join(item.MatchedTerms, ",")
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			flat = append(flat, keyed{list: li, item: item})
		}
	}

	sort.SliceStable(flat, func(i, j int) bool {
		return flat[i].item.KeywordScore > flat[j].item.KeywordScore
	})
	if topN > 0 && len(flat) > topN {
		flat = flat[:topN]
	}

	out := make([][]SearchResult, len(lists))
	for _, f := range flat {
		out[f.list] = append(out[f.list], f.item)
	}
	return out
}

// annotateMatches records which extracted terms literally occur in each
// result's text, case-insensitively for Latin terms.
func annotateMatches(results []SearchResult, extracted []string) {
	if len(extracted) == 0 {
		return
	}
	for i := range results {
		text := results[i].Text
		loweredText := strings.ToLower(text)
		var matched []string
		for _, term := range extracted {
			if strings.Contains(text, term) ||
				strings.Contains(loweredText, strings.ToLower(term)) {
				matched = append(matched, term)
			}
		}
		if len(matched) > 0 {
			results[i].MatchedTerms = matched
		}
	}
}
