package core

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
)

// similarityFromDistance converts a cosine distance into a similarity score
// clamped to [0,1]: distance >= 1 scores 0, and a (numerically) negative
// distance scores 1 - |d|.
func similarityFromDistance(distance float64) float64 {
	if distance < 0 {
		distance = -distance
	}
	sim := 1 - distance
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

// SemanticSearch orders a namespace by vector distance in a single query and
// converts distances to similarity scores. Rows below threshold and rows
// whose source identifier is excluded are dropped after scoring.
func (s *PgStore) SemanticSearch(ctx context.Context, namespace string, queryVec []float32, topN int, threshold float64, exclude []string) ([]SearchResult, error) {
	if namespace == "" {
		return nil, wrapError("semantic_search", ErrMissingNamespace)
	}
	if topN <= 0 {
		topN = DefaultTopN
	}

	pool, err := s.ready()
	if err != nil {
		return nil, wrapError("semantic_search", err)
	}

	query := fmt.Sprintf(`
		SELECT id, metadata, embedding <=> $1 AS distance
		FROM %s
		WHERE namespace = $2
		ORDER BY distance ASC
		LIMIT $3`, s.config.Table)

	rows, err := pool.Query(ctx, query, pgvector.NewVector(queryVec), namespace, topN)
	if err != nil {
		return nil, wrapError("semantic_search", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		item, distance, err := scanSearchRow(rows)
		if err != nil {
			s.logger.Warn("failed to scan semantic row", zap.Error(err))
			continue
		}

		item.VectorScore = similarityFromDistance(distance)
		item.Score = item.VectorScore
		item.SearchType = SearchTypeSemantic

		if item.Score < threshold {
			continue
		}
		if slices.Contains(exclude, item.SourceID) {
			continue
		}
		results = append(results, item)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("semantic_search", err)
	}
	return results, nil
}

// HybridSemanticSearch scores vector distance and lexical rank in one SQL
// query and orders rows by the blended score
// (1-alpha)*lexRank + alpha*max(0, 1-distance). A row passes the threshold
// when either side alone meets it; only the final score uses the blend.
func (s *PgStore) HybridSemanticSearch(ctx context.Context, namespace string, queryVec []float32, queryText string, topN int, threshold float64, alpha float64, exclude []string) ([]SearchResult, error) {
	if namespace == "" {
		return nil, wrapError("hybrid_search", ErrMissingNamespace)
	}
	if topN <= 0 {
		topN = DefaultTopN
	}
	alpha = clamp01(alpha)

	pool, err := s.ready()
	if err != nil {
		return nil, wrapError("hybrid_search", err)
	}

	query := fmt.Sprintf(`
		SELECT id, metadata,
			embedding <=> $1 AS distance,
			ts_rank(
				to_tsvector($4::regconfig, coalesce(metadata->>'text', '')),
				plainto_tsquery($4::regconfig, $3)
			) AS lex_rank
		FROM %s
		WHERE namespace = $2
		ORDER BY ((1 - $5::float8) * ts_rank(
				to_tsvector($4::regconfig, coalesce(metadata->>'text', '')),
				plainto_tsquery($4::regconfig, $3)
			) + $5::float8 * GREATEST(0, 1 - (embedding <=> $1))) DESC
		LIMIT $6`, s.config.Table)

	rows, err := pool.Query(ctx, query,
		pgvector.NewVector(queryVec), namespace, queryText,
		s.config.TextSearchConfig, alpha, topN)
	if err != nil {
		return nil, wrapError("hybrid_search", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			id           string
			metadataJSON []byte
			distance     float64
			lexRank      float64
		)
		if err := rows.Scan(&id, &metadataJSON, &distance, &lexRank); err != nil {
			s.logger.Warn("failed to scan hybrid row", zap.Error(err))
			continue
		}

		item := buildResult(id, metadataJSON)
		item.VectorScore = similarityFromDistance(distance)
		item.KeywordScore = lexRank
		item.Score = (1-alpha)*lexRank + alpha*item.VectorScore
		item.SearchType = SearchTypeSemantic

		// Pass/fail uses the stronger individual signal, not the blend.
		if max(item.VectorScore, lexRank) < threshold {
			continue
		}
		if slices.Contains(exclude, item.SourceID) {
			continue
		}
		results = append(results, item)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("hybrid_search", err)
	}
	return results, nil
}

// KeywordSearch ranks a namespace by full-text relevance against a single
// probe term. Non-positive ranks are discarded; threshold and exclusion
// behave exactly as in semantic search. An empty term returns empty
// immediately.
func (s *PgStore) KeywordSearch(ctx context.Context, namespace, term string, topN int, threshold float64, exclude []string) ([]SearchResult, error) {
	if namespace == "" {
		return nil, wrapError("keyword_search", ErrMissingNamespace)
	}
	if term == "" {
		return nil, nil
	}
	if topN <= 0 {
		topN = DefaultTopN
	}

	pool, err := s.ready()
	if err != nil {
		return nil, wrapError("keyword_search", err)
	}

	query := fmt.Sprintf(`
		SELECT id, metadata,
			ts_rank(
				to_tsvector($3::regconfig, coalesce(metadata->>'text', '')),
				plainto_tsquery($3::regconfig, $2)
			) AS rank
		FROM %s
		WHERE namespace = $1
			AND to_tsvector($3::regconfig, coalesce(metadata->>'text', '')) @@ plainto_tsquery($3::regconfig, $2)
		ORDER BY rank DESC
		LIMIT $4`, s.config.Table)

	rows, err := pool.Query(ctx, query, namespace, term, s.config.TextSearchConfig, topN)
	if err != nil {
		return nil, wrapError("keyword_search", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			id           string
			metadataJSON []byte
			rank         float64
		)
		if err := rows.Scan(&id, &metadataJSON, &rank); err != nil {
			s.logger.Warn("failed to scan keyword row", zap.Error(err))
			continue
		}
		if rank <= 0 {
			continue
		}

		item := buildResult(id, metadataJSON)
		item.KeywordScore = rank
		item.Score = rank
		item.SearchType = SearchTypeKeyword
		item.MatchedTerms = []string{term}

		if item.Score < threshold {
			continue
		}
		if slices.Contains(exclude, item.SourceID) {
			continue
		}
		results = append(results, item)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("keyword_search", err)
	}
	return results, nil
}

// scanSearchRow reads the (id, metadata, distance) projection.
func scanSearchRow(rows pgx.Rows) (SearchResult, float64, error) {
	var (
		id           string
		metadataJSON []byte
		distance     float64
	)
	if err := rows.Scan(&id, &metadataJSON, &distance); err != nil {
		return SearchResult{}, 0, err
	}
	return buildResult(id, metadataJSON), distance, nil
}

// buildResult decodes the metadata document and derives the result's text
// and source identity. Undecodable metadata degrades to an empty document
// rather than failing the row.
func buildResult(id string, metadataJSON []byte) SearchResult {
	var metadata map[string]any
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			metadata = nil
		}
	}
	return SearchResult{
		ID:       id,
		Text:     metadataText(metadata),
		Metadata: metadata,
		SourceID: sourceIdentifier(metadata),
	}
}
