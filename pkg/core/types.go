package core

import "context"

// SearchType labels which retrieval path produced a result.
type SearchType string

const (
	SearchTypeSemantic SearchType = "semantic"
	SearchTypeKeyword  SearchType = "keyword"
)

// EmbeddingRow is one persisted chunk: a vector plus its metadata document.
// Metadata is schema-less apart from the "text" field holding the chunk's
// source text; everything else passes through opaquely.
type EmbeddingRow struct {
	ID       string         `json:"id"`
	Vector   []float32      `json:"vector"`
	Metadata map[string]any `json:"metadata"`
}

// SearchResult is a transient per-query result item.
type SearchResult struct {
	ID           string         `json:"id"`
	Text         string         `json:"text"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Score        float64        `json:"score"`
	VectorScore  float64        `json:"vectorScore,omitempty"`
	KeywordScore float64        `json:"keywordScore,omitempty"`
	MatchedTerms []string       `json:"matchedTerms,omitempty"`
	SearchType   SearchType     `json:"searchType"`

	// SourceID is the derived identity of the originating document, used
	// for deduplication and pinned-source filtering.
	SourceID string `json:"-"`
}

// SearchRequest drives one orchestrated similarity search.
type SearchRequest struct {
	Namespace string
	Query     string
	TopN      int
	Threshold float64
	// Exclude lists source identifiers to drop (pinned/filtered sources).
	Exclude []string
	// Hybrid enables lexical blending, term extraction and rank fusion.
	Hybrid bool
	// Alpha overrides the configured hybrid weight when non-nil.
	Alpha *float64
}

// SearchResponse is the curated output of a similarity search. A non-empty
// Message signals a recovered search failure; callers must check it to tell
// "no results" apart from "error, no results".
type SearchResponse struct {
	ContextTexts []string       `json:"contextTexts"`
	Sources      []SearchResult `json:"sources"`
	Message      string         `json:"message,omitempty"`
}

// NamespaceStats reports the size of one namespace.
type NamespaceStats struct {
	Name        string `json:"name"`
	VectorCount int64  `json:"vectorCount"`
}

// ValidationResult is the structured outcome of ValidateConnection.
type ValidationResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Embedder converts text into a dense vector. Embedding generation is an
// external collaborator; this core only consumes vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbedderFunc adapts a function to the Embedder interface.
type EmbedderFunc func(ctx context.Context, text string) ([]float32, error)

// Embed implements Embedder.
func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// sourceIdentifier derives the stable identity of a metadata document. The
// first populated field wins; chunks of the same document share one source.
func sourceIdentifier(metadata map[string]any) string {
	for _, key := range []string{"docId", "source", "title"} {
		if v, ok := metadata[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// metadataText pulls the chunk text out of a metadata document.
func metadataText(metadata map[string]any) string {
	if v, ok := metadata["text"]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
