package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarityFromDistance(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		expected float64
	}{
		{"zero distance is perfect", 0, 1},
		{"small distance", 0.1, 0.9},
		{"distance of one scores zero", 1, 0},
		{"distance above one clamps to zero", 1.7, 0},
		{"negative distance uses magnitude", -0.2, 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, similarityFromDistance(tt.distance), 1e-9)
		})
	}
}

func TestSimilarityMonotonic(t *testing.T) {
	// Closer rows must always score higher.
	d1, d2 := 0.2, 0.6
	assert.Greater(t, similarityFromDistance(d1), similarityFromDistance(d2))
}

func TestBuildResult(t *testing.T) {
	t.Run("full metadata", func(t *testing.T) {
		item := buildResult("id1", []byte(`{"text":"红楼梦简介","docId":"doc-7","author":"曹雪芹"}`))
		assert.Equal(t, "id1", item.ID)
		assert.Equal(t, "红楼梦简介", item.Text)
		assert.Equal(t, "doc-7", item.SourceID)
		assert.Equal(t, "曹雪芹", item.Metadata["author"])
	})

	t.Run("malformed metadata degrades to empty", func(t *testing.T) {
		item := buildResult("id2", []byte(`{broken`))
		assert.Equal(t, "id2", item.ID)
		assert.Empty(t, item.Text)
		assert.Empty(t, item.SourceID)
		assert.Nil(t, item.Metadata)
	})

	t.Run("nil metadata", func(t *testing.T) {
		item := buildResult("id3", nil)
		assert.Empty(t, item.Text)
	})
}

func TestSourceIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		metadata map[string]any
		expected string
	}{
		{"docId wins", map[string]any{"docId": "d", "source": "s", "title": "t"}, "d"},
		{"source next", map[string]any{"source": "s", "title": "t"}, "s"},
		{"title last", map[string]any{"title": "t"}, "t"},
		{"non-string skipped", map[string]any{"docId": 7, "source": "s"}, "s"},
		{"nothing derivable", map[string]any{"text": "x"}, ""},
		{"nil metadata", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sourceIdentifier(tt.metadata))
		})
	}
}
