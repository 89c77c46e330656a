package sanitize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCleanString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain text unchanged",
			input:    "hello world",
			expected: "hello world",
		},
		{
			name:     "nul bytes removed",
			input:    "hel\x00lo\x00",
			expected: "hello",
		},
		{
			name:     "tab newline carriage return preserved",
			input:    "a\tb\nc\rd",
			expected: "a\tb\nc\rd",
		},
		{
			name:     "other control characters removed",
			input:    "a\x01b\x08c\x1fd",
			expected: "abcd",
		},
		{
			name:     "cjk text preserved",
			input:    "红楼梦\x00简介",
			expected: "红楼梦简介",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Clean(tt.input))
		})
	}
}

func TestCleanNested(t *testing.T) {
	input := map[string]any{
		"text":  "chunk\x00 one",
		"tags":  []any{"a\x01", "b", 3.5},
		"count": 42,
		"inner": map[string]any{
			"title": "第\x00一章",
		},
	}

	got := Clean(input).(map[string]any)

	assert.Equal(t, "chunk one", got["text"])
	assert.Equal(t, []any{"a", "b", 3.5}, got["tags"])
	assert.Equal(t, 42, got["count"])
	assert.Equal(t, "第一章", got["inner"].(map[string]any)["title"])
}

func TestCleanTime(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-01T12:30:00Z", Clean(ts))
}

func TestCleanIdempotent(t *testing.T) {
	inputs := []any{
		"pl\x00ain",
		map[string]any{"k": "v\x02", "n": []any{"x\x00y"}},
		[]any{1, "two\x1f", true},
		nil,
		3.14,
	}

	for _, in := range inputs {
		once := Clean(in)
		assert.Equal(t, once, Clean(once))
	}
}

func TestCleanMapNil(t *testing.T) {
	assert.Nil(t, CleanMap(nil))
}
