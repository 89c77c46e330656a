package terms

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newInlineLibrary(t *testing.T, inline string, mutate ...func(*Config)) *Library {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Inline = inline
	for _, m := range mutate {
		m(&cfg)
	}
	return NewLibrary(cfg, zap.NewNop())
}

func TestParseJSONArray(t *testing.T) {
	lib := newInlineLibrary(t, `[
		{"chinese": "龙傲天", "english": "Long Aotian"},
		{"chinese": "斗破苍穹/萧炎", "english": ""}
	]`)

	got := lib.Terms()
	assert.ElementsMatch(t, []string{"龙傲天", "斗破苍穹", "萧炎", "Long Aotian"}, got)
}

func TestParseLineOrientedJSON(t *testing.T) {
	inline := `{"chinese": "红楼梦、石头记", "english": "Dream of the Red Chamber"}
{"chinese": "三国演义"}
not json at all，三国志`

	t.Run("latin excluded by default", func(t *testing.T) {
		lib := newInlineLibrary(t, inline)
		assert.ElementsMatch(t, []string{"红楼梦", "石头记", "三国演义", "三国志"}, lib.Terms())
	})

	t.Run("latin included with flag", func(t *testing.T) {
		lib := newInlineLibrary(t, inline, func(c *Config) { c.IncludeLatin = true })
		assert.Contains(t, lib.Terms(), "Dream of the Red Chamber")
	})
}

func TestParsePlainLines(t *testing.T) {
	lib := newInlineLibrary(t, "西游记,水浒传;金瓶梅|abc")
	assert.ElementsMatch(t, []string{"西游记", "水浒传", "金瓶梅"}, lib.Terms())
}

func TestParseMalformedLinesSkipped(t *testing.T) {
	lib := newInlineLibrary(t, "{broken json\n{\"chinese\": \"封神演义\"}")
	assert.Equal(t, []string{"封神演义"}, lib.Terms())
}

func TestDedupeAndLimit(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		max      int
		expected []string
	}{
		{
			name:     "substring suppressed by longer term",
			input:    []string{"龙傲", "龙傲天"},
			max:      10,
			expected: []string{"龙傲天"},
		},
		{
			name:     "duplicates collapse",
			input:    []string{"萧炎", "萧炎", "萧炎"},
			max:      10,
			expected: []string{"萧炎"},
		},
		{
			name:     "limit enforced after sorting",
			input:    []string{"aa", "bbbb", "ccc"},
			max:      2,
			expected: []string{"bbbb", "ccc"},
		},
		{
			name:     "empty input",
			input:    nil,
			max:      5,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, dedupeAndLimit(tt.input, tt.max))
		})
	}
}

func TestExtractTrieLongestMatch(t *testing.T) {
	lib := newInlineLibrary(t, "龙傲天,龙傲")

	got := lib.Extract("龙傲天出现了", 3)
	assert.Equal(t, []string{"龙傲天"}, got)
}

func TestExtractLatinCaseInsensitive(t *testing.T) {
	lib := newInlineLibrary(t, `[{"chinese": "", "english": "Gandalf"}]`)

	got := lib.Extract("what did GANDALF say", 3)
	assert.Equal(t, []string{"Gandalf"}, got)
}

func TestExtractHeuristicFallback(t *testing.T) {
	lib := newInlineLibrary(t, "完全无关的词条")

	got := lib.Extract("《斗破苍穹》讲述了少年的故事", 3)
	assert.Contains(t, got, "斗破苍穹")
}

func TestExtractHeuristicMarkers(t *testing.T) {
	lib := newInlineLibrary(t, "")

	// The capture after 名叫 stops at the genitive 的, so the trailing
	// clause 的小说 never leaks into the term.
	got := lib.Extract("有一本书名叫凡人修仙传的小说", 3)
	assert.Equal(t, []string{"凡人修仙传"}, got)
}

func TestExtractRejectsMeasureWordSpans(t *testing.T) {
	lib := newInlineLibrary(t, "")

	// 有一本书 ends in a title-like suffix but is a measure-word phrase,
	// not a name.
	assert.Empty(t, lib.Extract("他有一本书在桌上", 3))
}

func TestExtractHeuristicSuffix(t *testing.T) {
	lib := newInlineLibrary(t, "")

	got := lib.Extract("他读过 射雕英雄传 之后很感动", 3)
	assert.Contains(t, got, "射雕英雄传")
}

func TestExtractDictionaryPrecedence(t *testing.T) {
	// Quoted title present, but the dictionary also matches: the dictionary
	// hit must win and suppress heuristic extraction entirely.
	lib := newInlineLibrary(t, "萧炎")

	got := lib.Extract("《斗破苍穹》的主角是萧炎", 3)
	assert.Equal(t, []string{"萧炎"}, got)
}

func TestExtractRejectsProse(t *testing.T) {
	lib := newInlineLibrary(t, "")

	tests := []struct {
		name string
		text string
	}{
		{"copula span", "“这是一个故事”很普通"},
		{"generic noun", "“东西”不值钱"},
		{"trailing particle", "“他走了”之后"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, lib.Extract(tt.text, 3))
		})
	}
}

func TestExtractMaxTerms(t *testing.T) {
	lib := newInlineLibrary(t, "红楼梦,西游记,水浒传,三国演义")

	got := lib.Extract("红楼梦西游记水浒传三国演义都是名著", 2)
	assert.Len(t, got, 2)
}

func TestExtractEmptyInput(t *testing.T) {
	lib := newInlineLibrary(t, "红楼梦")
	assert.Empty(t, lib.Extract("   ", 3))
}

func TestFileReloadOnMtimeChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "terms.txt")
	require.NoError(t, os.WriteFile(path, []byte("红楼梦"), 0o644))

	cfg := DefaultConfig()
	cfg.FilePath = path
	lib := NewLibrary(cfg, zap.NewNop())

	assert.Equal(t, []string{"红楼梦"}, lib.Terms())

	// Rewrite with a newer mtime; the library must pick up the change.
	require.NoError(t, os.WriteFile(path, []byte("西游记"), 0o644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	assert.Equal(t, []string{"西游记"}, lib.Terms())
}

func TestFileMissingFallsBackEmpty(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FilePath = filepath.Join(t.TempDir(), "absent.txt")
	lib := NewLibrary(cfg, zap.NewNop())

	assert.Empty(t, lib.Terms())
	// Extraction still works via heuristics.
	assert.Contains(t, lib.Extract("《斗破苍穹》讲述了一个故事", 3), "斗破苍穹")
}
