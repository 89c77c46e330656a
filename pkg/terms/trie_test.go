package terms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrieLongestMatch(t *testing.T) {
	tr := newTrie()
	tr.insert("龙傲")
	tr.insert("龙傲天")
	tr.insert("天下")

	tests := []struct {
		name     string
		input    string
		start    int
		expected int
	}{
		{"longest wins over prefix", "龙傲天下山", 0, 3},
		{"match at interior offset", "龙傲天下山", 2, 2},
		{"no match", "山下龙", 0, 0},
		{"start past end", "龙", 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tr.longestMatch([]rune(tt.input), tt.start))
		})
	}
}

func TestTrieScan(t *testing.T) {
	tr := newTrie()
	tr.insert("红楼梦")
	tr.insert("西游记")

	hits := tr.scan([]rune("我读了红楼梦和西游记"))
	assert.Equal(t, []string{"红楼梦", "西游记"}, hits)
}

func TestTrieEmpty(t *testing.T) {
	tr := newTrie()
	assert.Nil(t, tr.scan([]rune("红楼梦")))
	assert.Zero(t, tr.size)
}

func TestTrieDuplicateInsert(t *testing.T) {
	tr := newTrie()
	tr.insert("红楼梦")
	tr.insert("红楼梦")
	assert.Equal(t, 1, tr.size)
}
