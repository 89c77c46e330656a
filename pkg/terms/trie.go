package terms

// trie is a rune-level prefix tree used for longest-match term scanning.
// A fresh trie is built whenever the library reloads; once built it is
// read-only, so concurrent scans need no locking.
type trie struct {
	root *trieNode
	size int
}

type trieNode struct {
	children map[rune]*trieNode
	terminal bool
}

func newTrie() *trie {
	return &trie{root: &trieNode{}}
}

func (t *trie) insert(term string) {
	node := t.root
	for _, r := range term {
		child, ok := node.children[r]
		if !ok {
			if node.children == nil {
				node.children = make(map[rune]*trieNode)
			}
			child = &trieNode{}
			node.children[r] = child
		}
		node = child
	}
	if !node.terminal {
		node.terminal = true
		t.size++
	}
}

// longestMatch walks the trie from rs[start] and returns the length in runes
// of the longest inserted term starting there, or 0 when no term matches.
func (t *trie) longestMatch(rs []rune, start int) int {
	node := t.root
	best := 0
	for i := start; i < len(rs); i++ {
		child, ok := node.children[rs[i]]
		if !ok {
			break
		}
		node = child
		if node.terminal {
			best = i - start + 1
		}
	}
	return best
}

// scan performs a longest-match-at-each-start-position pass over rs and
// returns every matched term. Matches may overlap; the caller deduplicates.
func (t *trie) scan(rs []rune) []string {
	if t.size == 0 {
		return nil
	}
	var hits []string
	for i := 0; i < len(rs); i++ {
		if n := t.longestMatch(rs, i); n > 0 {
			hits = append(hits, string(rs[i:i+n]))
		}
	}
	return hits
}
