package terms

import (
	"regexp"
	"strings"
	"unicode"
)

// Bracket and quote pairs that commonly delimit titles or proper names.
var spanPatterns = []*regexp.Regexp{
	regexp.MustCompile(`《([^《》]+)》`),
	regexp.MustCompile(`「([^「」]+)」`),
	regexp.MustCompile(`『([^『』]+)』`),
	regexp.MustCompile(`“([^“”]+)”`),
	regexp.MustCompile(`‘([^‘’]+)’`),
	regexp.MustCompile(`"([^"]+)"`),
	regexp.MustCompile(`'([^']+)'`),
}

// Marker phrases that introduce a name, followed by a short CJK span.
var markerPattern = regexp.MustCompile(
	`(?:名叫|名为|书名是|书名叫|叫做|小说|作品|文章)(\p{Han}{2,20})`)

// Title-like suffix characters for bare CJK runs.
const titleSuffixes = "传记录书篇志经诀典集法谱鉴策论"

// Generic nouns that never make useful probe terms.
var genericNouns = map[string]struct{}{
	"东西": {}, "事情": {}, "时候": {}, "地方": {}, "问题": {},
	"内容": {}, "名字": {}, "方面": {}, "情况": {}, "故事": {},
	"大家": {}, "所有": {}, "这个": {}, "那个": {}, "什么": {},
}

// Copula, connective and adverbial fragments whose presence marks a span as
// running prose rather than a name.
var proseFragments = []string{
	"是一个", "一本", "一部", "一篇", "就是", "也是",
	"因为", "所以", "但是", "然后", "如果", "虽然",
	"非常", "比较", "更加", "特别", "十分",
}

// Particles that end sentences, not names.
const trailingParticles = "了吗呢吧啊呀的么"

// Extract derives at most maxTerms probe terms from text. Dictionary matches
// (trie longest-match scan, then a naive contains fallback) always win;
// heuristic pattern extraction only runs when the dictionary produced
// nothing. A non-positive maxTerms uses the configured default.
func (l *Library) Extract(text string, maxTerms int) []string {
	if maxTerms <= 0 {
		maxTerms = l.cfg.DefaultMaxTerms
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	snap := l.load()

	if len(snap.terms) > 0 {
		if hits := l.dictionaryScan(snap, text); len(hits) > 0 {
			return dedupeAndLimit(hits, maxTerms)
		}
	}

	candidates := heuristicCandidates(text)
	var valid []string
	for _, c := range candidates {
		if l.isValidCandidate(c) {
			valid = append(valid, c)
		}
	}
	return dedupeAndLimit(valid, maxTerms)
}

// dictionaryScan runs the trie pass and, if that comes up empty, a naive
// substring scan over the full library (case-insensitive for Latin terms).
func (l *Library) dictionaryScan(snap *snapshot, text string) []string {
	runes := []rune(text)
	hits := snap.cjkTrie.scan(runes)

	if snap.latinTrie.size > 0 {
		lowered := []rune(lowerASCII(text))
		for _, hit := range snap.latinTrie.scan(lowered) {
			if orig, ok := snap.latinOrig[hit]; ok {
				hits = append(hits, orig)
			} else {
				hits = append(hits, hit)
			}
		}
	}
	if len(hits) > 0 {
		return hits
	}

	loweredText := lowerASCII(text)
	for _, term := range snap.terms {
		if containsCJK(term) {
			if strings.Contains(text, term) {
				hits = append(hits, term)
			}
		} else if strings.Contains(loweredText, lowerASCII(term)) {
			hits = append(hits, term)
		}
	}
	return hits
}

// heuristicCandidates collects name-like spans without any dictionary:
// delimited spans, marker-prefixed spans, and CJK runs carrying a title-like
// suffix.
func heuristicCandidates(text string) []string {
	var out []string

	for _, re := range spanPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			out = append(out, strings.TrimSpace(m[1]))
		}
	}

	for _, m := range markerPattern.FindAllStringSubmatch(text, -1) {
		out = append(out, trimAtConnective(m[1]))
	}

	for _, run := range cjkRuns(text, 2) {
		out = append(out, suffixCandidates(run)...)
	}

	return out
}

// trimAtConnective cuts a marker capture at the first genitive or connective
// character, so 名叫X的小说 yields X rather than the whole trailing clause.
func trimAtConnective(s string) string {
	if i := strings.IndexAny(s, "的之"); i >= 0 {
		return s[:i]
	}
	return s
}

// suffixCandidates finds sub-runs of 2..12 ideographs ending in a title-like
// suffix character.
func suffixCandidates(run string) []string {
	rs := []rune(run)
	var out []string
	for i, r := range rs {
		if !strings.ContainsRune(titleSuffixes, r) {
			continue
		}
		start := 0
		if i-11 > 0 {
			start = i - 11
		}
		if i+1-start >= 2 {
			out = append(out, string(rs[start:i+1]))
		}
	}
	return out
}

// isValidCandidate filters heuristic output only; dictionary hits are
// trusted as-is.
func (l *Library) isValidCandidate(c string) bool {
	rs := []rune(c)
	if len(rs) < 2 || len(rs) > l.cfg.MaxCJKTermLen {
		return false
	}
	if !containsCJK(c) {
		return false
	}
	if _, generic := genericNouns[c]; generic {
		return false
	}
	for _, frag := range proseFragments {
		if strings.Contains(c, frag) {
			return false
		}
	}
	if strings.ContainsRune(trailingParticles, rs[len(rs)-1]) {
		return false
	}
	for _, r := range rs {
		if unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
