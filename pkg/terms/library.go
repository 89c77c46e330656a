// Package terms maintains a dictionary of known entity terms and extracts a
// small set of high-signal probe terms from free text. Extraction prefers
// dictionary hits found via a longest-match trie scan and falls back to
// heuristic pattern extraction (quoted spans, marker prefixes, title-like
// suffixes) when the dictionary yields nothing.
package terms

import (
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Config controls library parsing and term extraction.
type Config struct {
	// Inline is a raw dictionary value supplied directly by configuration.
	// Parsed once; ignored when FilePath is set.
	Inline string
	// FilePath points at a dictionary file. The file is re-read only when
	// its modification time changes.
	FilePath string
	// IncludeLatin adds English/Latin dictionary terms in line-oriented
	// parse mode.
	IncludeLatin bool
	// MaxCJKTermLen caps the rune length of heuristically extracted CJK
	// candidates.
	MaxCJKTermLen int
	// MaxLibraryTerms caps the parsed dictionary size.
	MaxLibraryTerms int
	// DefaultMaxTerms is the extraction cap used when the caller passes a
	// non-positive maxTerms.
	DefaultMaxTerms int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxCJKTermLen:   20,
		MaxLibraryTerms: 1000,
		DefaultMaxTerms: 3,
	}
}

func (c *Config) applyDefaults() {
	if c.MaxCJKTermLen <= 0 {
		c.MaxCJKTermLen = 20
	}
	if c.MaxLibraryTerms <= 0 {
		c.MaxLibraryTerms = 1000
	}
	if c.DefaultMaxTerms <= 0 {
		c.DefaultMaxTerms = 3
	}
}

// snapshot is an immutable parsed dictionary plus its search tries. Reloads
// build a fresh snapshot and swap the pointer, so concurrent readers never
// observe a half-built state.
type snapshot struct {
	terms     []string
	cjkTrie   *trie
	latinTrie *trie
	// latinOrig maps lowercased Latin terms back to their library casing.
	latinOrig map[string]string
	mtime     time.Time
}

// Library is the process-wide term dictionary. Lazily loaded on first use
// and rebuilt wholesale when the backing file's mtime changes.
type Library struct {
	cfg    Config
	logger *zap.Logger

	mu      sync.Mutex // serializes rebuilds
	current atomic.Pointer[snapshot]
}

// NewLibrary creates a library from cfg. A nil logger is replaced with a nop.
func NewLibrary(cfg Config, logger *zap.Logger) *Library {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Library{cfg: cfg, logger: logger}
}

// Terms returns the current dictionary contents, loading or reloading it
// first if necessary.
func (l *Library) Terms() []string {
	return l.load().terms
}

// load returns the current snapshot, rebuilding it when the library has
// never been loaded or the backing file changed on disk.
func (l *Library) load() *snapshot {
	cur := l.current.Load()

	if l.cfg.FilePath == "" {
		// Inline mode: parsed once, reused for the process lifetime.
		if cur != nil {
			return cur
		}
		return l.rebuild(time.Time{})
	}

	info, err := os.Stat(l.cfg.FilePath)
	if err != nil {
		if cur != nil {
			return cur
		}
		l.logger.Warn("term library file unavailable",
			zap.String("path", l.cfg.FilePath), zap.Error(err))
		return l.rebuild(time.Time{})
	}

	if cur != nil && cur.mtime.Equal(info.ModTime()) {
		return cur
	}
	return l.rebuild(info.ModTime())
}

func (l *Library) rebuild(mtime time.Time) *snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Another goroutine may have finished the same rebuild while we waited.
	if cur := l.current.Load(); cur != nil {
		if l.cfg.FilePath == "" || cur.mtime.Equal(mtime) {
			return cur
		}
	}

	source := l.cfg.Inline
	if l.cfg.FilePath != "" {
		data, err := os.ReadFile(l.cfg.FilePath)
		if err != nil {
			l.logger.Warn("failed to read term library file",
				zap.String("path", l.cfg.FilePath), zap.Error(err))
			data = nil
		}
		source = string(data)
	}

	parsed := parseLibrary(source, l.cfg)
	parsed = dedupeAndLimit(parsed, l.cfg.MaxLibraryTerms)
	if len(parsed) == 0 && source != "" {
		l.logger.Warn("term library parsed to zero terms",
			zap.Int("sourceBytes", len(source)))
	}

	snap := &snapshot{
		terms:     parsed,
		cjkTrie:   newTrie(),
		latinTrie: newTrie(),
		latinOrig: make(map[string]string),
		mtime:     mtime,
	}
	for _, term := range parsed {
		if containsCJK(term) {
			snap.cjkTrie.insert(term)
		} else {
			lowered := lowerASCII(term)
			snap.latinTrie.insert(lowered)
			snap.latinOrig[lowered] = term
		}
	}

	l.current.Store(snap)
	l.logger.Debug("term library loaded", zap.Int("terms", len(parsed)))
	return snap
}
