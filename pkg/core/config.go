package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/ragkit/pgrag/pkg/terms"
)

// Defaults for search tuning knobs.
const (
	DefaultHybridAlpha    = 0.5
	DefaultRRFK           = 60.0
	DefaultWeightSemantic = 0.5
	DefaultWeightKeyword  = 0.5
	DefaultPerTermLimit   = 1
	DefaultTopN           = 4

	// DefaultConnectTimeout bounds connection validation.
	DefaultConnectTimeout = 30 * time.Second

	// envPrefix namespaces every recognized environment variable.
	envPrefix = "PGRAG_"
)

// Config represents configuration options for the store. Values are resolved
// once at startup (explicitly or via FromEnv), never read from the ambient
// environment at call sites.
type Config struct {
	// DSN is the Postgres connection string.
	DSN string
	// Table is the embedding table name. Must be a plain SQL identifier.
	Table string
	// Dimensions is the vector dimensionality fixed at table creation.
	Dimensions int

	// MaxConns and MinConns size the connection pool.
	MaxConns int32
	MinConns int32
	// ConnectTimeout bounds ValidateConnection.
	ConnectTimeout time.Duration

	// HybridAlpha blends lexical rank (0) against vector similarity (1).
	HybridAlpha float64
	// RRFK is the rank-fusion dampening constant.
	RRFK float64
	// WeightSemantic and WeightKeyword are the RRF side weights used when a
	// search request carries no alpha override.
	WeightSemantic float64
	WeightKeyword  float64
	// PerTermLimit caps keyword hits considered per extracted probe term.
	// Deliberately small: precision over recall.
	PerTermLimit int

	// TextSearchConfig is the Postgres regconfig used for ts_rank and
	// tsquery construction. "simple" keeps CJK probe terms opaque.
	TextSearchConfig string

	// Terms configures the probe-term dictionary.
	Terms terms.Config

	// Debug enables verbose logging.
	Debug bool
}

// DefaultConfig returns a configuration with documented defaults.
func DefaultConfig() Config {
	return Config{
		Table:            "pgrag_embeddings",
		MaxConns:         10,
		MinConns:         1,
		ConnectTimeout:   DefaultConnectTimeout,
		HybridAlpha:      DefaultHybridAlpha,
		RRFK:             DefaultRRFK,
		WeightSemantic:   DefaultWeightSemantic,
		WeightKeyword:    DefaultWeightKeyword,
		PerTermLimit:     DefaultPerTermLimit,
		TextSearchConfig: "simple",
		Terms:            terms.DefaultConfig(),
	}
}

// FromEnv resolves configuration from PGRAG_-prefixed environment variables
// layered over the defaults.
//
// Recognized variables: PGRAG_DSN, PGRAG_TABLE, PGRAG_DIMENSIONS,
// PGRAG_HYBRID_ALPHA, PGRAG_RRF_K, PGRAG_WEIGHT_SEMANTIC,
// PGRAG_WEIGHT_KEYWORD, PGRAG_PER_TERM_LIMIT, PGRAG_TEXT_SEARCH_CONFIG,
// PGRAG_TERMS_INLINE, PGRAG_TERMS_FILE, PGRAG_TERMS_INCLUDE_LATIN,
// PGRAG_TERMS_MAX_CJK_LEN, PGRAG_DEBUG.
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	k := koanf.New(".")
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return cfg, fmt.Errorf("failed to load environment: %w", err)
	}

	if v := k.String("dsn"); v != "" {
		cfg.DSN = v
	}
	if v := k.String("table"); v != "" {
		cfg.Table = v
	}
	if v := k.Int("dimensions"); v > 0 {
		cfg.Dimensions = v
	}
	if k.Exists("hybrid_alpha") {
		cfg.HybridAlpha = ParseAlpha(k.String("hybrid_alpha"), DefaultHybridAlpha)
	}
	if v := k.Float64("rrf_k"); v > 0 {
		cfg.RRFK = v
	}
	if k.Exists("weight_semantic") {
		cfg.WeightSemantic = clamp01(k.Float64("weight_semantic"))
	}
	if k.Exists("weight_keyword") {
		cfg.WeightKeyword = clamp01(k.Float64("weight_keyword"))
	}
	if v := k.Int("per_term_limit"); v > 0 {
		cfg.PerTermLimit = v
	}
	if v := k.String("text_search_config"); v != "" {
		cfg.TextSearchConfig = v
	}
	if v := k.String("terms_inline"); v != "" {
		cfg.Terms.Inline = v
	}
	if v := k.String("terms_file"); v != "" {
		cfg.Terms.FilePath = v
	}
	if k.Exists("terms_include_latin") {
		cfg.Terms.IncludeLatin = k.Bool("terms_include_latin")
	}
	if v := k.Int("terms_max_cjk_len"); v > 0 {
		cfg.Terms.MaxCJKTermLen = v
	}
	if k.Exists("debug") {
		cfg.Debug = k.Bool("debug")
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.DSN == "" {
		return ErrMissingDSN
	}
	if c.Table == "" {
		return ErrMissingTable
	}
	if !isIdentifier(c.Table) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, c.Table)
	}
	return nil
}

// ParseAlpha parses a hybrid-weight value, clamping to [0,1]. Anything
// unparseable resolves to fallback, never NaN.
func ParseAlpha(raw string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return clamp01(fallback)
	}
	return clamp01(v)
}

// ResolveAlpha picks the hybrid weight: explicit argument first, then the
// configured default. Zero is a legitimate "lexical only" setting; the
// hard-coded 0.5 fallback is baked into DefaultConfig and ParseAlpha.
func (c Config) ResolveAlpha(explicit *float64) float64 {
	if explicit != nil {
		return clamp01(*explicit)
	}
	return clamp01(c.HybridAlpha)
}

// FusionWeights resolves the RRF side weights. A per-request alpha override
// wins and maps to (alpha, 1-alpha); otherwise the configured weight pair
// applies, so PGRAG_WEIGHT_SEMANTIC / PGRAG_WEIGHT_KEYWORD shift the fused
// ranking without touching the blend inside the hybrid SQL query.
func (c Config) FusionWeights(explicit *float64) (semantic, keyword float64) {
	if explicit != nil {
		a := clamp01(*explicit)
		return a, 1 - a
	}
	return clamp01(c.WeightSemantic), clamp01(c.WeightKeyword)
}

func clamp01(v float64) float64 {
	if v != v { // NaN
		return DefaultHybridAlpha
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
