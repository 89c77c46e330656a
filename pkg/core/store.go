package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"go.uber.org/zap"

	"github.com/ragkit/pgrag/pkg/terms"
)

// PgStore implements the retrieval engine on PostgreSQL + pgvector.
type PgStore struct {
	config   Config
	pool     *pgxpool.Pool
	library  *terms.Library
	embedder Embedder
	logger   *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// New creates a store from cfg. The connection is not opened until Init.
func New(cfg Config, opts ...Option) (*PgStore, error) {
	if err := cfg.validate(); err != nil {
		return nil, wrapError("init", err)
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}

	s := &PgStore{
		config: cfg,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.library == nil {
		s.library = terms.NewLibrary(cfg.Terms, s.logger)
	}
	return s, nil
}

// Option customizes a PgStore.
type Option func(*PgStore)

// WithLogger attaches a zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *PgStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEmbedder attaches the external embedding collaborator.
func WithEmbedder(e Embedder) Option {
	return func(s *PgStore) { s.embedder = e }
}

// SetEmbedder replaces the embedding collaborator after construction.
func (s *PgStore) SetEmbedder(e Embedder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embedder = e
}

// WithTermLibrary overrides the probe-term dictionary.
func WithTermLibrary(l *terms.Library) Option {
	return func(s *PgStore) { s.library = l }
}

// Init opens the connection pool, enables the vector extension and ensures
// the embedding table exists with the configured dimensionality. An existing
// table is validated against the expected schema instead.
func (s *PgStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("init", ErrStoreClosed)
	}
	if s.pool != nil {
		return nil
	}

	poolCfg, err := pgxpool.ParseConfig(s.config.DSN)
	if err != nil {
		return wrapError("init", fmt.Errorf("invalid connection string: %w", err))
	}
	poolCfg.MaxConns = s.config.MaxConns
	poolCfg.MinConns = s.config.MinConns
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return wrapError("init", fmt.Errorf("failed to open pool: %w", err))
	}

	if err := s.ensureSchema(ctx, pool); err != nil {
		pool.Close()
		return wrapError("init", err)
	}

	s.pool = pool
	s.logger.Debug("store initialized",
		zap.String("table", s.config.Table),
		zap.Int("dimensions", s.config.Dimensions))
	return nil
}

// Close releases the connection pool. Safe to call more than once.
func (s *PgStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
	return nil
}

// Library exposes the store's probe-term dictionary.
func (s *PgStore) Library() *terms.Library {
	return s.library
}

// ready returns the pool or an error when the store is unusable. Callers
// hold no lock during queries; the pool is safe for concurrent use.
func (s *PgStore) ready() (*pgxpool.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	if s.pool == nil {
		return nil, errors.New("store not initialized")
	}
	return s.pool, nil
}

// ValidateConnection races a real connect-and-ping against the configured
// hard timeout. Failures come back as a structured result, not an error:
// timeouts yield the distinct "timeout" message and refused connections are
// translated into something actionable. Any half-open pool is closed on
// every path.
func (s *PgStore) ValidateConnection(ctx context.Context) ValidationResult {
	type outcome struct {
		pool *pgxpool.Pool
		err  error
	}

	timeout := s.config.ConnectTimeout
	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		poolCfg, err := pgxpool.ParseConfig(s.config.DSN)
		if err != nil {
			done <- outcome{err: err}
			return
		}
		pool, err := pgxpool.NewWithConfig(attemptCtx, poolCfg)
		if err != nil {
			done <- outcome{err: err}
			return
		}
		if err := pool.Ping(attemptCtx); err != nil {
			pool.Close()
			done <- outcome{err: err}
			return
		}
		done <- outcome{pool: pool}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		if out.err != nil {
			return ValidationResult{Error: translateConnError(out.err)}
		}
		out.pool.Close()
		return ValidationResult{Success: true}
	case <-timer.C:
		cancel()
		// Reap the pool once the attempt unblocks so nothing leaks.
		go func() {
			if out := <-done; out.pool != nil {
				out.pool.Close()
			}
		}()
		return ValidationResult{Error: "timeout"}
	case <-ctx.Done():
		go func() {
			if out := <-done; out.pool != nil {
				out.pool.Close()
			}
		}()
		return ValidationResult{Error: translateConnError(ctx.Err())}
	}
}

// translateConnError converts driver errors into user-facing messages.
func translateConnError(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return "connection refused: is the database running and reachable at the configured address?"
	case strings.Contains(msg, "password authentication failed"):
		return "authentication failed: check the configured credentials"
	case strings.Contains(msg, "does not exist") && strings.Contains(msg, "database"):
		return "database does not exist: create it before connecting"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return msg
	}
}
