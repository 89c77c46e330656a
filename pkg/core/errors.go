package core

import (
	"errors"
	"fmt"
)

// Sentinel errors, matchable with errors.Is through any StoreError wrapping.
var (
	// ErrInvalidDimension reports a vector whose length disagrees with the
	// table's fixed dimensionality.
	ErrInvalidDimension = errors.New("invalid vector dimension")

	// ErrStoreClosed reports use after Close.
	ErrStoreClosed = errors.New("store is closed")

	ErrMissingDSN       = errors.New("connection string is required")
	ErrMissingTable     = errors.New("table name is required")
	ErrMissingNamespace = errors.New("namespace is required")

	// ErrInvalidIdentifier rejects table names carrying anything outside
	// [A-Za-z0-9_]; table names are interpolated into SQL, never bound.
	ErrInvalidIdentifier = errors.New("invalid SQL identifier")

	// ErrSchemaMismatch reports an existing table whose columns do not fit
	// the embedding layout.
	ErrSchemaMismatch = errors.New("table schema mismatch")
)

// StoreError tags an error with the store operation that produced it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("pgrag: %v", e.Err)
	}
	return fmt.Sprintf("pgrag: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is delegates matching to the wrapped error so sentinels stay reachable.
func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
