package core

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/ragkit/pgrag/internal/sanitize"
)

// UpsertBatch inserts rows into a namespace inside one transaction, in input
// order. On any row failure the whole batch rolls back. The public contract
// is a bare boolean for compatibility; the structured cause is logged, never
// discarded silently.
func (s *PgStore) UpsertBatch(ctx context.Context, namespace string, rows []EmbeddingRow, dimensions int) bool {
	if err := s.upsertBatch(ctx, namespace, rows, dimensions); err != nil {
		s.logger.Error("batch upsert failed",
			zap.String("namespace", namespace),
			zap.Int("rows", len(rows)),
			zap.Error(err))
		return false
	}
	return true
}

func (s *PgStore) upsertBatch(ctx context.Context, namespace string, rows []EmbeddingRow, dimensions int) error {
	if namespace == "" {
		return wrapError("upsert_batch", ErrMissingNamespace)
	}
	if len(rows) == 0 {
		return nil
	}
	if dimensions <= 0 {
		dimensions = s.config.Dimensions
	}

	// Validate up front so the transaction never starts doomed.
	for _, row := range rows {
		if len(row.Vector) != dimensions {
			return wrapError("upsert_batch", fmt.Errorf("%w: row %s has %d dimensions, table expects %d",
				ErrInvalidDimension, row.ID, len(row.Vector), dimensions))
		}
		if row.ID != "" {
			if _, err := uuid.Parse(row.ID); err != nil {
				return wrapError("upsert_batch", fmt.Errorf("row id %q is not a valid uuid: %w", row.ID, err))
			}
		}
	}

	pool, err := s.ready()
	if err != nil {
		return wrapError("upsert_batch", err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return wrapError("upsert_batch", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := fmt.Sprintf(
		"INSERT INTO %s (id, namespace, embedding, metadata) VALUES ($1, $2, $3, $4)",
		s.config.Table)

	for _, row := range rows {
		id := row.ID
		if id == "" {
			id = uuid.NewString()
		}

		metadata, err := json.Marshal(sanitize.CleanMap(row.Metadata))
		if err != nil {
			return wrapError("upsert_batch", fmt.Errorf("failed to encode metadata for row %s: %w", id, err))
		}

		if _, err := tx.Exec(ctx, query, id, namespace, pgvector.NewVector(row.Vector), metadata); err != nil {
			return wrapError("upsert_batch", fmt.Errorf("failed to insert row %s: %w", id, err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapError("upsert_batch", fmt.Errorf("failed to commit batch: %w", err))
	}

	s.logger.Debug("batch upserted",
		zap.String("namespace", namespace), zap.Int("rows", len(rows)))
	return nil
}

// DeleteByIDs removes rows by primary key in one transaction; a partial
// failure rolls back the whole delete and propagates.
func (s *PgStore) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pool, err := s.ready()
	if err != nil {
		return wrapError("delete_by_ids", err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return wrapError("delete_by_ids", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := fmt.Sprintf("DELETE FROM %s WHERE id = ANY($1)", s.config.Table)
	if _, err := tx.Exec(ctx, query, ids); err != nil {
		return wrapError("delete_by_ids", fmt.Errorf("failed to delete rows: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapError("delete_by_ids", fmt.Errorf("failed to commit delete: %w", err))
	}
	return nil
}

// DeleteDocument removes every chunk of a document from a namespace,
// matching on the derived source identity fields. Boolean contract like
// UpsertBatch; the cause is logged.
func (s *PgStore) DeleteDocument(ctx context.Context, namespace, docID string) bool {
	if err := s.deleteDocument(ctx, namespace, docID); err != nil {
		s.logger.Error("document delete failed",
			zap.String("namespace", namespace),
			zap.String("docId", docID),
			zap.Error(err))
		return false
	}
	return true
}

func (s *PgStore) deleteDocument(ctx context.Context, namespace, docID string) error {
	if namespace == "" {
		return wrapError("delete_document", ErrMissingNamespace)
	}
	if docID == "" {
		return wrapError("delete_document", fmt.Errorf("document id is required"))
	}

	pool, err := s.ready()
	if err != nil {
		return wrapError("delete_document", err)
	}

	query := fmt.Sprintf(
		"DELETE FROM %s WHERE namespace = $1 AND (metadata->>'docId' = $2 OR metadata->>'source' = $2)",
		s.config.Table)
	tag, err := pool.Exec(ctx, query, namespace, docID)
	if err != nil {
		return wrapError("delete_document", err)
	}

	s.logger.Debug("document deleted",
		zap.String("namespace", namespace),
		zap.String("docId", docID),
		zap.Int64("rows", tag.RowsAffected()))
	return nil
}

// DeleteNamespace removes every row in a namespace and reports the affected
// count.
func (s *PgStore) DeleteNamespace(ctx context.Context, namespace string) (int64, error) {
	if namespace == "" {
		return 0, wrapError("delete_namespace", ErrMissingNamespace)
	}

	pool, err := s.ready()
	if err != nil {
		return 0, wrapError("delete_namespace", err)
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE namespace = $1", s.config.Table)
	tag, err := pool.Exec(ctx, query, namespace)
	if err != nil {
		return 0, wrapError("delete_namespace", err)
	}
	return tag.RowsAffected(), nil
}

// NamespaceExists reports whether any row belongs to the namespace. A
// namespace has no row of its own; it exists through membership.
func (s *PgStore) NamespaceExists(ctx context.Context, namespace string) (bool, error) {
	if namespace == "" {
		return false, wrapError("namespace_exists", ErrMissingNamespace)
	}

	pool, err := s.ready()
	if err != nil {
		return false, wrapError("namespace_exists", err)
	}

	var exists bool
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE namespace = $1)", s.config.Table)
	if err := pool.QueryRow(ctx, query, namespace).Scan(&exists); err != nil {
		return false, wrapError("namespace_exists", err)
	}
	return exists, nil
}

// NamespaceCount returns the number of rows in a namespace.
func (s *PgStore) NamespaceCount(ctx context.Context, namespace string) (int64, error) {
	if namespace == "" {
		return 0, wrapError("namespace_count", ErrMissingNamespace)
	}

	pool, err := s.ready()
	if err != nil {
		return 0, wrapError("namespace_count", err)
	}

	var count int64
	query := fmt.Sprintf("SELECT count(*) FROM %s WHERE namespace = $1", s.config.Table)
	if err := pool.QueryRow(ctx, query, namespace).Scan(&count); err != nil {
		return 0, wrapError("namespace_count", err)
	}
	return count, nil
}

// NamespaceStats bundles existence and count for the public stats operation.
func (s *PgStore) NamespaceStats(ctx context.Context, namespace string) (*NamespaceStats, error) {
	count, err := s.NamespaceCount(ctx, namespace)
	if err != nil {
		return nil, err
	}
	return &NamespaceStats{Name: namespace, VectorCount: count}, nil
}
