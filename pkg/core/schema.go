package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// expectedColumn describes the minimum schema an existing embedding table
// must satisfy.
type expectedColumn struct {
	name  string
	check func(dataType, udtName string) bool
	want  string
}

var expectedColumns = []expectedColumn{
	{
		name: "id",
		want: "uuid",
		check: func(dataType, _ string) bool {
			return dataType == "uuid"
		},
	},
	{
		name: "namespace",
		want: "text",
		check: func(dataType, _ string) bool {
			return dataType == "text" || strings.HasPrefix(dataType, "character varying")
		},
	},
	{
		name: "embedding",
		want: "vector",
		check: func(_, udtName string) bool {
			return udtName == "vector"
		},
	},
	{
		name: "metadata",
		want: "jsonb",
		check: func(dataType, _ string) bool {
			return dataType == "jsonb"
		},
	},
	{
		name: "created_at",
		want: "timestamp",
		check: func(dataType, _ string) bool {
			return strings.HasPrefix(dataType, "timestamp")
		},
	},
}

// ensureSchema enables pgvector, then creates the embedding table or
// validates a pre-existing one against the expected column set.
func (s *PgStore) ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable vector extension: %w", err)
	}

	exists, err := tableExists(ctx, pool, s.config.Table)
	if err != nil {
		return err
	}
	if exists {
		return validateTableSchema(ctx, pool, s.config.Table)
	}

	if s.config.Dimensions <= 0 {
		return fmt.Errorf("%w: dimensionality must be positive to create table %q",
			ErrInvalidDimension, s.config.Table)
	}

	// Table name is validated as a bare identifier at construction, so
	// interpolation is safe here; dimensionality is part of the type.
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id uuid PRIMARY KEY,
			namespace text NOT NULL,
			embedding vector(%d),
			metadata jsonb,
			created_at timestamptz DEFAULT now()
		)`, s.config.Table, s.config.Dimensions)
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create table %q: %w", s.config.Table, err)
	}

	idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_namespace ON %s (namespace)",
		s.config.Table, s.config.Table)
	if _, err := pool.Exec(ctx, idx); err != nil {
		return fmt.Errorf("failed to create namespace index: %w", err)
	}
	return nil
}

func tableExists(ctx context.Context, pool *pgxpool.Pool, table string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1)",
		table).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check table existence: %w", err)
	}
	return exists, nil
}

// validateTableSchema checks an existing table against the minimum expected
// column set and fails fast naming the first offending column.
func validateTableSchema(ctx context.Context, pool *pgxpool.Pool, table string) error {
	rows, err := pool.Query(ctx,
		"SELECT column_name, data_type, udt_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1",
		table)
	if err != nil {
		return fmt.Errorf("failed to read schema of table %q: %w", table, err)
	}
	defer rows.Close()

	type colType struct{ dataType, udtName string }
	existing := make(map[string]colType)
	for rows.Next() {
		var name, dataType, udtName string
		if err := rows.Scan(&name, &dataType, &udtName); err != nil {
			return fmt.Errorf("failed to scan column info: %w", err)
		}
		existing[name] = colType{dataType: dataType, udtName: udtName}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read schema of table %q: %w", table, err)
	}

	for _, want := range expectedColumns {
		got, ok := existing[want.name]
		if !ok {
			return fmt.Errorf("%w: table %q is missing column %q (expected %s)",
				ErrSchemaMismatch, table, want.name, want.want)
		}
		if !want.check(got.dataType, got.udtName) {
			return fmt.Errorf("%w: table %q column %q has type %q, expected %s",
				ErrSchemaMismatch, table, want.name, got.dataType, want.want)
		}
	}
	return nil
}
