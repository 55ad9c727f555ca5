package image

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const repoTimeout = 5 * time.Second

// querier is satisfied by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository persists image metadata rows.
type Repository struct {
	db querier
}

// NewRepository builds a repository over a pool or a single acquired connection.
func NewRepository(db querier) *Repository {
	return &Repository{db: db}
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS images (
    id             BIGSERIAL PRIMARY KEY,
    file_name      TEXT        NOT NULL,
    file_extension TEXT        NOT NULL,
    file_size      BIGINT      NOT NULL,
    last_modified  TEXT        NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createIndexSQL = `CREATE INDEX IF NOT EXISTS images_file_name_idx ON images (file_name);`

// EnsureTable creates the images table when it does not exist yet.
func (r *Repository) EnsureTable(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	for _, stmt := range []string{createTableSQL, createIndexSQL} {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			// concurrent IF NOT EXISTS can still race on the catalog
			if isUniqueViolation(err) {
				continue
			}
			return fmt.Errorf("ensure images table: %w", err)
		}
	}
	return nil
}

// Insert appends a metadata row.
func (r *Repository) Insert(ctx context.Context, meta Metadata) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
INSERT INTO images (file_name, file_extension, file_size, last_modified)
VALUES ($1, $2, $3, $4);`

	if _, err := r.db.Exec(ctx, query, meta.FileName, meta.FileExtension, meta.FileSize, meta.LastModified); err != nil {
		return fmt.Errorf("insert image metadata: %w", err)
	}
	return nil
}

// SelectAll returns every metadata row in insertion order.
func (r *Repository) SelectAll(ctx context.Context) ([]Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
SELECT file_name, file_extension, file_size, last_modified
FROM images
ORDER BY id;`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("select images: %w", err)
	}
	defer rows.Close()

	var list []Metadata
	for rows.Next() {
		var meta Metadata
		if err := rows.Scan(&meta.FileName, &meta.FileExtension, &meta.FileSize, &meta.LastModified); err != nil {
			return nil, fmt.Errorf("scan image metadata: %w", err)
		}
		list = append(list, meta)
	}
	if err := rows.Err(); err != nil {
		// pgx reports server errors on the first read, not from Query
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("iterate images: %w", err)
	}
	return list, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// isUndefinedTable reports a missing relation. Nothing was ever uploaded, so
// there are no rows to read.
func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42P01"
	}
	return false
}
