package reconcile

import (
	"context"
	"fmt"

	"github.com/abduss/imagehost/internal/config"
	"github.com/abduss/imagehost/internal/image"
	"github.com/abduss/imagehost/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolOpener acquires one connection from a long-lived pool per run.
func PoolOpener(pool *pgxpool.Pool) OpenFunc {
	return func(ctx context.Context) (RowSource, func(), error) {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("acquire connection: %w", err)
		}
		return image.NewRepository(conn), conn.Release, nil
	}
}

// DialOpener connects to PostgreSQL for each run and closes the connection
// afterwards.
func DialOpener(cfg config.PostgresConfig) OpenFunc {
	return func(ctx context.Context) (RowSource, func(), error) {
		pool, err := storage.NewPostgresPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return image.NewRepository(pool), pool.Close, nil
	}
}
