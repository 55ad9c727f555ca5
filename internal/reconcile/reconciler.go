// Package reconcile compares stored image metadata against the object store
// and reports drift.
package reconcile

import (
	"context"

	"github.com/abduss/imagehost/internal/image"
	"github.com/abduss/imagehost/internal/metrics"
	"go.uber.org/zap"
)

// RowSource yields every persisted metadata row.
type RowSource interface {
	SelectAll(ctx context.Context) ([]image.Metadata, error)
}

type metadataSource interface {
	Extract(ctx context.Context, key string) (image.Metadata, error)
}

// Reconciler checks persisted rows against live object metadata.
type Reconciler struct {
	live metadataSource
	log  *zap.Logger
}

// New builds a reconciler reading live metadata through live.
func New(live metadataSource, log *zap.Logger) *Reconciler {
	return &Reconciler{live: live, log: log}
}

// Check reports whether every row in rows matches its object. A row whose
// object no longer exists counts as a mismatch. Only failures to reach the
// database or the object store are returned as errors.
func (r *Reconciler) Check(ctx context.Context, rows RowSource) (bool, error) {
	stored, err := rows.SelectAll(ctx)
	if err != nil {
		return false, image.ErrInfrastructure.Wrap(err)
	}

	consistent := true
	for _, row := range stored {
		live, err := r.live.Extract(ctx, row.FileName)
		switch {
		case image.ErrNotFound.Has(err):
			r.log.Info("object missing for metadata row", zap.String("file_name", row.FileName))
			consistent = false
			continue
		case err != nil:
			return false, image.ErrInfrastructure.Wrap(err)
		}

		if fields := Mismatched(row, live); len(fields) > 0 {
			r.log.Info("metadata drift",
				zap.String("file_name", row.FileName),
				zap.Strings("fields", fields))
			consistent = false
		}
	}

	r.log.Info("consistency check completed",
		zap.Int("rows", len(stored)),
		zap.Bool("data_consistent", consistent))
	metrics.RecordConsistency(consistent)
	return consistent, nil
}

// Mismatched returns the stored fields that are absent from live or differ
// from it, in column order.
func Mismatched(stored, live image.Metadata) []string {
	want := stored.Fields()
	got := live.Fields()

	var fields []string
	for _, name := range []string{"file_name", "file_extension", "file_size", "last_modified"} {
		value, ok := got[name]
		if !ok || value != want[name] {
			fields = append(fields, name)
		}
	}
	return fields
}
