package image

import (
	"context"
	"io"
	"time"

	"github.com/abduss/imagehost/internal/metrics"
)

// ObjectStore is the key-addressed binary storage the service writes images to.
// Implementations classify failures with ErrNotFound, ErrAuth and ErrInfrastructure.
type ObjectStore interface {
	Head(ctx context.Context, key string) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Instrument wraps store so that every call is counted in the object store metrics.
func Instrument(store ObjectStore) ObjectStore {
	return instrumentedStore{next: store}
}

type instrumentedStore struct {
	next ObjectStore
}

func (s instrumentedStore) Head(ctx context.Context, key string) (ObjectInfo, error) {
	info, err := s.next.Head(ctx, key)
	metrics.RecordObjectStore("head", ignoreNotFound(err))
	return info, err
}

func (s instrumentedStore) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	body, info, err := s.next.Get(ctx, key)
	metrics.RecordObjectStore("get", ignoreNotFound(err))
	return body, info, err
}

func (s instrumentedStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	err := s.next.Put(ctx, key, body, size, contentType)
	metrics.RecordObjectStore("put", err)
	return err
}

func (s instrumentedStore) Delete(ctx context.Context, key string) error {
	err := s.next.Delete(ctx, key)
	metrics.RecordObjectStore("delete", err)
	return err
}

func (s instrumentedStore) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	link, err := s.next.Presign(ctx, key, ttl)
	metrics.RecordObjectStore("presign", err)
	return link, err
}

// a missing key is an answer, not a backend failure
func ignoreNotFound(err error) error {
	if ErrNotFound.Has(err) {
		return nil
	}
	return err
}
