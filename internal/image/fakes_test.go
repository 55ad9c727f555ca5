package image

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// --- helpers & fakes ---

type storedObject struct {
	data        []byte
	modified    time.Time
	contentType string
}

type memoryStore struct {
	mu      sync.Mutex
	objects map[string]storedObject
	now     time.Time

	putCalls    int
	deleteCalls int
	putErr      error
	headErr     error
	presignErr  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		objects: make(map[string]storedObject),
		now:     time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC),
	}
}

func (m *memoryStore) Head(ctx context.Context, key string) (ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.headErr != nil {
		return ObjectInfo{}, m.headErr
	}
	obj, ok := m.objects[key]
	if !ok {
		return ObjectInfo{}, ErrNotFound.New("object %q", key)
	}
	return ObjectInfo{Key: key, Size: int64(len(obj.data)), LastModified: obj.modified, ContentType: obj.contentType}, nil
}

func (m *memoryStore) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	info, err := m.Head(ctx, key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return io.NopCloser(bytes.NewReader(m.objects[key].data)), info, nil
}

func (m *memoryStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	m.mu.Lock()
	m.putCalls++
	putErr := m.putErr
	m.mu.Unlock()
	if putErr != nil {
		return putErr
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return ErrInfrastructure.Wrap(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = storedObject{data: data, modified: m.now, contentType: contentType}
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	delete(m.objects, key)
	return nil
}

func (m *memoryStore) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if m.presignErr != nil {
		return "", m.presignErr
	}
	return fmt.Sprintf("https://objects.test/images/%s?expires=%d", key, int(ttl.Seconds())), nil
}

type fakeRepo struct {
	mu          sync.Mutex
	rows        []Metadata
	ensureCalls int
	insertErr   error
}

func (f *fakeRepo) EnsureTable(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureCalls++
	return nil
}

func (f *fakeRepo) Insert(ctx context.Context, meta Metadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.rows = append(f.rows, meta)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []UploadEvent
	err    error
}

func (f *fakePublisher) PublishUploadEvent(ctx context.Context, event UploadEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

func (f *fakePublisher) published() []UploadEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]UploadEvent(nil), f.events...)
}
