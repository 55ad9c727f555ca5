package image

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abduss/imagehost/internal/metrics"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

const (
	defaultPresignTTL     = 3600 * time.Second
	defaultPublishTimeout = 10 * time.Second
	sniffLen              = 3072
)

type metadataStore interface {
	EnsureTable(ctx context.Context) error
	Insert(ctx context.Context, meta Metadata) error
}

type eventPublisher interface {
	PublishUploadEvent(ctx context.Context, event UploadEvent) error
}

// Options tunes the upload pipeline.
type Options struct {
	PresignTTL     time.Duration
	MaxUploadBytes int64
	PublishTimeout time.Duration
}

// Service runs the upload pipeline and the per-image read and delete operations.
type Service struct {
	repo      metadataStore
	store     ObjectStore
	extractor *Extractor
	events    eventPublisher
	opts      Options
	log       *zap.Logger

	tableReady atomic.Bool
	inflight   sync.WaitGroup
}

// NewService constructs an image service. events may be nil, in which case no
// upload events are emitted.
func NewService(repo metadataStore, store ObjectStore, events eventPublisher, opts Options, log *zap.Logger) *Service {
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = defaultPresignTTL
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = defaultPublishTimeout
	}
	return &Service{
		repo:      repo,
		store:     store,
		extractor: NewExtractor(store),
		events:    events,
		opts:      opts,
		log:       log,
	}
}

// Upload stores body under name, records its metadata and announces the upload.
//
// The call succeeds once the object is written and its metadata row persisted.
// Link generation and event delivery are best effort: their failures are logged
// and never undo the upload.
func (s *Service) Upload(ctx context.Context, name string, body io.Reader, size int64) (UploadResult, error) {
	result, err := s.upload(ctx, name, body, size)
	if err != nil {
		metrics.RecordUpload(uploadStatus(err), 0)
		return UploadResult{}, err
	}
	metrics.RecordUpload("success", result.Metadata.FileSize)
	return result, nil
}

func (s *Service) upload(ctx context.Context, name string, body io.Reader, size int64) (UploadResult, error) {
	name, err := validateName(name)
	if err != nil {
		return UploadResult{}, err
	}
	if body == nil {
		return UploadResult{}, ErrInvalidRequest.New("file payload is required")
	}
	if size == 0 {
		return UploadResult{}, ErrInvalidRequest.New("file payload is empty")
	}
	if s.opts.MaxUploadBytes > 0 && size > s.opts.MaxUploadBytes {
		return UploadResult{}, ErrInvalidRequest.New("file exceeds %d bytes", s.opts.MaxUploadBytes)
	}

	body, contentType, sniffed, err := sniffContentType(body)
	if err != nil {
		return UploadResult{}, ErrInvalidRequest.New("read payload: %v", err)
	}
	// a negative size means unknown length, so emptiness shows only here
	if sniffed == 0 {
		return UploadResult{}, ErrInvalidRequest.New("file payload is empty")
	}

	log := s.log.With(zap.String("file_name", name))

	if err := s.store.Put(ctx, name, body, size, contentType); err != nil {
		log.Error("store object", zap.Error(err))
		return UploadResult{}, err
	}

	// the object store assigns size and timestamp, so read them back
	meta, err := s.extractor.Extract(ctx, name)
	if err != nil {
		log.Error("read back object metadata", zap.Error(err))
		if ErrAuth.Has(err) {
			return UploadResult{}, err
		}
		return UploadResult{}, ErrInfrastructure.Wrap(err)
	}

	if err := s.ensureTable(ctx); err != nil {
		log.Error("ensure metadata table", zap.Error(err))
		return UploadResult{}, ErrInfrastructure.Wrap(err)
	}
	if err := s.repo.Insert(ctx, meta); err != nil {
		log.Error("persist metadata", zap.Error(err))
		return UploadResult{}, ErrInfrastructure.Wrap(err)
	}

	link, err := s.store.Presign(ctx, name, s.opts.PresignTTL)
	if err != nil {
		log.Warn("generate download link", zap.Error(err))
		link = ""
	}

	s.publish(ctx, UploadEvent{
		Event:        EventImageUploaded,
		Name:         name,
		DownloadLink: link,
		Info:         meta,
	})

	log.Info("image uploaded", zap.Int64("file_size", meta.FileSize))
	return UploadResult{Metadata: meta, DownloadLink: link}, nil
}

// Metadata returns the live metadata for name.
func (s *Service) Metadata(ctx context.Context, name string) (Metadata, error) {
	name, err := validateName(name)
	if err != nil {
		return Metadata{}, err
	}
	return s.extractor.Extract(ctx, name)
}

// Download opens the stored object. The caller closes the reader.
func (s *Service) Download(ctx context.Context, name string) (io.ReadCloser, ObjectInfo, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	return s.store.Get(ctx, name)
}

// Delete removes the stored object. The metadata row stays behind and is
// reported as drift by the consistency check.
func (s *Service) Delete(ctx context.Context, name string) error {
	name, err := validateName(name)
	if err != nil {
		return err
	}
	if _, err := s.store.Head(ctx, name); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, name); err != nil {
		return err
	}
	s.log.Info("image deleted", zap.String("file_name", name))
	return nil
}

// Wait blocks until in-flight upload events have been handed off.
func (s *Service) Wait() {
	s.inflight.Wait()
}

func (s *Service) ensureTable(ctx context.Context) error {
	if s.tableReady.Load() {
		return nil
	}
	if err := s.repo.EnsureTable(ctx); err != nil {
		return err
	}
	s.tableReady.Store(true)
	return nil
}

func (s *Service) publish(ctx context.Context, event UploadEvent) {
	if s.events == nil {
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.PublishTimeout)
		defer cancel()

		if err := s.events.PublishUploadEvent(ctx, event); err != nil {
			s.log.Warn("publish upload event", zap.String("file_name", event.Name), zap.Error(err))
		}
	}()
}

func validateName(name string) (string, error) {
	switch {
	case strings.TrimSpace(name) == "":
		return "", ErrInvalidRequest.New("file name is required")
	case strings.TrimSpace(name) != name:
		return "", ErrInvalidRequest.New("file name %q has surrounding whitespace", name)
	case name == "." || name == "..":
		return "", ErrInvalidRequest.New("invalid file name %q", name)
	}
	return name, nil
}

// sniffContentType detects the content type from the first bytes of body and
// returns a reader replaying them, along with how many bytes were sniffed.
func sniffContentType(body io.Reader) (io.Reader, string, int, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, "", 0, err
	}
	head = head[:n]
	return io.MultiReader(bytes.NewReader(head), body), mimetype.Detect(head).String(), n, nil
}

func uploadStatus(err error) string {
	switch {
	case ErrInvalidRequest.Has(err):
		return "invalid"
	case ErrAuth.Has(err):
		return "forbidden"
	default:
		return "error"
	}
}
