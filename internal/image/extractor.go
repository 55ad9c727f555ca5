package image

import (
	"context"
	"strings"
)

type objectHeader interface {
	Head(ctx context.Context, key string) (ObjectInfo, error)
}

// Extractor derives metadata records from what the object store reports.
type Extractor struct {
	store objectHeader
}

// NewExtractor constructs an extractor reading from store.
func NewExtractor(store objectHeader) *Extractor {
	return &Extractor{store: store}
}

// Extract returns the live metadata for key. An absent key yields an ErrNotFound
// error and never an empty record.
func (e *Extractor) Extract(ctx context.Context, key string) (Metadata, error) {
	info, err := e.store.Head(ctx, key)
	if err != nil {
		return Metadata{}, err
	}
	if info.Key == "" {
		info.Key = key
	}
	return FromObject(info), nil
}

// FromObject converts object store information into a metadata record.
func FromObject(info ObjectInfo) Metadata {
	return Metadata{
		FileName:      info.Key,
		FileExtension: Extension(info.Key),
		FileSize:      info.Size,
		LastModified:  info.LastModified.UTC().Format(LastModifiedLayout),
	}
}

// Extension returns the suffix of name starting at its final dot, or "" when
// the last path element has none. Leading dots do not start an extension, so
// ".profile" has no extension while "cat.png" has ".png".
func Extension(name string) string {
	base := name
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	trimmed := strings.TrimLeft(base, ".")
	i := strings.LastIndex(trimmed, ".")
	if i < 0 {
		return ""
	}
	return trimmed[i:]
}
