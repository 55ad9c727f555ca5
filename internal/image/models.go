package image

import (
	"strconv"
	"time"
)

// EventImageUploaded tags upload events on the queue.
const EventImageUploaded = "image_uploaded"

// LastModifiedLayout is the string form used for last_modified in both stores.
const LastModifiedLayout = time.RFC3339

// Metadata is the descriptive record kept for one stored object.
type Metadata struct {
	FileName      string `json:"file_name"`
	FileExtension string `json:"file_extension"`
	FileSize      int64  `json:"file_size"`
	LastModified  string `json:"last_modified"`
}

// Fields returns the record keyed by column name.
func (m Metadata) Fields() map[string]string {
	return map[string]string{
		"file_name":      m.FileName,
		"file_extension": m.FileExtension,
		"file_size":      strconv.FormatInt(m.FileSize, 10),
		"last_modified":  m.LastModified,
	}
}

// ObjectInfo is what the object store reports about one key.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
}

// UploadEvent describes a completed upload. It is sent once and never stored.
type UploadEvent struct {
	Event        string   `json:"event"`
	Name         string   `json:"name"`
	DownloadLink string   `json:"download_link,omitempty"`
	Info         Metadata `json:"info"`
}

// UploadResult is returned to the client after a successful upload.
type UploadResult struct {
	Metadata     Metadata `json:"metadata"`
	DownloadLink string   `json:"download_link,omitempty"`
}
