package attachments

import (
	"context"
	"errors"
	"fmt"

	"dm-service/internal/models"
)

var (
	// ErrBlobNotFound marks a lookup miss.
	ErrBlobNotFound = errors.New("attachment not found")
	// ErrStorageUnavailable wraps transient storage failures; callers may retry.
	ErrStorageUnavailable = errors.New("attachment storage unavailable")
)

// PayloadTooLargeError names the file that exceeded the size cap. The whole
// upload batch is rejected before any write.
type PayloadTooLargeError struct {
	Name string
	Size int64
	Max  int64
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("attachment %q is %d bytes, limit is %d", e.Name, e.Size, e.Max)
}

// Upload is one staged file in a put batch.
type Upload struct {
	Name     string
	MimeType string
	Content  []byte
}

// Blob is a stored attachment.
type Blob struct {
	ID       string
	Name     string
	MimeType string
	Size     int64
	Content  []byte
}

// BlobStore persists uploaded binary blobs keyed by opaque id. Blobs are
// immutable once written.
type BlobStore interface {
	// Put stores every upload in the batch or none of them. It returns one
	// reference per upload, in order.
	Put(ctx context.Context, uploads []Upload) ([]models.AttachmentRef, error)
	// Get returns a stored blob or ErrBlobNotFound.
	Get(ctx context.Context, id string) (Blob, error)
	// Resolve returns the reference for an already-stored blob without
	// loading its content, or ErrBlobNotFound.
	Resolve(ctx context.Context, id string) (models.AttachmentRef, error)
}

// checkBatch rejects the whole batch when any file is over the cap, before
// anything is written.
func checkBatch(uploads []Upload, max int64) error {
	for _, u := range uploads {
		if int64(len(u.Content)) > max {
			return &PayloadTooLargeError{Name: u.Name, Size: int64(len(u.Content)), Max: max}
		}
	}
	return nil
}

func refURL(id string) string {
	return "/attachments/" + id
}
