package attachments

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"dm-service/internal/models"
)

// MemoryStore keeps blobs in process memory. Used in tests and when the
// service runs without a database.
type MemoryStore struct {
	mu       sync.RWMutex
	blobs    map[string]Blob
	maxBytes int64
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore(maxBytes int64) *MemoryStore {
	return &MemoryStore{blobs: make(map[string]Blob), maxBytes: maxBytes}
}

// Put stores every upload or none of them.
func (s *MemoryStore) Put(ctx context.Context, uploads []Upload) ([]models.AttachmentRef, error) {
	if err := checkBatch(uploads, s.maxBytes); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	refs := make([]models.AttachmentRef, 0, len(uploads))
	for _, u := range uploads {
		id := uuid.NewString()
		content := make([]byte, len(u.Content))
		copy(content, u.Content)
		s.blobs[id] = Blob{
			ID:       id,
			Name:     u.Name,
			MimeType: u.MimeType,
			Size:     int64(len(content)),
			Content:  content,
		}
		refs = append(refs, models.AttachmentRef{
			URL:      refURL(id),
			Name:     u.Name,
			Size:     int64(len(content)),
			MimeType: u.MimeType,
		})
	}
	return refs, nil
}

// Get loads a blob by id.
func (s *MemoryStore) Get(ctx context.Context, id string) (Blob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.blobs[id]
	if !ok {
		return Blob{}, ErrBlobNotFound
	}
	return blob, nil
}

// Resolve fetches blob metadata without the content bytes.
func (s *MemoryStore) Resolve(ctx context.Context, id string) (models.AttachmentRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.blobs[id]
	if !ok {
		return models.AttachmentRef{}, ErrBlobNotFound
	}
	return models.AttachmentRef{URL: refURL(id), Name: blob.Name, Size: blob.Size, MimeType: blob.MimeType}, nil
}

// Len reports the number of stored blobs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

var _ BlobStore = (*MemoryStore)(nil)
