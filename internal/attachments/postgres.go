package attachments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"dm-service/internal/models"
)

// PostgresStore keeps blobs in the attachment_blobs table.
type PostgresStore struct {
	db       *sqlx.DB
	maxBytes int64
}

// NewPostgresStore constructs a PostgresStore with the given per-file cap.
func NewPostgresStore(db *sqlx.DB, maxBytes int64) *PostgresStore {
	return &PostgresStore{db: db, maxBytes: maxBytes}
}

// Put stores the batch inside one transaction so a failure persists nothing.
func (s *PostgresStore) Put(ctx context.Context, uploads []Upload) ([]models.AttachmentRef, error) {
	if err := checkBatch(uploads, s.maxBytes); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	refs := make([]models.AttachmentRef, 0, len(uploads))
	for _, u := range uploads {
		id := uuid.NewString()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO attachment_blobs (id, name, mime_type, size, content) VALUES ($1, $2, $3, $4, $5)`,
			id, u.Name, u.MimeType, int64(len(u.Content)), u.Content); err != nil {
			return nil, fmt.Errorf("%w: insert blob: %v", ErrStorageUnavailable, err)
		}
		refs = append(refs, models.AttachmentRef{
			URL:      refURL(id),
			Name:     u.Name,
			Size:     int64(len(u.Content)),
			MimeType: u.MimeType,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrStorageUnavailable, err)
	}
	return refs, nil
}

// Get loads a blob by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (Blob, error) {
	var blob Blob
	err := s.db.QueryRowxContext(ctx,
		`SELECT id, name, mime_type, size, content FROM attachment_blobs WHERE id=$1`, id).
		Scan(&blob.ID, &blob.Name, &blob.MimeType, &blob.Size, &blob.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return Blob{}, ErrBlobNotFound
	}
	if err != nil {
		return Blob{}, fmt.Errorf("%w: get blob: %v", ErrStorageUnavailable, err)
	}
	return blob, nil
}

// Resolve fetches blob metadata without the content bytes.
func (s *PostgresStore) Resolve(ctx context.Context, id string) (models.AttachmentRef, error) {
	var ref models.AttachmentRef
	err := s.db.QueryRowxContext(ctx,
		`SELECT name, mime_type, size FROM attachment_blobs WHERE id=$1`, id).
		Scan(&ref.Name, &ref.MimeType, &ref.Size)
	if errors.Is(err, sql.ErrNoRows) {
		return models.AttachmentRef{}, ErrBlobNotFound
	}
	if err != nil {
		return models.AttachmentRef{}, fmt.Errorf("%w: resolve blob: %v", ErrStorageUnavailable, err)
	}
	ref.URL = refURL(id)
	return ref, nil
}

var _ BlobStore = (*PostgresStore)(nil)
