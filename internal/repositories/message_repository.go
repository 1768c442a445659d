package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"dm-service/internal/models"
)

var (
	// ErrInvalidMessage rejects a message before any write: missing or equal
	// participants, or empty text with no attachments.
	ErrInvalidMessage = errors.New("invalid message")
	// ErrMessageNotFound marks a lookup miss.
	ErrMessageNotFound = errors.New("message not found")
	// ErrStorageUnavailable wraps transient storage failures; callers may retry.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// MessageRepository is the durable append-only store of direct messages.
type MessageRepository interface {
	Append(ctx context.Context, fromUserID, toUserID int, text string, attachments models.AttachmentList) (models.Message, error)
	ListConversation(ctx context.Context, userA, userB, sinceID int) ([]models.Message, error)
	MarkDelivered(ctx context.Context, messageID int) error
	MarkReadBulk(ctx context.Context, fromUserID, toUserID int, asOf time.Time) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Append validates and stores a message. The id and created_at are assigned
// by the database; client-supplied timestamps are never trusted.
func (r *MessageRepo) Append(ctx context.Context, fromUserID, toUserID int, text string, attachments models.AttachmentList) (models.Message, error) {
	if fromUserID == 0 || toUserID == 0 {
		return models.Message{}, fmt.Errorf("%w: missing participant", ErrInvalidMessage)
	}
	if fromUserID == toUserID {
		return models.Message{}, fmt.Errorf("%w: sender and recipient are the same user", ErrInvalidMessage)
	}
	if text == "" && len(attachments) == 0 {
		return models.Message{}, fmt.Errorf("%w: empty text and no attachments", ErrInvalidMessage)
	}

	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (from_user_id, to_user_id, text, attachments)
         VALUES ($1, $2, $3, $4)
         RETURNING id, from_user_id, to_user_id, text, attachments, created_at, delivered_at, read_at`,
		fromUserID, toUserID, text, attachments).StructScan(&msg)
	if err != nil {
		return models.Message{}, storageErr("append message", err)
	}
	return msg, nil
}

// ListConversation returns all messages between the unordered user pair,
// ascending by (created_at, id). Repeated calls have no side effects; a
// positive sinceID restricts the result to later messages.
func (r *MessageRepo) ListConversation(ctx context.Context, userA, userB, sinceID int) ([]models.Message, error) {
	query := `SELECT id, from_user_id, to_user_id, text, attachments, created_at, delivered_at, read_at
        FROM messages
        WHERE ((from_user_id=$1 AND to_user_id=$2) OR (from_user_id=$2 AND to_user_id=$1))
        AND id > $3
        ORDER BY created_at ASC, id ASC`
	var msgs []models.Message
	if err := r.db.SelectContext(ctx, &msgs, query, userA, userB, sinceID); err != nil {
		return nil, storageErr("list conversation", err)
	}
	return msgs, nil
}

// MarkDelivered stamps delivered_at once. A second call is a no-op.
func (r *MessageRepo) MarkDelivered(ctx context.Context, messageID int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE messages SET delivered_at = NOW() WHERE id=$1 AND delivered_at IS NULL`, messageID)
	if err != nil {
		return storageErr("mark delivered", err)
	}
	return nil
}

// MarkReadBulk stamps read_at on every unread message from fromUserID to
// toUserID created at or before asOf. An already-set read_at is never
// touched, which makes the call idempotent and monotonic. Delivery is
// implied by reading: a missing delivered_at is backfilled, and a
// delivered_at stamped concurrently after asOf raises read_at with it, so
// read never precedes delivery.
func (r *MessageRepo) MarkReadBulk(ctx context.Context, fromUserID, toUserID int, asOf time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE messages
         SET read_at = GREATEST($3, delivered_at), delivered_at = COALESCE(delivered_at, $3)
         WHERE from_user_id=$1 AND to_user_id=$2 AND read_at IS NULL AND created_at <= $3`,
		fromUserID, toUserID, asOf)
	if err != nil {
		return storageErr("mark read bulk", err)
	}
	return nil
}

func storageErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrMessageNotFound
	}
	return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
}
