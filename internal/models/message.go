package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// AttachmentRef points at a previously uploaded blob and is embedded in a
// message. Immutable once the message is persisted.
type AttachmentRef struct {
	URL      string `json:"url"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

// AttachmentList is stored as a jsonb column.
type AttachmentList []AttachmentRef

// Value implements driver.Valuer.
func (a AttachmentList) Value() (driver.Value, error) {
	if len(a) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner.
func (a *AttachmentList) Scan(src any) error {
	if src == nil {
		*a = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return errors.New("attachment list: unsupported scan source")
	}
}

// Message represents a direct message between two users. CreatedAt is
// server-assigned and authoritative for conversation ordering; DeliveredAt
// and ReadAt stay nil until the respective milestone is observed.
type Message struct {
	ID          int            `db:"id" json:"id"`
	FromUserID  int            `db:"from_user_id" json:"from_user_id"`
	ToUserID    int            `db:"to_user_id" json:"to_user_id"`
	Text        string         `db:"text" json:"text"`
	Attachments AttachmentList `db:"attachments" json:"attachments"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	DeliveredAt *time.Time     `db:"delivered_at" json:"delivered_at,omitempty"`
	ReadAt      *time.Time     `db:"read_at" json:"read_at,omitempty"`
}
