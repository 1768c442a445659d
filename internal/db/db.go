package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS messages (
            id SERIAL PRIMARY KEY,
            from_user_id INT NOT NULL,
            to_user_id INT NOT NULL,
            text TEXT NOT NULL DEFAULT '',
            attachments JSONB NOT NULL DEFAULT '[]',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            delivered_at TIMESTAMPTZ,
            read_at TIMESTAMPTZ,
            CHECK (from_user_id <> to_user_id)
        );`,
		`CREATE INDEX IF NOT EXISTS idx_messages_pair
            ON messages (LEAST(from_user_id, to_user_id), GREATEST(from_user_id, to_user_id), created_at, id);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_unread
            ON messages (from_user_id, to_user_id) WHERE read_at IS NULL;`,
		`CREATE TABLE IF NOT EXISTS attachment_blobs (
            id UUID PRIMARY KEY,
            name TEXT NOT NULL,
            mime_type TEXT NOT NULL,
            size BIGINT NOT NULL,
            content BYTEA NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            CHECK (size = LENGTH(content))
        );`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
