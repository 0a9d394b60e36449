package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type Database struct {
	Conn *sql.DB
}

func NewDatabase(ctx context.Context, dsn string) (*Database, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(25)
	conn.SetConnMaxLifetime(5 * time.Minute)
	return &Database{Conn: conn}, nil
}

func (d *Database) Close() error { return d.Conn.Close() }

// Ping is used by the readiness probe.
func (d *Database) Ping(ctx context.Context) error { return d.Conn.PingContext(ctx) }

// AutoMigrate creates the schema. Child rows cascade from their chat so a chat
// delete is one statement inside the caller's transaction.
func (d *Database) AutoMigrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            email VARCHAR(320) UNIQUE NOT NULL,
            display_name VARCHAR(100) NOT NULL DEFAULT '',
            password_hash VARCHAR(255) NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,

		`CREATE TABLE IF NOT EXISTS user_contacts (
            owner_id TEXT REFERENCES users(id) ON DELETE CASCADE,
            contact_id TEXT REFERENCES users(id) ON DELETE CASCADE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            PRIMARY KEY (owner_id, contact_id),
            CHECK (owner_id <> contact_id)
        )`,

		`CREATE TABLE IF NOT EXISTS chats (
            id TEXT PRIMARY KEY,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,

		`CREATE TABLE IF NOT EXISTS chat_participants (
            chat_id TEXT REFERENCES chats(id) ON DELETE CASCADE,
            user_id TEXT REFERENCES users(id) ON DELETE CASCADE,
            position INT NOT NULL,
            PRIMARY KEY (chat_id, user_id)
        )`,

		`CREATE INDEX IF NOT EXISTS chat_participants_user_idx ON chat_participants (user_id)`,

		`CREATE TABLE IF NOT EXISTS messages (
            id TEXT PRIMARY KEY,
            chat_id TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
            sender_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            content TEXT NOT NULL CHECK (content <> ''),
            status VARCHAR(8) NOT NULL DEFAULT 'sent' CHECK (status IN ('sent', 'read')),
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,

		`CREATE INDEX IF NOT EXISTS messages_chat_created_idx ON messages (chat_id, created_at, id)`,

		`CREATE TABLE IF NOT EXISTS message_attachments (
            message_id TEXT REFERENCES messages(id) ON DELETE CASCADE,
            position INT NOT NULL,
            kind VARCHAR(8) NOT NULL CHECK (kind IN ('image', 'file', 'video', 'audio', 'other')),
            url TEXT NOT NULL,
            PRIMARY KEY (message_id, position)
        )`,
	}

	for _, query := range queries {
		if _, err := d.Conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}
