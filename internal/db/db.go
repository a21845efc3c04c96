package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"club-chat-service/internal/logging"
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
		`CREATE TABLE IF NOT EXISTS users (
            user_id BIGSERIAL PRIMARY KEY,
            name TEXT NOT NULL,
            profile_image TEXT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS chat_rooms (
            room_id BIGSERIAL PRIMARY KEY,
            name TEXT,
            kind TEXT NOT NULL CHECK (kind IN ('personal', 'group')),
            last_message_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS chat_room_members (
            member_id BIGSERIAL PRIMARY KEY,
            room_id BIGINT NOT NULL REFERENCES chat_rooms(room_id) ON DELETE CASCADE,
            user_id BIGINT NOT NULL,
            joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            last_read_at TIMESTAMPTZ,
            UNIQUE(room_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            message_id BIGSERIAL PRIMARY KEY,
            room_id BIGINT NOT NULL REFERENCES chat_rooms(room_id) ON DELETE CASCADE,
            sender_id BIGINT NOT NULL,
            content TEXT NOT NULL,
            kind TEXT NOT NULL DEFAULT 'text' CHECK (kind IN ('text', 'image', 'file', 'system')),
            file_url TEXT,
            is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ
        );`,
		`CREATE INDEX IF NOT EXISTS idx_messages_room_created
            ON messages (room_id, created_at DESC, message_id DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_members_user
            ON chat_room_members (user_id);`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	logging.L().Info().Msg("database migrations applied")
	return nil
}
