package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"club-chat-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for messages, including the
// unread watermark math.
type MessageRepository interface {
	Append(ctx context.Context, roomID, senderID int64, content string, kind models.MessageKind, fileURL string) (models.Message, error)
	Page(ctx context.Context, roomID, beforeID int64, limit int) ([]models.Message, bool, error)
	Get(ctx context.Context, messageID int64) (models.Message, error)
	Last(ctx context.Context, roomID int64) (models.Message, error)
	SoftDelete(ctx context.Context, messageID int64) (bool, error)
	CountUnread(ctx context.Context, roomID, userID int64) (int64, error)
	IsRead(ctx context.Context, messageID, userID int64) (bool, error)
	ReadCount(ctx context.Context, messageID int64) (int64, error)
}

// MessageRepo is a sqlx-backed implementation.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `message_id, room_id, sender_id, content, kind, file_url, is_deleted, created_at, updated_at`

// Append persists a message and stamps the room's last-message marker in
// the same transaction, so room-list ordering never lags a send.
func (r *MessageRepo) Append(ctx context.Context, roomID, senderID int64, content string, kind models.MessageKind, fileURL string) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var msg models.Message
	url := sql.NullString{String: fileURL, Valid: fileURL != ""}
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO messages (room_id, sender_id, content, kind, file_url)
         VALUES ($1, $2, $3, $4, $5) RETURNING `+messageColumns,
		roomID, senderID, content, kind, url).StructScan(&msg)
	if err != nil {
		return models.Message{}, err
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE chat_rooms SET last_message_at = $2 WHERE room_id = $1`,
		roomID, msg.CreatedAt); err != nil {
		return models.Message{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// Page returns up to limit non-deleted messages strictly older than the
// cursor message (beforeID 0 means the newest page), newest first, plus a
// hasMore flag. Keyset on (created_at, message_id) keeps equal-timestamp
// messages paging deterministically.
func (r *MessageRepo) Page(ctx context.Context, roomID, beforeID int64, limit int) ([]models.Message, bool, error) {
	var (
		msgs []models.Message
		err  error
	)
	if beforeID > 0 {
		query := `SELECT ` + messageColumns + ` FROM messages
            WHERE room_id = $1 AND is_deleted = FALSE
            AND (created_at, message_id) < (
                SELECT created_at, message_id FROM messages WHERE message_id = $2
            )
            ORDER BY created_at DESC, message_id DESC
            LIMIT $3`
		err = r.db.SelectContext(ctx, &msgs, query, roomID, beforeID, limit+1)
	} else {
		query := `SELECT ` + messageColumns + ` FROM messages
            WHERE room_id = $1 AND is_deleted = FALSE
            ORDER BY created_at DESC, message_id DESC
            LIMIT $2`
		err = r.db.SelectContext(ctx, &msgs, query, roomID, limit+1)
	}
	if err != nil {
		return nil, false, err
	}

	hasMore := len(msgs) > limit
	if hasMore {
		msgs = msgs[:limit]
	}
	return msgs, hasMore, nil
}

// Get retrieves a single message, deleted or not.
func (r *MessageRepo) Get(ctx context.Context, messageID int64) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM messages WHERE message_id = $1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// Last returns the most recent non-deleted message in the room.
func (r *MessageRepo) Last(ctx context.Context, roomID int64) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM messages
         WHERE room_id = $1 AND is_deleted = FALSE
         ORDER BY created_at DESC, message_id DESC LIMIT 1`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// SoftDelete replaces the content with the placeholder and marks the row
// deleted. The row itself is never removed. Returns false when the
// message was already deleted (the guard matches only live rows), which
// callers treat as an idempotent no-op.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE messages SET is_deleted = TRUE, content = $2, updated_at = NOW()
         WHERE message_id = $1 AND is_deleted = FALSE`,
		messageID, models.DeletedPlaceholder)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CountUnread implements the authoritative unread semantics: non-deleted
// messages newer than COALESCE(last_read_at, joined_at) not sent by the
// member. Both the room list and the room detail go through here.
func (r *MessageRepo) CountUnread(ctx context.Context, roomID, userID int64) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM messages m
        INNER JOIN chat_room_members crm ON crm.room_id = m.room_id AND crm.user_id = $2
        WHERE m.room_id = $1
        AND m.is_deleted = FALSE
        AND m.sender_id != $2
        AND m.created_at > COALESCE(crm.last_read_at, crm.joined_at)`
	err := r.db.GetContext(ctx, &count, query, roomID, userID)
	return count, err
}

// IsRead reports whether the user has consumed the message. A sender has
// trivially read their own message.
func (r *MessageRepo) IsRead(ctx context.Context, messageID, userID int64) (bool, error) {
	var read bool
	query := `SELECT m.sender_id = $2 OR EXISTS (
            SELECT 1 FROM chat_room_members crm
            WHERE crm.room_id = m.room_id AND crm.user_id = $2
            AND crm.last_read_at IS NOT NULL AND crm.last_read_at >= m.created_at
        )
        FROM messages m WHERE m.message_id = $1`
	err := r.db.GetContext(ctx, &read, query, messageID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrMessageNotFound
	}
	return read, err
}

// ReadCount returns how many other members' watermarks cover the message.
func (r *MessageRepo) ReadCount(ctx context.Context, messageID int64) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM chat_room_members crm
        INNER JOIN messages m ON m.room_id = crm.room_id
        WHERE m.message_id = $1
        AND crm.user_id != m.sender_id
        AND crm.last_read_at IS NOT NULL AND crm.last_read_at >= m.created_at`
	err := r.db.GetContext(ctx, &count, query, messageID)
	return count, err
}
