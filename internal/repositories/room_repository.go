package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"club-chat-service/internal/models"
)

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrMembershipNotFound = errors.New("membership not found")
)

// RoomRepository abstracts room and membership persistence.
type RoomRepository interface {
	CreatePersonal(ctx context.Context, creatorID, otherID int64) (models.Room, bool, error)
	CreateGroup(ctx context.Context, creatorID int64, name string, memberIDs []int64) (models.Room, error)
	Get(ctx context.Context, roomID int64) (models.Room, error)
	ListForUser(ctx context.Context, userID int64) ([]models.Room, error)
	ListMembers(ctx context.Context, roomID int64) ([]models.Member, error)
	GetMembership(ctx context.Context, roomID, userID int64) (models.Member, error)
	IsMember(ctx context.Context, roomID, userID int64) (bool, error)
	RemoveMembership(ctx context.Context, roomID, userID int64) error
	MarkRead(ctx context.Context, roomID, userID int64, at time.Time) error
}

// RoomRepo is a sqlx implementation of RoomRepository.
type RoomRepo struct {
	db *sqlx.DB
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

const roomColumns = `room_id, name, kind, last_message_at, created_at`

// CreatePersonal resolves or creates the 1:1 room for the pair. The
// returned bool is true when an existing room was reused. The pair lookup
// and insert run in one transaction; a perfectly interleaved duplicate
// request can still race past the check, which is accepted as degraded
// behavior rather than papered over with locking.
func (r *RoomRepo) CreatePersonal(ctx context.Context, creatorID, otherID int64) (models.Room, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Room{}, false, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var room models.Room
	lookup := `SELECT cr.` + roomColumns + ` FROM chat_rooms cr
        WHERE cr.kind = 'personal'
        AND EXISTS (SELECT 1 FROM chat_room_members m1 WHERE m1.room_id = cr.room_id AND m1.user_id = $1)
        AND EXISTS (SELECT 1 FROM chat_room_members m2 WHERE m2.room_id = cr.room_id AND m2.user_id = $2)
        LIMIT 1`
	err = tx.GetContext(ctx, &room, lookup, creatorID, otherID)
	if err == nil {
		if err = tx.Commit(); err != nil {
			return models.Room{}, false, err
		}
		return room, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, false, err
	}

	err = tx.QueryRowxContext(ctx,
		`INSERT INTO chat_rooms (kind) VALUES ('personal') RETURNING `+roomColumns).
		StructScan(&room)
	if err != nil {
		return models.Room{}, false, err
	}

	for _, id := range []int64{creatorID, otherID} {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO chat_room_members (room_id, user_id) VALUES ($1, $2)`, room.ID, id); err != nil {
			return models.Room{}, false, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Room{}, false, err
	}
	return room, false, nil
}

// CreateGroup creates a group room and its roster atomically. The creator
// is always a member; memberIDs are deduplicated against the creator.
func (r *RoomRepo) CreateGroup(ctx context.Context, creatorID int64, name string, memberIDs []int64) (models.Room, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Room{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var room models.Room
	roomName := sql.NullString{String: name, Valid: name != ""}
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO chat_rooms (name, kind) VALUES ($1, 'group') RETURNING `+roomColumns,
		roomName).StructScan(&room)
	if err != nil {
		return models.Room{}, err
	}

	memberSet := map[int64]struct{}{creatorID: {}}
	for _, id := range memberIDs {
		memberSet[id] = struct{}{}
	}
	ids := make([]int64, 0, len(memberSet))
	for id := range memberSet {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO chat_room_members (room_id, user_id) VALUES ($1, $2)`, room.ID, id); err != nil {
			return models.Room{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Room{}, err
	}
	return room, nil
}

// Get fetches a room by id.
func (r *RoomRepo) Get(ctx context.Context, roomID int64) (models.Room, error) {
	var room models.Room
	err := r.db.GetContext(ctx, &room,
		`SELECT `+roomColumns+` FROM chat_rooms WHERE room_id = $1`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, ErrRoomNotFound
	}
	return room, err
}

// ListForUser returns the user's rooms, most recently active first. Rooms
// that never saw a message sort after the rest, newest created first.
func (r *RoomRepo) ListForUser(ctx context.Context, userID int64) ([]models.Room, error) {
	var rooms []models.Room
	query := `SELECT cr.` + roomColumns + ` FROM chat_rooms cr
        INNER JOIN chat_room_members m ON m.room_id = cr.room_id
        WHERE m.user_id = $1
        ORDER BY cr.last_message_at DESC NULLS LAST, cr.created_at DESC`
	err := r.db.SelectContext(ctx, &rooms, query, userID)
	return rooms, err
}

// ListMembers returns the room's full roster.
func (r *RoomRepo) ListMembers(ctx context.Context, roomID int64) ([]models.Member, error) {
	var members []models.Member
	err := r.db.SelectContext(ctx, &members,
		`SELECT member_id, room_id, user_id, joined_at, last_read_at
         FROM chat_room_members WHERE room_id = $1 ORDER BY joined_at ASC, member_id ASC`, roomID)
	return members, err
}

// GetMembership fetches the (room, user) membership row.
func (r *RoomRepo) GetMembership(ctx context.Context, roomID, userID int64) (models.Member, error) {
	var member models.Member
	err := r.db.GetContext(ctx, &member,
		`SELECT member_id, room_id, user_id, joined_at, last_read_at
         FROM chat_room_members WHERE room_id = $1 AND user_id = $2`, roomID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Member{}, ErrMembershipNotFound
	}
	return member, err
}

// IsMember checks whether a user belongs to the room.
func (r *RoomRepo) IsMember(ctx context.Context, roomID, userID int64) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM chat_room_members WHERE room_id = $1 AND user_id = $2)`,
		roomID, userID)
	return exists, err
}

// RemoveMembership hard-deletes the membership row. Messages keep their
// history; only the access grant goes away.
func (r *RoomRepo) RemoveMembership(ctx context.Context, roomID, userID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM chat_room_members WHERE room_id = $1 AND user_id = $2`, roomID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMembershipNotFound
	}
	return nil
}

// MarkRead advances the member's read watermark.
func (r *RoomRepo) MarkRead(ctx context.Context, roomID, userID int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE chat_room_members SET last_read_at = $3 WHERE room_id = $1 AND user_id = $2`,
		roomID, userID, at)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMembershipNotFound
	}
	return nil
}
