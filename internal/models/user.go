package models

import (
	"database/sql"
	"time"
)

// User is a profile row, consumed for sender attribution and
// personal-room display names.
type User struct {
	ID           int64          `db:"user_id" json:"user_id"`
	Name         string         `db:"name" json:"name"`
	ProfileImage sql.NullString `db:"profile_image" json:"-"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}
