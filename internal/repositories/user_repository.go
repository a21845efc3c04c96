package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"club-chat-service/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository exposes the profile directory used for sender
// attribution and personal-room display names.
type UserRepository interface {
	Get(ctx context.Context, userID int64) (models.User, error)
	Bulk(ctx context.Context, userIDs []int64) ([]models.User, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Get fetches a single user.
func (r *UserRepo) Get(ctx context.Context, userID int64) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		`SELECT user_id, name, profile_image, created_at FROM users WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// Bulk fetches multiple users in one round trip. Unknown ids are simply
// absent from the result.
func (r *UserRepo) Bulk(ctx context.Context, userIDs []int64) ([]models.User, error) {
	if len(userIDs) == 0 {
		return []models.User{}, nil
	}
	var users []models.User
	err := r.db.SelectContext(ctx, &users,
		`SELECT user_id, name, profile_image, created_at FROM users WHERE user_id = ANY($1)`,
		pq.Array(userIDs))
	return users, err
}
