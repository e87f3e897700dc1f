package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-core/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository caches token-holder identities locally.
type UserRepository interface {
	UpsertUser(ctx context.Context, id int, username, avatarURL string) error
	GetUser(ctx context.Context, id int) (models.User, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// UpsertUser records the identity carried by a validated token.
func (r *UserRepo) UpsertUser(ctx context.Context, id int, username, avatarURL string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, avatar_url, last_seen)
         VALUES ($1, $2, $3, NOW())
         ON CONFLICT (id) DO UPDATE
         SET username = EXCLUDED.username,
             avatar_url = CASE WHEN EXCLUDED.avatar_url <> '' THEN EXCLUDED.avatar_url ELSE users.avatar_url END,
             last_seen = NOW()`,
		id, username, avatarURL)
	return err
}

// GetUser fetches a cached identity.
func (r *UserRepo) GetUser(ctx context.Context, id int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		`SELECT id, username, avatar_url, last_seen FROM users WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}
