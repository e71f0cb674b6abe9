package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository mirrors the externally owned identity records this
// service needs for sender resolution.
type UserRepository interface {
	GetUser(ctx context.Context, userID string) (models.User, error)
	UpsertUser(ctx context.Context, user models.User) (models.User, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetUser fetches a user by id.
func (r *UserRepo) GetUser(ctx context.Context, userID string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		`SELECT id, COALESCE(email, '') AS email, first_name, last_name, profile_image_url, created_at
         FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// UpsertUser inserts or refreshes a user profile. Blank incoming fields
// never overwrite stored values, so re-upserting just the id is safe.
func (r *UserRepo) UpsertUser(ctx context.Context, user models.User) (models.User, error) {
	var out models.User
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO users (id, email, first_name, last_name, profile_image_url)
         VALUES ($1, NULLIF($2, ''), $3, $4, $5)
         ON CONFLICT (id) DO UPDATE SET
             email = COALESCE(EXCLUDED.email, users.email),
             first_name = COALESCE(NULLIF(EXCLUDED.first_name, ''), users.first_name),
             last_name = COALESCE(NULLIF(EXCLUDED.last_name, ''), users.last_name),
             profile_image_url = COALESCE(NULLIF(EXCLUDED.profile_image_url, ''), users.profile_image_url)
         RETURNING id, COALESCE(email, ''), first_name, last_name, profile_image_url, created_at`,
		user.ID, user.Email, user.FirstName, user.LastName, user.ProfileImageURL).
		Scan(&out.ID, &out.Email, &out.FirstName, &out.LastName, &out.ProfileImageURL, &out.CreatedAt)
	return out, err
}
