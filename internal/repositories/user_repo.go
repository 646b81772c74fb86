package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avelhart/shelfmark/internal/database"
	"github.com/avelhart/shelfmark/internal/models"
	"github.com/google/uuid"
)

const userColumns = `id, name, username, email, password_hash, google_id, photo, verified, api_key_hash, created_at, updated_at`

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User

	err := scanner.Scan(
		&user.ID, &user.Name, &user.Username, &user.Email,
		&user.PasswordHash, &user.GoogleID, &user.Photo,
		&user.Verified, &user.APIKeyHash,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &user, nil
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, name, username, email, password_hash, google_id, photo, verified, api_key_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + userColumns

	return scanUserRow(r.db.Pool.QueryRow(ctx, query,
		user.ID, user.Name, user.Username, strings.ToLower(user.Email),
		user.PasswordHash, user.GoogleID, user.Photo,
		user.Verified, user.APIKeyHash,
		user.CreatedAt, user.UpdatedAt,
	))
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, email))
}

// GetByEmailOrUsername resolves the local login identifier. Email
// matching is case-insensitive, username matching is exact.
func (r *UserRepository) GetByEmailOrUsername(ctx context.Context, identifier string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1) OR username = $1`
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, identifier))
}

func (r *UserRepository) GetByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE google_id = $1`
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, googleID))
}

func (r *UserRepository) GetByAPIKeyHash(ctx context.Context, hash string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE api_key_hash = $1`
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, hash))
}

func (r *UserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}

// UpdateProfile persists settings changes (name, username, photo).
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, user *models.User) (*models.User, error) {
	query := `
		UPDATE users SET name = $1, username = $2, photo = $3, updated_at = $4
		WHERE id = $5
		RETURNING ` + userColumns

	return scanUserRow(r.db.Pool.QueryRow(ctx, query,
		user.Name, user.Username, user.Photo, time.Now(), id,
	))
}

func (r *UserRepository) SetPassword(ctx context.Context, id, passwordHash string) error {
	return r.exec(ctx, `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`, passwordHash, time.Now(), id)
}

func (r *UserRepository) SetVerified(ctx context.Context, id string, verified bool) error {
	return r.exec(ctx, `UPDATE users SET verified = $1, updated_at = $2 WHERE id = $3`, verified, time.Now(), id)
}

// SetGoogleID links (non-nil) or unlinks (nil) the external identity.
func (r *UserRepository) SetGoogleID(ctx context.Context, id string, googleID *string) error {
	return r.exec(ctx, `UPDATE users SET google_id = $1, updated_at = $2 WHERE id = $3`, googleID, time.Now(), id)
}

func (r *UserRepository) SetAPIKeyHash(ctx context.Context, id string, hash *string) error {
	return r.exec(ctx, `UPDATE users SET api_key_hash = $1, updated_at = $2 WHERE id = $3`, hash, time.Now(), id)
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *UserRepository) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user update: %w", models.ErrNotFound)
	}
	return nil
}
