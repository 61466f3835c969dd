package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// ErrUserNotFound represents missing user rows.
var ErrUserNotFound = errors.New("user not found")

// UserRepository resolves display names from the shared user directory.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository returns repository instance.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// DisplayName fetches the name of the user with the given id.
func (r *UserRepository) DisplayName(ctx context.Context, userID int64) (string, error) {
	const query = `
		SELECT nombre
		FROM user_data.usuarios
		WHERE id = $1
		LIMIT 1
	`
	var name sql.NullString
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	if !name.Valid || strings.TrimSpace(name.String) == "" {
		return "", ErrUserNotFound
	}
	return name.String, nil
}
