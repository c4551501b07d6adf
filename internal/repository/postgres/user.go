package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ymatsuda/quillpost/internal/apperror"
	"github.com/ymatsuda/quillpost/internal/model"
)

// GetUser retrieves a user by their provider ID.
func (db *DB) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := db.pool.QueryRow(ctx,
		`SELECT id, email, first_name, last_name, image_url, created_at, updated_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.ImageURL,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("postgres: getting user %s: %w", id, err)
	}
	return &u, nil
}

// UpsertUser inserts the user or refreshes the profile fields of an existing
// row, preserving its created_at.
func (db *DB) UpsertUser(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.UpdatedAt = now

	err := db.pool.QueryRow(ctx,
		`INSERT INTO users (id, email, first_name, last_name, image_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)
		 ON CONFLICT (id) DO UPDATE SET
		 	email = EXCLUDED.email,
		 	first_name = EXCLUDED.first_name,
		 	last_name = EXCLUDED.last_name,
		 	image_url = EXCLUDED.image_url,
		 	updated_at = EXCLUDED.updated_at
		 RETURNING created_at`,
		user.ID, user.Email, user.FirstName, user.LastName, user.ImageURL, now,
	).Scan(&user.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: upserting user %s: %w", user.ID, err)
	}
	return nil
}

// CreateUser inserts a new user; an existing ID is ErrConflict.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.pool.Exec(ctx,
		`INSERT INTO users (id, email, first_name, last_name, image_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Email, user.FirstName, user.LastName, user.ImageURL,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict(fmt.Sprintf("user %s already exists", user.ID))
		}
		return fmt.Errorf("postgres: inserting user %s: %w", user.ID, err)
	}
	return nil
}

// UpdateUser rewrites the profile fields of an existing user.
func (db *DB) UpdateUser(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now()

	tag, err := db.pool.Exec(ctx,
		`UPDATE users SET email = $1, first_name = $2, last_name = $3, image_url = $4, updated_at = $5
		 WHERE id = $6`,
		user.Email, user.FirstName, user.LastName, user.ImageURL, user.UpdatedAt, user.ID,
	)
	if err != nil {
		return fmt.Errorf("postgres: updating user %s: %w", user.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("user", user.ID)
	}
	return nil
}

// DeleteUser removes the user row. Their favorites cascade away and their
// posts revert to a NULL owner.
func (db *DB) DeleteUser(ctx context.Context, id string) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: deleting user %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}
