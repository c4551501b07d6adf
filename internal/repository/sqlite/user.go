package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ymatsuda/quillpost/internal/apperror"
	"github.com/ymatsuda/quillpost/internal/model"
)

func scanUser(scan func(...any) error) (*model.User, error) {
	var (
		u         model.User
		firstName sql.NullString
		lastName  sql.NullString
		imageURL  sql.NullString
	)
	if err := scan(&u.ID, &u.Email, &firstName, &lastName, &imageURL,
		&u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if firstName.Valid {
		u.FirstName = &firstName.String
	}
	if lastName.Valid {
		u.LastName = &lastName.String
	}
	if imageURL.Valid {
		u.ImageURL = &imageURL.String
	}
	return &u, nil
}

// GetUser retrieves a user by their provider ID.
func (db *DB) GetUser(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT id, email, first_name, last_name, image_url, created_at, updated_at
		 FROM users WHERE id = ?`,
		id,
	).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// UpsertUser inserts the user or, if the ID already exists, refreshes the
// mutable profile fields. CreatedAt of an existing row is preserved. The
// single ON CONFLICT statement keeps two concurrent first syncs from racing.
func (db *DB) UpsertUser(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.UpdatedAt = now

	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO users (id, email, first_name, last_name, image_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		 	email = excluded.email,
		 	first_name = excluded.first_name,
		 	last_name = excluded.last_name,
		 	image_url = excluded.image_url,
		 	updated_at = excluded.updated_at
		 RETURNING created_at`,
		user.ID, user.Email, user.FirstName, user.LastName, user.ImageURL, now, now,
	).Scan(&user.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: upserting user %s: %w", user.ID, err)
	}
	return nil
}

// CreateUser inserts a new user; an existing ID is ErrConflict. Used by the
// webhook path, which needs to distinguish "already mirrored" from failure.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, first_name, last_name, image_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.FirstName, user.LastName, user.ImageURL,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict(fmt.Sprintf("user %s already exists", user.ID))
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.ID, err)
	}
	return nil
}

// UpdateUser rewrites the profile fields of an existing user.
func (db *DB) UpdateUser(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET email = ?, first_name = ?, last_name = ?, image_url = ?, updated_at = ?
		 WHERE id = ?`,
		user.Email, user.FirstName, user.LastName, user.ImageURL, user.UpdatedAt, user.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("user", user.ID)
	}
	return nil
}

// DeleteUser removes the user row. Their favorites cascade away and their
// posts revert to a NULL owner.
func (db *DB) DeleteUser(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}
