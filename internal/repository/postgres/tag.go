package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ymatsuda/quillpost/internal/apperror"
	"github.com/ymatsuda/quillpost/internal/model"
)

// ListTags returns every tag with its post count, ordered alphabetically.
func (db *DB) ListTags(ctx context.Context) ([]model.TagWithCount, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT t.id, t.name, t.color, COUNT(pt.post_id)
		 FROM tags t
		 LEFT JOIN post_tags pt ON pt.tag_id = t.id
		 GROUP BY t.id, t.name, t.color
		 ORDER BY t.name`,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing tags: %w", err)
	}
	defer rows.Close()

	tags := []model.TagWithCount{}
	for rows.Next() {
		var t model.TagWithCount
		if err := rows.Scan(&t.ID, &t.Name, &t.Color, &t.PostCount); err != nil {
			return nil, fmt.Errorf("postgres: scanning tag row: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating tags: %w", err)
	}
	return tags, nil
}

// GetTagByName looks a tag up by its unique name.
func (db *DB) GetTagByName(ctx context.Context, name string) (*model.Tag, error) {
	var t model.Tag
	err := db.pool.QueryRow(ctx,
		`SELECT id, name, color FROM tags WHERE name = $1`, name,
	).Scan(&t.ID, &t.Name, &t.Color)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("tag", name)
		}
		return nil, fmt.Errorf("postgres: getting tag %q: %w", name, err)
	}
	return &t, nil
}

// CreateTag inserts a new tag; a taken name is ErrConflict.
func (db *DB) CreateTag(ctx context.Context, tag *model.Tag) error {
	err := db.pool.QueryRow(ctx,
		`INSERT INTO tags (name, color) VALUES ($1, $2) RETURNING id`,
		tag.Name, tag.Color,
	).Scan(&tag.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict(fmt.Sprintf("tag %q already exists", tag.Name))
		}
		return fmt.Errorf("postgres: creating tag %q: %w", tag.Name, err)
	}
	return nil
}
