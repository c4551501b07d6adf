package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ymatsuda/quillpost/internal/apperror"
	"github.com/ymatsuda/quillpost/internal/model"
)

// ListTags returns every tag with its post count, ordered alphabetically.
func (db *DB) ListTags(ctx context.Context) ([]model.TagWithCount, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT t.id, t.name, t.color, COUNT(pt.post_id)
		 FROM tags t
		 LEFT JOIN post_tags pt ON pt.tag_id = t.id
		 GROUP BY t.id, t.name, t.color
		 ORDER BY t.name`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing tags: %w", err)
	}
	defer rows.Close()

	tags := []model.TagWithCount{}
	for rows.Next() {
		var t model.TagWithCount
		if err := rows.Scan(&t.ID, &t.Name, &t.Color, &t.PostCount); err != nil {
			return nil, fmt.Errorf("sqlite: scanning tag row: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating tags: %w", err)
	}
	return tags, nil
}

// GetTagByName looks a tag up by its unique name.
func (db *DB) GetTagByName(ctx context.Context, name string) (*model.Tag, error) {
	var t model.Tag
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, color FROM tags WHERE name = ?`, name,
	).Scan(&t.ID, &t.Name, &t.Color)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("tag", name)
		}
		return nil, fmt.Errorf("sqlite: getting tag %q: %w", name, err)
	}
	return &t, nil
}

// CreateTag inserts a new tag. A taken name surfaces as ErrConflict so the
// service can fall back to the existing row.
func (db *DB) CreateTag(ctx context.Context, tag *model.Tag) error {
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO tags (name, color) VALUES (?, ?)`,
		tag.Name, tag.Color,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict(fmt.Sprintf("tag %q already exists", tag.Name))
		}
		return fmt.Errorf("sqlite: creating tag %q: %w", tag.Name, err)
	}

	tag.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading tag id: %w", err)
	}
	return nil
}
