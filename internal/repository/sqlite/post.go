package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ymatsuda/quillpost/internal/apperror"
	"github.com/ymatsuda/quillpost/internal/model"
	"github.com/ymatsuda/quillpost/internal/repository"
)

// compile-time check that *DB implements the full store
var _ repository.Store = (*DB)(nil)

// CreatePost inserts the post and links its tags in one transaction.
// Tags that do not exist yet are created on the fly; a failure at any point
// rolls back the post and every link.
func (db *DB) CreatePost(ctx context.Context, post *model.Post, tagNames []string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	post.Date = time.Now()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO posts (title, description, date, image_url, user_id)
		 VALUES (?, ?, ?, ?, ?)`,
		post.Title, post.Description, post.Date, post.ImageURL, post.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting post: %w", err)
	}
	post.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading post id: %w", err)
	}

	for _, name := range tagNames {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tags (name, color) VALUES (?, ?)
			 ON CONFLICT(name) DO NOTHING`,
			name, model.DefaultTagColor,
		); err != nil {
			return fmt.Errorf("sqlite: upserting tag %q: %w", name, err)
		}

		var tagID int64
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM tags WHERE name = ?`, name,
		).Scan(&tagID); err != nil {
			return fmt.Errorf("sqlite: looking up tag %q: %w", name, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO post_tags (post_id, tag_id) VALUES (?, ?)
			 ON CONFLICT(post_id, tag_id) DO NOTHING`,
			post.ID, tagID,
		); err != nil {
			return fmt.Errorf("sqlite: linking tag %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing post: %w", err)
	}
	return nil
}

// postQuery builds the annotated post SELECT for the given filter. The id
// argument, when non-nil, narrows to a single post. Placeholder order: the
// viewer (if any) appears in the select list, so its argument comes first.
func postQuery(filter repository.PostFilter, id *int64) (string, []any) {
	favExpr := "0"
	var args []any
	if filter.Viewer != "" {
		favExpr = "EXISTS (SELECT 1 FROM favorites fv WHERE fv.post_id = p.id AND fv.user_id = ?)"
		args = append(args, filter.Viewer)
	}

	q := `SELECT p.id, p.title, p.description, p.date, p.image_url, p.user_id,
	             u.first_name, u.last_name, u.image_url,
	             (SELECT COUNT(*) FROM favorites fc WHERE fc.post_id = p.id) AS favorite_count,
	             ` + favExpr + ` AS is_favorited
	      FROM posts p
	      LEFT JOIN users u ON u.id = p.user_id`

	var conds []string
	if id != nil {
		conds = append(conds, "p.id = ?")
		args = append(args, *id)
	}
	if filter.Owner != nil {
		conds = append(conds, "p.user_id = ?")
		args = append(args, *filter.Owner)
	}
	if filter.Tag != "" {
		conds = append(conds,
			"EXISTS (SELECT 1 FROM post_tags pt JOIN tags t ON t.id = pt.tag_id WHERE pt.post_id = p.id AND t.name = ?)")
		args = append(args, filter.Tag)
	}
	if filter.FavoritedBy != "" {
		conds = append(conds,
			"EXISTS (SELECT 1 FROM favorites ff WHERE ff.post_id = p.id AND ff.user_id = ?)")
		args = append(args, filter.FavoritedBy)
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY p.date DESC, p.id DESC"

	return q, args
}

func scanPostView(scan func(...any) error) (*model.PostView, error) {
	var (
		v          model.PostView
		imageURL   sql.NullString
		userID     sql.NullString
		firstName  sql.NullString
		lastName   sql.NullString
		avatarURL  sql.NullString
		favoritedN int
	)
	if err := scan(
		&v.ID, &v.Title, &v.Description, &v.Date, &imageURL, &userID,
		&firstName, &lastName, &avatarURL,
		&v.FavoriteCount, &favoritedN,
	); err != nil {
		return nil, err
	}
	if imageURL.Valid {
		v.ImageURL = &imageURL.String
	}
	if userID.Valid {
		v.UserID = &userID.String
		owner := model.User{ID: userID.String}
		if firstName.Valid {
			owner.FirstName = &firstName.String
		}
		if lastName.Valid {
			owner.LastName = &lastName.String
		}
		if avatarURL.Valid {
			owner.ImageURL = &avatarURL.String
		}
		v.User = owner.Summary()
	}
	v.IsFavorited = favoritedN != 0
	v.Tags = []model.Tag{}
	return &v, nil
}

// ListPosts returns annotated posts newest-first.
func (db *DB) ListPosts(ctx context.Context, filter repository.PostFilter) ([]model.PostView, error) {
	query, args := postQuery(filter, nil)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts: %w", err)
	}
	defer rows.Close()

	views := []model.PostView{}
	for rows.Next() {
		v, err := scanPostView(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning post row: %w", err)
		}
		views = append(views, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating posts: %w", err)
	}

	if err := db.attachTags(ctx, views); err != nil {
		return nil, err
	}
	return views, nil
}

// GetPost fetches one annotated post, honoring the filter. A post that exists
// but is excluded by the filter (e.g. owned by someone else on an owner-scoped
// read) is reported as not found.
func (db *DB) GetPost(ctx context.Context, id int64, filter repository.PostFilter) (*model.PostView, error) {
	query, args := postQuery(filter, &id)

	v, err := scanPostView(db.conn.QueryRowContext(ctx, query, args...).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("sqlite: getting post %d: %w", id, err)
	}

	views := []model.PostView{*v}
	if err := db.attachTags(ctx, views); err != nil {
		return nil, err
	}
	return &views[0], nil
}

// attachTags loads the tags for every post in views with a single query.
func (db *DB) attachTags(ctx context.Context, views []model.PostView) error {
	if len(views) == 0 {
		return nil
	}

	placeholders := make([]string, len(views))
	args := make([]any, len(views))
	index := make(map[int64]int, len(views))
	for i := range views {
		placeholders[i] = "?"
		args[i] = views[i].ID
		index[views[i].ID] = i
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT pt.post_id, t.id, t.name, t.color
		 FROM post_tags pt
		 JOIN tags t ON t.id = pt.tag_id
		 WHERE pt.post_id IN (`+strings.Join(placeholders, ", ")+`)
		 ORDER BY t.name`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("sqlite: loading post tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			postID int64
			tag    model.Tag
		)
		if err := rows.Scan(&postID, &tag.ID, &tag.Name, &tag.Color); err != nil {
			return fmt.Errorf("sqlite: scanning tag row: %w", err)
		}
		i := index[postID]
		views[i].Tags = append(views[i].Tags, tag)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: iterating post tags: %w", err)
	}
	return nil
}

// UpdatePost rewrites title, description and image URL. The owner and date
// are immutable.
func (db *DB) UpdatePost(ctx context.Context, post *model.Post) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE posts SET title = ?, description = ?, image_url = ? WHERE id = ?`,
		post.Title, post.Description, post.ImageURL, post.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating post %d: %w", post.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("post", post.ID)
	}
	return nil
}

// DeletePost removes the post; tag links and favorites cascade.
func (db *DB) DeletePost(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting post %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("post", id)
	}
	return nil
}
