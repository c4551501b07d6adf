package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ymatsuda/quillpost/internal/apperror"
	"github.com/ymatsuda/quillpost/internal/model"
	"github.com/ymatsuda/quillpost/internal/repository"
)

// compile-time check that *DB implements the full store
var _ repository.Store = (*DB)(nil)

// CreatePost inserts the post and links its tags in one transaction.
func (db *DB) CreatePost(ctx context.Context, post *model.Post, tagNames []string) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	post.Date = time.Now()

	if err := tx.QueryRow(ctx,
		`INSERT INTO posts (title, description, date, image_url, user_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		post.Title, post.Description, post.Date, post.ImageURL, post.UserID,
	).Scan(&post.ID); err != nil {
		return fmt.Errorf("postgres: inserting post: %w", err)
	}

	for _, name := range tagNames {
		// Upsert the tag, then read its id in a second statement so the id
		// comes back even when another request inserted the tag first
		// (ON CONFLICT DO NOTHING returns no row for the loser).
		if _, err := tx.Exec(ctx,
			`INSERT INTO tags (name, color) VALUES ($1, $2)
			 ON CONFLICT (name) DO NOTHING`,
			name, model.DefaultTagColor,
		); err != nil {
			return fmt.Errorf("postgres: upserting tag %q: %w", name, err)
		}

		var tagID int64
		if err := tx.QueryRow(ctx,
			`SELECT id FROM tags WHERE name = $1`, name,
		).Scan(&tagID); err != nil {
			return fmt.Errorf("postgres: looking up tag %q: %w", name, err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO post_tags (post_id, tag_id) VALUES ($1, $2)
			 ON CONFLICT (post_id, tag_id) DO NOTHING`,
			post.ID, tagID,
		); err != nil {
			return fmt.Errorf("postgres: linking tag %q: %w", name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: committing post: %w", err)
	}
	return nil
}

// postQuery builds the annotated post SELECT for the given filter using
// numbered placeholders. See the sqlite backend for the shape rationale.
func postQuery(filter repository.PostFilter, id *int64) (string, []any) {
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	favExpr := "false"
	if filter.Viewer != "" {
		favExpr = "EXISTS (SELECT 1 FROM favorites fv WHERE fv.post_id = p.id AND fv.user_id = " +
			next(filter.Viewer) + ")"
	}

	q := `SELECT p.id, p.title, p.description, p.date, p.image_url, p.user_id,
	             u.first_name, u.last_name, u.image_url,
	             (SELECT COUNT(*) FROM favorites fc WHERE fc.post_id = p.id) AS favorite_count,
	             ` + favExpr + ` AS is_favorited
	      FROM posts p
	      LEFT JOIN users u ON u.id = p.user_id`

	var conds []string
	if id != nil {
		conds = append(conds, "p.id = "+next(*id))
	}
	if filter.Owner != nil {
		conds = append(conds, "p.user_id = "+next(*filter.Owner))
	}
	if filter.Tag != "" {
		conds = append(conds,
			"EXISTS (SELECT 1 FROM post_tags pt JOIN tags t ON t.id = pt.tag_id WHERE pt.post_id = p.id AND t.name = "+
				next(filter.Tag)+")")
	}
	if filter.FavoritedBy != "" {
		conds = append(conds,
			"EXISTS (SELECT 1 FROM favorites ff WHERE ff.post_id = p.id AND ff.user_id = "+
				next(filter.FavoritedBy)+")")
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY p.date DESC, p.id DESC"

	return q, args
}

func scanPostView(rows pgx.Rows) (*model.PostView, error) {
	var (
		v         model.PostView
		firstName *string
		lastName  *string
		avatarURL *string
	)
	if err := rows.Scan(
		&v.ID, &v.Title, &v.Description, &v.Date, &v.ImageURL, &v.UserID,
		&firstName, &lastName, &avatarURL,
		&v.FavoriteCount, &v.IsFavorited,
	); err != nil {
		return nil, err
	}
	if v.UserID != nil {
		owner := model.User{
			ID:        *v.UserID,
			FirstName: firstName,
			LastName:  lastName,
			ImageURL:  avatarURL,
		}
		v.User = owner.Summary()
	}
	v.Tags = []model.Tag{}
	return &v, nil
}

// ListPosts returns annotated posts newest-first.
func (db *DB) ListPosts(ctx context.Context, filter repository.PostFilter) ([]model.PostView, error) {
	query, args := postQuery(filter, nil)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing posts: %w", err)
	}
	defer rows.Close()

	views := []model.PostView{}
	for rows.Next() {
		v, err := scanPostView(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scanning post row: %w", err)
		}
		views = append(views, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating posts: %w", err)
	}

	if err := db.attachTags(ctx, views); err != nil {
		return nil, err
	}
	return views, nil
}

// GetPost fetches one annotated post, honoring the filter.
func (db *DB) GetPost(ctx context.Context, id int64, filter repository.PostFilter) (*model.PostView, error) {
	query, args := postQuery(filter, &id)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: getting post %d: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("postgres: getting post %d: %w", id, err)
		}
		return nil, apperror.NotFound("post", id)
	}
	v, err := scanPostView(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scanning post %d: %w", id, err)
	}
	rows.Close()

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

	ids := make([]int64, len(views))
	index := make(map[int64]int, len(views))
	for i := range views {
		ids[i] = views[i].ID
		index[views[i].ID] = i
	}

	rows, err := db.pool.Query(ctx,
		`SELECT pt.post_id, t.id, t.name, t.color
		 FROM post_tags pt
		 JOIN tags t ON t.id = pt.tag_id
		 WHERE pt.post_id = ANY($1)
		 ORDER BY t.name`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("postgres: loading post tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			postID int64
			tag    model.Tag
		)
		if err := rows.Scan(&postID, &tag.ID, &tag.Name, &tag.Color); err != nil {
			return fmt.Errorf("postgres: scanning tag row: %w", err)
		}
		i := index[postID]
		views[i].Tags = append(views[i].Tags, tag)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("postgres: iterating post tags: %w", err)
	}
	return nil
}

// UpdatePost rewrites title, description and image URL.
func (db *DB) UpdatePost(ctx context.Context, post *model.Post) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE posts SET title = $1, description = $2, image_url = $3 WHERE id = $4`,
		post.Title, post.Description, post.ImageURL, post.ID,
	)
	if err != nil {
		return fmt.Errorf("postgres: updating post %d: %w", post.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("post", post.ID)
	}
	return nil
}

// DeletePost removes the post; tag links and favorites cascade.
func (db *DB) DeletePost(ctx context.Context, id int64) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: deleting post %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("post", id)
	}
	return nil
}

