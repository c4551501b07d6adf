package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/ymatsuda/quillpost/internal/apperror"
	"github.com/ymatsuda/quillpost/internal/model"
	"github.com/ymatsuda/quillpost/internal/repository"
)

// ListFavorites returns the user's favorites newest-first, each joined with
// the favorited post. Every listed post is by definition favorited by the
// caller, so the list query reuses the annotated post view with the caller as
// both viewer and favorite filter.
func (db *DB) ListFavorites(ctx context.Context, userID string) ([]model.FavoriteView, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT user_id, post_id, created_at FROM favorites
		 WHERE user_id = ?
		 ORDER BY created_at DESC, post_id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing favorites: %w", err)
	}
	defer rows.Close()

	favorites := []model.FavoriteView{}
	for rows.Next() {
		var f model.FavoriteView
		if err := rows.Scan(&f.UserID, &f.PostID, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning favorite row: %w", err)
		}
		favorites = append(favorites, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating favorites: %w", err)
	}

	posts, err := db.ListPosts(ctx, repository.PostFilter{
		FavoritedBy: userID,
		Viewer:      userID,
	})
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*model.PostView, len(posts))
	for i := range posts {
		byID[posts[i].ID] = &posts[i]
	}
	for i := range favorites {
		favorites[i].Post = byID[favorites[i].PostID]
	}

	return favorites, nil
}

// AddFavorite inserts the (user, post) pair. A duplicate pair is ErrConflict.
func (db *DB) AddFavorite(ctx context.Context, userID string, postID int64) (*model.Favorite, error) {
	f := &model.Favorite{
		UserID:    userID,
		PostID:    postID,
		CreatedAt: time.Now(),
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO favorites (user_id, post_id, created_at) VALUES (?, ?, ?)`,
		f.UserID, f.PostID, f.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.Conflict("post is already favorited")
		}
		return nil, fmt.Errorf("sqlite: adding favorite (%s, %d): %w", userID, postID, err)
	}
	return f, nil
}

// FavoriteExists reports whether the user has favorited the post.
func (db *DB) FavoriteExists(ctx context.Context, userID string, postID int64) (bool, error) {
	var exists int
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM favorites WHERE user_id = ? AND post_id = ?)`,
		userID, postID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking favorite (%s, %d): %w", userID, postID, err)
	}
	return exists == 1, nil
}

// RemoveFavorite deletes the pair; a missing pair is ErrNotFound.
func (db *DB) RemoveFavorite(ctx context.Context, userID string, postID int64) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM favorites WHERE user_id = ? AND post_id = ?`,
		userID, postID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: removing favorite (%s, %d): %w", userID, postID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("favorite", postID)
	}
	return nil
}
