package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ymatsuda/quillpost/internal/apperror"
	"github.com/ymatsuda/quillpost/internal/model"
	"github.com/ymatsuda/quillpost/internal/repository"
)

// ListFavorites returns the user's favorites newest-first with the favorited
// posts attached.
func (db *DB) ListFavorites(ctx context.Context, userID string) ([]model.FavoriteView, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT user_id, post_id, created_at FROM favorites
		 WHERE user_id = $1
		 ORDER BY created_at DESC, post_id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing favorites: %w", err)
	}
	defer rows.Close()

	favorites := []model.FavoriteView{}
	for rows.Next() {
		var f model.FavoriteView
		if err := rows.Scan(&f.UserID, &f.PostID, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scanning favorite row: %w", err)
		}
		favorites = append(favorites, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating favorites: %w", err)
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

// AddFavorite inserts the (user, post) pair; a duplicate is ErrConflict.
func (db *DB) AddFavorite(ctx context.Context, userID string, postID int64) (*model.Favorite, error) {
	f := &model.Favorite{
		UserID:    userID,
		PostID:    postID,
		CreatedAt: time.Now(),
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO favorites (user_id, post_id, created_at) VALUES ($1, $2, $3)`,
		f.UserID, f.PostID, f.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.Conflict("post is already favorited")
		}
		return nil, fmt.Errorf("postgres: adding favorite (%s, %d): %w", userID, postID, err)
	}
	return f, nil
}

// FavoriteExists reports whether the user has favorited the post.
func (db *DB) FavoriteExists(ctx context.Context, userID string, postID int64) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM favorites WHERE user_id = $1 AND post_id = $2)`,
		userID, postID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: checking favorite (%s, %d): %w", userID, postID, err)
	}
	return exists, nil
}

// RemoveFavorite deletes the pair; a missing pair is ErrNotFound.
func (db *DB) RemoveFavorite(ctx context.Context, userID string, postID int64) error {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM favorites WHERE user_id = $1 AND post_id = $2`,
		userID, postID,
	)
	if err != nil {
		return fmt.Errorf("postgres: removing favorite (%s, %d): %w", userID, postID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("favorite", postID)
	}
	return nil
}
