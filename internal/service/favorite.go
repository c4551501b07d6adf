package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ymatsuda/quillpost/internal/apperror"
	"github.com/ymatsuda/quillpost/internal/model"
	"github.com/ymatsuda/quillpost/internal/repository"
)

// FavoriteService handles favorite business logic.
type FavoriteService struct {
	favorites repository.FavoriteRepository
	posts     repository.PostRepository
	logger    *slog.Logger
}

func NewFavoriteService(favorites repository.FavoriteRepository, posts repository.PostRepository, logger *slog.Logger) *FavoriteService {
	return &FavoriteService{
		favorites: favorites,
		posts:     posts,
		logger:    logger,
	}
}

// List returns the caller's favorites with post and owner details.
func (s *FavoriteService) List(ctx context.Context, userID string) ([]model.FavoriteView, error) {
	favorites, err := s.favorites.ListFavorites(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list favorites",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing favorites: %w", err)
	}
	return favorites, nil
}

// Add favorites a post for the caller. The target post must exist (404) and
// must not already be favorited (409).
func (s *FavoriteService) Add(ctx context.Context, userID string, postID int64) (*model.Favorite, error) {
	if postID <= 0 {
		return nil, apperror.ValidationFailed("postId", "postId must be a positive integer")
	}

	// Existence check first so an unknown post is a 404, not a foreign-key 500.
	if _, err := s.posts.GetPost(ctx, postID, repository.PostFilter{}); err != nil {
		return nil, err
	}

	exists, err := s.favorites.FavoriteExists(ctx, userID, postID)
	if err != nil {
		return nil, fmt.Errorf("checking favorite: %w", err)
	}
	if exists {
		return nil, apperror.Conflict("post is already favorited")
	}

	// The unique constraint still catches a concurrent add that slips past
	// the check.
	favorite, err := s.favorites.AddFavorite(ctx, userID, postID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("favorite added",
		slog.String("userID", userID),
		slog.Int64("postID", postID),
	)
	return favorite, nil
}

// Remove un-favorites a post; a pair that was never favorited is a 404.
func (s *FavoriteService) Remove(ctx context.Context, userID string, postID int64) error {
	if postID <= 0 {
		return apperror.ValidationFailed("postId", "postId must be a positive integer")
	}

	if err := s.favorites.RemoveFavorite(ctx, userID, postID); err != nil {
		return err
	}

	s.logger.Info("favorite removed",
		slog.String("userID", userID),
		slog.Int64("postID", postID),
	)
	return nil
}
