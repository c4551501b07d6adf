// Package service contains the business rules: request validation, ownership
// checks, and orchestration across repositories. Services speak in domain
// types and apperror values; they know nothing about HTTP.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/ymatsuda/quillpost/internal/apperror"
	"github.com/ymatsuda/quillpost/internal/model"
	"github.com/ymatsuda/quillpost/internal/repository"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 10000
	MaxTagsPerPost       = 10
	MaxTagNameLength     = 50
)

// CanMutate is the single ownership predicate for post edits and deletes:
// a post may be mutated unless it has an owner and that owner is someone
// else. Legacy rows with a NULL owner are mutable by any authenticated
// caller, which is the migration path for databases predating ownership.
func CanMutate(post *model.Post, callerID string) bool {
	return post.UserID == nil || *post.UserID == callerID
}

// PostService handles post business logic.
type PostService struct {
	posts  repository.PostRepository
	users  repository.UserRepository
	logger *slog.Logger
}

func NewPostService(posts repository.PostRepository, users repository.UserRepository, logger *slog.Logger) *PostService {
	return &PostService{
		posts:  posts,
		users:  users,
		logger: logger,
	}
}

// CreatePostInput is the accepted shape for post creation.
type CreatePostInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ImageURL    *string  `json:"imageUrl"`
	Tags        []string `json:"tags"`
}

// UpdatePostInput is the accepted shape for post updates.
type UpdatePostInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	ImageURL    *string `json:"imageUrl"`
}

// List returns the caller's posts, optionally narrowed to one tag or to
// favorites only, newest first.
func (s *PostService) List(ctx context.Context, callerID, tag string, favoritesOnly bool) ([]model.PostView, error) {
	filter := repository.PostFilter{
		Owner:  &callerID,
		Viewer: callerID,
		Tag:    strings.TrimSpace(tag),
	}
	if favoritesOnly {
		filter.FavoritedBy = callerID
	}

	views, err := s.posts.ListPosts(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list posts",
			slog.String("userID", callerID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	return views, nil
}

// ListPublic returns every post without ownership filtering. IsFavorited is
// always false for anonymous readers.
func (s *PostService) ListPublic(ctx context.Context, tag string) ([]model.PostView, error) {
	views, err := s.posts.ListPosts(ctx, repository.PostFilter{Tag: strings.TrimSpace(tag)})
	if err != nil {
		s.logger.Error("failed to list public posts", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing public posts: %w", err)
	}
	return views, nil
}

// Get returns one of the caller's posts. Posts owned by someone else are
// reported as not found, same as posts that do not exist.
func (s *PostService) Get(ctx context.Context, callerID string, id int64) (*model.PostView, error) {
	return s.posts.GetPost(ctx, id, repository.PostFilter{
		Owner:  &callerID,
		Viewer: callerID,
	})
}

// GetPublic returns any post by ID for anonymous readers.
func (s *PostService) GetPublic(ctx context.Context, id int64) (*model.PostView, error) {
	return s.posts.GetPost(ctx, id, repository.PostFilter{})
}

// Create validates and saves a new post with its tags. The caller must
// already exist as a synced user row; creating content for an unknown
// identity is a conflict, not an auto-registration.
func (s *PostService) Create(ctx context.Context, callerID string, in CreatePostInput) (*model.PostView, error) {
	title, description, imageURL, err := validatePostFields(in.Title, in.Description, in.ImageURL)
	if err != nil {
		return nil, err
	}
	tags, err := normalizeTags(in.Tags)
	if err != nil {
		return nil, err
	}

	if _, err := s.users.GetUser(ctx, callerID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Conflict("user account is not synced yet")
		}
		return nil, fmt.Errorf("checking user %s: %w", callerID, err)
	}

	post := &model.Post{
		Title:       title,
		Description: description,
		ImageURL:    imageURL,
		UserID:      &callerID,
	}
	if err := s.posts.CreatePost(ctx, post, tags); err != nil {
		s.logger.Error("failed to create post",
			slog.String("userID", callerID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating post: %w", err)
	}

	s.logger.Info("post created",
		slog.Int64("postID", post.ID),
		slog.String("userID", callerID),
		slog.Int("tags", len(tags)),
	)

	return s.posts.GetPost(ctx, post.ID, repository.PostFilter{Viewer: callerID})
}

// Update applies a validated update to a post the caller may mutate.
func (s *PostService) Update(ctx context.Context, callerID string, id int64, in UpdatePostInput) (*model.PostView, error) {
	title, description, imageURL, err := validatePostFields(in.Title, in.Description, in.ImageURL)
	if err != nil {
		return nil, err
	}

	existing, err := s.posts.GetPost(ctx, id, repository.PostFilter{Viewer: callerID})
	if err != nil {
		return nil, err
	}
	if !CanMutate(&existing.Post, callerID) {
		return nil, apperror.Forbidden("only the post owner can edit it")
	}

	post := existing.Post
	post.Title = title
	post.Description = description
	post.ImageURL = imageURL

	if err := s.posts.UpdatePost(ctx, &post); err != nil {
		s.logger.Error("failed to update post",
			slog.Int64("postID", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating post: %w", err)
	}

	s.logger.Info("post updated", slog.Int64("postID", id), slog.String("userID", callerID))
	return s.posts.GetPost(ctx, id, repository.PostFilter{Viewer: callerID})
}

// Delete removes a post the caller may mutate and returns it.
func (s *PostService) Delete(ctx context.Context, callerID string, id int64) (*model.PostView, error) {
	existing, err := s.posts.GetPost(ctx, id, repository.PostFilter{Viewer: callerID})
	if err != nil {
		return nil, err
	}
	if !CanMutate(&existing.Post, callerID) {
		return nil, apperror.Forbidden("only the post owner can delete it")
	}

	if err := s.posts.DeletePost(ctx, id); err != nil {
		s.logger.Error("failed to delete post",
			slog.Int64("postID", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("deleting post: %w", err)
	}

	s.logger.Info("post deleted", slog.Int64("postID", id), slog.String("userID", callerID))
	return existing, nil
}

func validatePostFields(title, description string, imageURL *string) (string, string, *string, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)

	if title == "" {
		return "", "", nil, apperror.ValidationFailed("title", "title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", "", nil, apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	if description == "" {
		return "", "", nil, apperror.ValidationFailed("description", "description is required")
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return "", "", nil, apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	}

	if imageURL != nil {
		trimmed := strings.TrimSpace(*imageURL)
		if trimmed == "" {
			imageURL = nil
		} else {
			if !isValidURL(trimmed) {
				return "", "", nil, apperror.ValidationFailed("imageUrl", "imageUrl must be a valid http(s) URL")
			}
			imageURL = &trimmed
		}
	}

	return title, description, imageURL, nil
}

// normalizeTags trims, drops empties, de-duplicates, and bounds the tag list.
func normalizeTags(raw []string) ([]string, error) {
	if len(raw) > MaxTagsPerPost {
		return nil, apperror.ValidationFailed("tags",
			fmt.Sprintf("at most %d tags can be attached", MaxTagsPerPost))
	}

	seen := make(map[string]bool, len(raw))
	tags := make([]string, 0, len(raw))
	for _, name := range raw {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, apperror.ValidationFailed("tags", "tag names must not be empty")
		}
		if utf8.RuneCountInString(name) > MaxTagNameLength {
			return nil, apperror.ValidationFailed("tags",
				fmt.Sprintf("tag names must be %d characters or less", MaxTagNameLength))
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		tags = append(tags, name)
	}
	return tags, nil
}

func isValidURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
