// Package repository defines the storage interfaces the service layer depends
// on. Two backends implement them: sqlite (development, tests) and postgres
// (production). Services never import either backend directly.
package repository

import (
	"context"

	"github.com/ymatsuda/quillpost/internal/model"
)

// PostFilter narrows a post query. The zero value matches everything.
// Exactly one of Tag / FavoritedBy may additionally narrow an Owner-scoped
// list; building the filter up front replaces the ad-hoc condition maps the
// handlers would otherwise assemble.
type PostFilter struct {
	Owner       *string // only posts owned by this user
	Tag         string  // only posts carrying a tag with this name
	FavoritedBy string  // only posts favorited by this user
	Viewer      string  // user whose favorite state annotates IsFavorited ("" = anonymous)
}

type PostRepository interface {
	// CreatePost inserts the post and links every named tag in a single
	// transaction, creating tags that do not exist yet. On failure nothing
	// is committed. The post's ID and Date are set on return.
	CreatePost(ctx context.Context, post *model.Post, tagNames []string) error
	ListPosts(ctx context.Context, filter PostFilter) ([]model.PostView, error)
	GetPost(ctx context.Context, id int64, filter PostFilter) (*model.PostView, error)
	UpdatePost(ctx context.Context, post *model.Post) error
	DeletePost(ctx context.Context, id int64) error
}

type TagRepository interface {
	ListTags(ctx context.Context) ([]model.TagWithCount, error)
	GetTagByName(ctx context.Context, name string) (*model.Tag, error)
	// CreateTag returns apperror.ErrConflict when the name is already taken.
	CreateTag(ctx context.Context, tag *model.Tag) error
}

type FavoriteRepository interface {
	ListFavorites(ctx context.Context, userID string) ([]model.FavoriteView, error)
	// AddFavorite returns apperror.ErrConflict when the (user, post) pair
	// already exists.
	AddFavorite(ctx context.Context, userID string, postID int64) (*model.Favorite, error)
	// RemoveFavorite returns apperror.ErrNotFound when no such pair exists.
	RemoveFavorite(ctx context.Context, userID string, postID int64) error
	FavoriteExists(ctx context.Context, userID string, postID int64) (bool, error)
}

type UserRepository interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	UpsertUser(ctx context.Context, user *model.User) error
	// CreateUser returns apperror.ErrConflict when the ID is already present.
	CreateUser(ctx context.Context, user *model.User) error
	// UpdateUser and DeleteUser return apperror.ErrNotFound for unknown IDs.
	UpdateUser(ctx context.Context, user *model.User) error
	DeleteUser(ctx context.Context, id string) error
}

// Store bundles all repositories behind one handle with a shared lifecycle.
type Store interface {
	PostRepository
	TagRepository
	FavoriteRepository
	UserRepository
	Close() error
}
