package model

import "time"

// Post is a blog article.
//
// UserID is a pointer for one reason only: databases created before ownership
// existed contain rows with a NULL user_id. Every post created through the API
// has a non-nil owner; the nullable field keeps those legacy rows readable.
type Post struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	ImageURL    *string   `json:"imageUrl"`
	UserID      *string   `json:"userId"`
}

// PostView is a Post annotated for API responses: the owner's public profile,
// attached tags, total favorite count, and whether the requesting user has
// favorited it. Public (unauthenticated) reads always report IsFavorited=false.
type PostView struct {
	Post
	User          *UserSummary `json:"user"`
	Tags          []Tag        `json:"tags"`
	FavoriteCount int          `json:"favoriteCount"`
	IsFavorited   bool         `json:"isFavorited"`
}
