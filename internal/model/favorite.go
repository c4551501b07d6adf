package model

import "time"

// Favorite is a user's bookmark of a post. The (UserID, PostID) pair is
// unique; favoriting the same post twice is a conflict, not a second row.
type Favorite struct {
	UserID    string    `json:"userId"`
	PostID    int64     `json:"postId"`
	CreatedAt time.Time `json:"createdAt"`
}

// FavoriteView is a Favorite joined with the favorited post for list responses.
type FavoriteView struct {
	Favorite
	Post *PostView `json:"post"`
}
