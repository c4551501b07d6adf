// Package model defines the data structures used throughout the application.
package model

import "time"

// User is the local mirror of an account held by the external identity
// provider. The ID is the provider's opaque identifier (e.g. "user_2abc..."),
// not something we generate. Posts and favorites reference it directly.
//
// FirstName, LastName and ImageURL are pointers because the provider may not
// have them at all; an absent name is different from an empty one and the
// column is NULL in that case.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName *string   `json:"firstName"`
	LastName  *string   `json:"lastName"`
	ImageURL  *string   `json:"imageUrl"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserSummary is the subset of User embedded in post and favorite responses.
// It deliberately omits the email address.
type UserSummary struct {
	ID        string  `json:"id"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	ImageURL  *string `json:"imageUrl"`
}

// Summary converts a full User into the embedded form.
func (u *User) Summary() *UserSummary {
	return &UserSummary{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		ImageURL:  u.ImageURL,
	}
}
