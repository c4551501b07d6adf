package model

// DefaultTagColor is applied when a tag is created without an explicit color.
const DefaultTagColor = "#3B82F6"

// Tag is a named label attachable to many posts. Names are globally unique.
type Tag struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// TagWithCount is a Tag plus the number of posts carrying it.
type TagWithCount struct {
	Tag
	PostCount int `json:"postCount"`
}
