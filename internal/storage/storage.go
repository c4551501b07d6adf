// Package storage uploads post images to an S3-compatible object store and
// serves back public URLs.
//
// The adapter's contract is deliberately soft: Upload returns "" and Delete
// returns false on failure, never an error. Handlers check the result and
// surface a user-facing message; a broken image store must not take post
// CRUD down with it.
package storage

import (
	"context"
	"io"
)

// Image upload limits, enforced before any bytes reach the store.
const (
	MaxImageSize = 5 * 1024 * 1024 // 5MB
)

// Uploader is the image-storage interface handlers depend on.
type Uploader interface {
	// Upload stores the image and returns its public URL, or "" on failure.
	Upload(ctx context.Context, r io.Reader, size int64, contentType string) string
	// Delete removes a previously uploaded image by its public URL.
	Delete(ctx context.Context, url string) bool
}

// extensions maps the accepted image content types to object-key suffixes.
// Anything absent from this map is rejected before upload.
var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// AllowedContentType reports whether the content type may be uploaded.
func AllowedContentType(contentType string) bool {
	_, ok := extensions[contentType]
	return ok
}
