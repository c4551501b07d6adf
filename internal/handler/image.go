package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ymatsuda/quillpost/internal/apperror"
	"github.com/ymatsuda/quillpost/internal/storage"
)

type ImageHandler struct {
	store  storage.Uploader
	logger *slog.Logger
}

func NewImageHandler(store storage.Uploader, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{store: store, logger: logger}
}

// HandleUpload accepts a multipart "file" field and stores it, returning the
// public URL. Content type and size are checked before the object store is
// touched so oversized or unsupported uploads fail fast.
func (h *ImageHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxImageSize+(1<<20))
	if err := r.ParseMultipartForm(storage.MaxImageSize); err != nil {
		writeError(w, apperror.ValidationFailed("file", "invalid multipart form"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, apperror.ValidationFailed("file", "file field is required"))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !storage.AllowedContentType(contentType) {
		writeError(w, apperror.ValidationFailed("file", "unsupported image type"))
		return
	}
	if header.Size > storage.MaxImageSize {
		writeError(w, apperror.ValidationFailed("file", "image exceeds the 5MB limit"))
		return
	}

	url := h.store.Upload(r.Context(), file, header.Size, contentType)
	if url == "" {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"message": "Error", "error": "image upload failed",
		})
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"url": url})
}

type deleteImageRequest struct {
	URL string `json:"url"`
}

// HandleDelete removes a previously uploaded image by URL. Deletion is best
// effort; the response reports whether the object store accepted the removal.
func (h *ImageHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid request body"))
		return
	}
	if req.URL == "" {
		writeError(w, apperror.ValidationFailed("url", "url is required"))
		return
	}

	deleted := h.store.Delete(r.Context(), req.URL)
	if !deleted {
		h.logger.Warn("image delete did not remove an object", slog.String("url", req.URL))
	}

	writeSuccess(w, http.StatusOK, map[string]any{"deleted": deleted})
}
