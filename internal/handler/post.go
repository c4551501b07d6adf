package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ymatsuda/quillpost/internal/apperror"
	"github.com/ymatsuda/quillpost/internal/auth"
	"github.com/ymatsuda/quillpost/internal/service"
)

// PostHandler exposes the authenticated post endpoints plus their public
// read-only mirrors.
type PostHandler struct {
	posts  *service.PostService
	logger *slog.Logger
}

func NewPostHandler(posts *service.PostService, logger *slog.Logger) *PostHandler {
	return &PostHandler{posts: posts, logger: logger}
}

// HandleList returns the caller's posts, optionally narrowed by ?tag= or
// ?favorites=true.
func (h *PostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	q := r.URL.Query()

	posts, err := h.posts.List(r.Context(), userID, q.Get("tag"), q.Get("favorites") == "true")
	if err != nil {
		h.logger.Error("failed to list posts", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"posts": posts})
}

func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var input service.CreatePostInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid request body"))
		return
	}

	post, err := h.posts.Create(r.Context(), userID, input)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, map[string]any{"post": post})
}

func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	id, err := parsePostID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	post, err := h.posts.Get(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"post": post})
}

func (h *PostHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	id, err := parsePostID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var input service.UpdatePostInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid request body"))
		return
	}

	post, err := h.posts.Update(r.Context(), userID, id, input)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"post": post})
}

func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	id, err := parsePostID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	post, err := h.posts.Delete(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"post": post})
}

// HandlePublicList serves the unauthenticated post feed, optionally narrowed
// by ?tag=.
func (h *PostHandler) HandlePublicList(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.ListPublic(r.Context(), r.URL.Query().Get("tag"))
	if err != nil {
		h.logger.Error("failed to list public posts", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"posts": posts})
}

func (h *PostHandler) HandlePublicGet(w http.ResponseWriter, r *http.Request) {
	id, err := parsePostID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	post, err := h.posts.GetPublic(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"post": post})
}

// parsePostID reads the {id} route parameter and rejects anything that is not
// a plain positive decimal before storage is touched.
func parsePostID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	if raw == "" {
		return 0, apperror.ValidationFailed("id", "post id is required")
	}
	for _, c := range raw {
		if c < '0' || c > '9' {
			return 0, apperror.ValidationFailed("id", "post id must be a positive integer")
		}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed("id", "post id must be a positive integer")
	}
	return id, nil
}
