package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ymatsuda/quillpost/internal/apperror"
	"github.com/ymatsuda/quillpost/internal/auth"
	"github.com/ymatsuda/quillpost/internal/service"
)

type FavoriteHandler struct {
	favorites *service.FavoriteService
	logger    *slog.Logger
}

func NewFavoriteHandler(favorites *service.FavoriteService, logger *slog.Logger) *FavoriteHandler {
	return &FavoriteHandler{favorites: favorites, logger: logger}
}

type favoriteRequest struct {
	PostID int64 `json:"postId"`
}

// HandleList returns the caller's favorites with their post snapshots.
func (h *FavoriteHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	favorites, err := h.favorites.List(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list favorites",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"favorites": favorites})
}

func (h *FavoriteHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req favoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid request body"))
		return
	}

	favorite, err := h.favorites.Add(r.Context(), userID, req.PostID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, map[string]any{"favorite": favorite})
}

func (h *FavoriteHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req favoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid request body"))
		return
	}

	if err := h.favorites.Remove(r.Context(), userID, req.PostID); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, nil)
}
