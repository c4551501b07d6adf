package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ymatsuda/quillpost/internal/apperror"
	"github.com/ymatsuda/quillpost/internal/service"
)

type TagHandler struct {
	tags   *service.TagService
	logger *slog.Logger
}

func NewTagHandler(tags *service.TagService, logger *slog.Logger) *TagHandler {
	return &TagHandler{tags: tags, logger: logger}
}

// HandleList returns all tags with their post counts. The same handler backs
// the authenticated and public routes; tag data is not user-scoped.
func (h *TagHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	tags, err := h.tags.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list tags", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"tags": tags})
}

type createTagRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// HandleCreate creates a tag, or returns the existing one when the name is
// already taken. 201 signals a fresh row, 200 an existing one.
func (h *TagHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid request body"))
		return
	}

	tag, created, err := h.tags.CreateOrGet(r.Context(), req.Name, req.Color)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeSuccess(w, status, map[string]any{"tag": tag})
}
