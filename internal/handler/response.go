package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ymatsuda/quillpost/internal/apperror"
)

// Every response carries the same envelope: {"message": "Success" | "Error" |
// "Not Found", ...payload}. Success payloads merge extra keys ("post",
// "tags", ...) into the envelope; error payloads carry a single "error"
// string. Clients switch on message + status, never on payload shape.

func writeSuccess(w http.ResponseWriter, status int, payload map[string]any) {
	body := map[string]any{"message": "Success"}
	for k, v := range payload {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// writeError translates a domain error into the envelope and status code.
// Unknown errors become an opaque 500; internal details stay in the logs.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		switch {
		case errors.Is(err, apperror.ErrValidation):
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"message": "Error", "error": appErr.Message,
			})
		case errors.Is(err, apperror.ErrUnauthorized):
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"message": "Error", "error": appErr.Message,
			})
		case errors.Is(err, apperror.ErrForbidden):
			writeJSON(w, http.StatusForbidden, map[string]any{
				"message": "Error", "error": appErr.Message,
			})
		case errors.Is(err, apperror.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]any{
				"message": "Not Found",
			})
		case errors.Is(err, apperror.ErrConflict):
			writeJSON(w, http.StatusConflict, map[string]any{
				"message": "Error", "error": appErr.Message,
			})
		default:
			writeInternalError(w)
		}
		return
	}

	writeInternalError(w)
}

func writeInternalError(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, map[string]any{
		"message": "Error", "error": "an internal error occurred",
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent; logging is all that's left.
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}
