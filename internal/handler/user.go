package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ymatsuda/quillpost/internal/apperror"
	"github.com/ymatsuda/quillpost/internal/auth"
	"github.com/ymatsuda/quillpost/internal/identity"
	"github.com/ymatsuda/quillpost/internal/service"
)

// maxWebhookBody caps identity webhook payloads. Provider events are small;
// anything larger is not a legitimate delivery.
const maxWebhookBody = 1 << 20

type UserHandler struct {
	users         *service.UserService
	webhookSecret string
	logger        *slog.Logger
}

func NewUserHandler(users *service.UserService, webhookSecret string, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, webhookSecret: webhookSecret, logger: logger}
}

// HandleSync upserts the caller's profile from the identity provider's
// client-side session. The body must describe the caller; syncing another
// user's account is rejected.
func (h *UserHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	callerID, _ := auth.UserIDFromContext(r.Context())

	var input service.SyncUserInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid request body"))
		return
	}

	user, err := h.users.Sync(r.Context(), callerID, input)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"user": user})
}

// HandleMe returns the caller's profile, fetching it from the identity
// provider when the local copy is missing.
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	callerID, _ := auth.UserIDFromContext(r.Context())

	user, err := h.users.GetOrFetch(r.Context(), callerID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"user": user})
}

// HandleIdentityWebhook verifies a signed identity provider delivery and
// applies the user lifecycle event it carries.
func (h *UserHandler) HandleIdentityWebhook(w http.ResponseWriter, r *http.Request) {
	if h.webhookSecret == "" {
		h.logger.Error("identity webhook received but no webhook secret is configured")
		writeInternalError(w)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, apperror.ValidationFailed("body", "unreadable request body"))
		return
	}

	headers := identity.WebhookHeaders{
		ID:        r.Header.Get("svix-id"),
		Timestamp: r.Header.Get("svix-timestamp"),
		Signature: r.Header.Get("svix-signature"),
	}
	if err := identity.VerifyWebhook(h.webhookSecret, headers, payload, time.Now()); err != nil {
		h.logger.Warn("rejected identity webhook", slog.String("error", err.Error()))
		writeError(w, apperror.ValidationFailed("signature", "invalid webhook signature"))
		return
	}

	event, err := identity.ParseEvent(payload)
	if err != nil {
		writeError(w, apperror.ValidationFailed("body", "malformed webhook payload"))
		return
	}

	if err := h.users.ApplyEvent(r.Context(), event); err != nil {
		h.logger.Error("failed to apply identity event",
			slog.String("type", string(event.Type)),
			slog.String("error", err.Error()),
		)
		writeInternalError(w)
		return
	}

	writeSuccess(w, http.StatusOK, nil)
}
