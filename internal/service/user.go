package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/ymatsuda/quillpost/internal/apperror"
	"github.com/ymatsuda/quillpost/internal/identity"
	"github.com/ymatsuda/quillpost/internal/model"
	"github.com/ymatsuda/quillpost/internal/repository"
)

const MaxNameLength = 50

// ProfileFetcher is the slice of the identity provider client this service
// needs; nil disables provider lookups.
type ProfileFetcher interface {
	FetchUser(ctx context.Context, id string) (*identity.EventUser, error)
}

// UserService mirrors identity-provider accounts into the local users table,
// via the authenticated sync endpoint and via webhook events.
type UserService struct {
	users    repository.UserRepository
	provider ProfileFetcher
	logger   *slog.Logger
	handlers map[identity.EventType]func(context.Context, identity.EventUser) error
}

func NewUserService(users repository.UserRepository, provider ProfileFetcher, logger *slog.Logger) *UserService {
	s := &UserService{
		users:    users,
		provider: provider,
		logger:   logger,
	}
	// Closed event set: each variant maps to exactly one handler.
	s.handlers = map[identity.EventType]func(context.Context, identity.EventUser) error{
		identity.EventUserCreated: s.applyCreated,
		identity.EventUserUpdated: s.applyUpdated,
		identity.EventUserDeleted: s.applyDeleted,
	}
	return s
}

// SyncUserInput is the accepted shape for the sync endpoint.
type SyncUserInput struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	ImageURL  *string `json:"imageUrl"`
}

// Sync upserts the caller's own user record. A caller can never sync an
// identity other than the one on its token.
func (s *UserService) Sync(ctx context.Context, callerID string, in SyncUserInput) (*model.User, error) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, apperror.ValidationFailed("id", "user id is required")
	}
	if in.ID != callerID {
		return nil, apperror.Forbidden("cannot sync another user's account")
	}

	email := strings.TrimSpace(in.Email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperror.ValidationFailed("email", "email must be a valid address")
	}
	if err := validateName("firstName", in.FirstName); err != nil {
		return nil, err
	}
	if err := validateName("lastName", in.LastName); err != nil {
		return nil, err
	}
	if in.ImageURL != nil && !isValidURL(strings.TrimSpace(*in.ImageURL)) {
		return nil, apperror.ValidationFailed("imageUrl", "imageUrl must be a valid http(s) URL")
	}

	user := &model.User{
		ID:        in.ID,
		Email:     email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		ImageURL:  in.ImageURL,
	}
	if err := s.users.UpsertUser(ctx, user); err != nil {
		s.logger.Error("failed to sync user",
			slog.String("userID", in.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("syncing user: %w", err)
	}

	s.logger.Info("user synced", slog.String("userID", user.ID))
	return user, nil
}

// Get returns the local record for the given user ID.
func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	return s.users.GetUser(ctx, id)
}

// GetOrFetch returns the local record, backfilling it from the identity
// provider when a valid session arrives before any sync or webhook did.
func (s *UserService) GetOrFetch(ctx context.Context, id string) (*model.User, error) {
	user, err := s.users.GetUser(ctx, id)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) || s.provider == nil {
		return nil, err
	}

	profile, err := s.provider.FetchUser(ctx, id)
	if err != nil {
		s.logger.Error("provider profile fetch failed",
			slog.String("userID", id),
			slog.String("error", err.Error()),
		)
		return nil, apperror.NotFound("user", id)
	}

	user = eventUserToModel(*profile)
	if err := s.users.UpsertUser(ctx, user); err != nil {
		return nil, fmt.Errorf("storing fetched user %s: %w", id, err)
	}

	s.logger.Info("user backfilled from provider", slog.String("userID", id))
	return user, nil
}

// ApplyEvent dispatches a verified webhook event to its handler. Unknown
// event types are logged and acknowledged; the provider should not see an
// error for events this service does not mirror.
func (s *UserService) ApplyEvent(ctx context.Context, evt *identity.Event) error {
	handler, ok := s.handlers[evt.Type]
	if !ok {
		s.logger.Info("ignoring webhook event", slog.String("type", string(evt.Type)))
		return nil
	}
	return handler(ctx, evt.Data)
}

func (s *UserService) applyCreated(ctx context.Context, data identity.EventUser) error {
	if data.PrimaryEmail() == "" {
		s.logger.Warn("webhook user has no email address", slog.String("userID", data.ID))
		return nil
	}

	err := s.users.CreateUser(ctx, eventUserToModel(data))
	if err != nil {
		// The sync endpoint may have mirrored this user already.
		if errors.Is(err, apperror.ErrConflict) {
			s.logger.Info("webhook user already exists", slog.String("userID", data.ID))
			return nil
		}
		return fmt.Errorf("applying user.created for %s: %w", data.ID, err)
	}

	s.logger.Info("user created from webhook", slog.String("userID", data.ID))
	return nil
}

func (s *UserService) applyUpdated(ctx context.Context, data identity.EventUser) error {
	if data.PrimaryEmail() == "" {
		s.logger.Warn("webhook user has no email address", slog.String("userID", data.ID))
		return nil
	}

	err := s.users.UpdateUser(ctx, eventUserToModel(data))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Info("webhook update for unknown user", slog.String("userID", data.ID))
			return nil
		}
		return fmt.Errorf("applying user.updated for %s: %w", data.ID, err)
	}

	s.logger.Info("user updated from webhook", slog.String("userID", data.ID))
	return nil
}

func (s *UserService) applyDeleted(ctx context.Context, data identity.EventUser) error {
	err := s.users.DeleteUser(ctx, data.ID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Info("webhook delete for unknown user", slog.String("userID", data.ID))
			return nil
		}
		return fmt.Errorf("applying user.deleted for %s: %w", data.ID, err)
	}

	s.logger.Info("user deleted from webhook", slog.String("userID", data.ID))
	return nil
}

func eventUserToModel(data identity.EventUser) *model.User {
	return &model.User{
		ID:        data.ID,
		Email:     data.PrimaryEmail(),
		FirstName: data.FirstName,
		LastName:  data.LastName,
		ImageURL:  data.ImageURL,
	}
}

func validateName(field string, value *string) error {
	if value == nil {
		return nil
	}
	if utf8.RuneCountInString(*value) > MaxNameLength {
		return apperror.ValidationFailed(field,
			fmt.Sprintf("%s must be %d characters or less", field, MaxNameLength))
	}
	return nil
}
