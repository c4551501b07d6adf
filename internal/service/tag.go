package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ymatsuda/quillpost/internal/apperror"
	"github.com/ymatsuda/quillpost/internal/model"
	"github.com/ymatsuda/quillpost/internal/repository"
)

var hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// TagService handles tag business logic.
type TagService struct {
	tags   repository.TagRepository
	logger *slog.Logger
}

func NewTagService(tags repository.TagRepository, logger *slog.Logger) *TagService {
	return &TagService{tags: tags, logger: logger}
}

// List returns all tags with post counts, ordered alphabetically.
func (s *TagService) List(ctx context.Context) ([]model.TagWithCount, error) {
	tags, err := s.tags.ListTags(ctx)
	if err != nil {
		s.logger.Error("failed to list tags", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	return tags, nil
}

// CreateOrGet creates a tag, or returns the existing one when the trimmed
// name is already taken. The second return value reports whether a new row
// was created. Two concurrent creates of the same name both succeed: the
// loser of the unique-constraint race falls back to reading the winner's row.
func (s *TagService) CreateOrGet(ctx context.Context, name, color string) (*model.Tag, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, apperror.ValidationFailed("name", "tag name is required")
	}
	if utf8.RuneCountInString(name) > MaxTagNameLength {
		return nil, false, apperror.ValidationFailed("name",
			fmt.Sprintf("tag name must be %d characters or less", MaxTagNameLength))
	}

	if color == "" {
		color = model.DefaultTagColor
	} else if !hexColorPattern.MatchString(color) {
		return nil, false, apperror.ValidationFailed("color", "color must be a hex code like #FF0000")
	}

	existing, err := s.tags.GetTagByName(ctx, name)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, false, fmt.Errorf("looking up tag %q: %w", name, err)
	}

	tag := &model.Tag{Name: name, Color: color}
	if err := s.tags.CreateTag(ctx, tag); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			existing, err := s.tags.GetTagByName(ctx, name)
			if err != nil {
				return nil, false, fmt.Errorf("re-reading tag %q after conflict: %w", name, err)
			}
			return existing, false, nil
		}
		s.logger.Error("failed to create tag",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return nil, false, fmt.Errorf("creating tag: %w", err)
	}

	s.logger.Info("tag created", slog.Int64("tagID", tag.ID), slog.String("name", tag.Name))
	return tag, true, nil
}
