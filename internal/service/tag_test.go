package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ymatsuda/quillpost/internal/apperror"
	"github.com/ymatsuda/quillpost/internal/model"
)

func newTagTestService(t *testing.T) (*TagService, *mockStore) {
	t.Helper()
	store := newMockStore()
	return NewTagService(store, testLogger()), store
}

func TestCreateOrGet_CreatesNewTag(t *testing.T) {
	svc, _ := newTagTestService(t)

	tag, created, err := svc.CreateOrGet(context.Background(), "go", "#00ADD8")
	if err != nil {
		t.Fatalf("CreateOrGet() error = %v", err)
	}
	if !created {
		t.Error("created = false for a fresh tag")
	}
	if tag.Name != "go" || tag.Color != "#00ADD8" {
		t.Errorf("tag = %+v, want go/#00ADD8", tag)
	}
}

func TestCreateOrGet_ReturnsExistingTag(t *testing.T) {
	svc, _ := newTagTestService(t)
	ctx := context.Background()

	first, _, err := svc.CreateOrGet(ctx, "go", "#00ADD8")
	if err != nil {
		t.Fatalf("CreateOrGet() error = %v", err)
	}

	// Same name again, different color: the existing row wins untouched.
	second, created, err := svc.CreateOrGet(ctx, "go", "#FF0000")
	if err != nil {
		t.Fatalf("CreateOrGet() repeat error = %v", err)
	}
	if created {
		t.Error("created = true for an existing tag")
	}
	if second.ID != first.ID {
		t.Errorf("ID = %d, want %d", second.ID, first.ID)
	}
	if second.Color != "#00ADD8" {
		t.Errorf("Color = %q, want original %q kept", second.Color, "#00ADD8")
	}
}

func TestCreateOrGet_TrimsName(t *testing.T) {
	svc, _ := newTagTestService(t)
	ctx := context.Background()

	first, _, err := svc.CreateOrGet(ctx, "go", "")
	if err != nil {
		t.Fatalf("CreateOrGet() error = %v", err)
	}

	second, created, err := svc.CreateOrGet(ctx, "  go  ", "")
	if err != nil {
		t.Fatalf("CreateOrGet() trimmed error = %v", err)
	}
	if created || second.ID != first.ID {
		t.Errorf("trimmed name should resolve to the existing tag, got created=%v id=%d", created, second.ID)
	}
}

func TestCreateOrGet_DefaultColor(t *testing.T) {
	svc, _ := newTagTestService(t)

	tag, _, err := svc.CreateOrGet(context.Background(), "plain", "")
	if err != nil {
		t.Fatalf("CreateOrGet() error = %v", err)
	}
	if tag.Color != model.DefaultTagColor {
		t.Errorf("Color = %q, want default %q", tag.Color, model.DefaultTagColor)
	}
}

func TestCreateOrGet_Validation(t *testing.T) {
	svc, _ := newTagTestService(t)

	tests := []struct {
		name    string
		tagName string
		color   string
	}{
		{"empty name", "   ", ""},
		{"name too long", strings.Repeat("x", MaxTagNameLength+1), ""},
		{"bad color", "go", "blue"},
		{"short hex", "go", "#FFF"},
		{"missing hash", "go", "3B82F6"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.CreateOrGet(context.Background(), tt.tagName, tt.color)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("CreateOrGet() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestCreateOrGet_LosingRaceFallsBackToWinner(t *testing.T) {
	store := newMockStore()
	svc := NewTagService(&racingTagRepo{mockStore: store}, testLogger())

	tag, created, err := svc.CreateOrGet(context.Background(), "go", "")
	if err != nil {
		t.Fatalf("CreateOrGet() error = %v", err)
	}
	if created {
		t.Error("created = true, want false when the insert loses the race")
	}
	if tag.Name != "go" {
		t.Errorf("Name = %q, want go", tag.Name)
	}
}

// racingTagRepo simulates a concurrent create: the name lookup misses, then
// the insert hits the unique constraint because someone else won.
type racingTagRepo struct {
	*mockStore
	looked bool
}

func (r *racingTagRepo) GetTagByName(ctx context.Context, name string) (*model.Tag, error) {
	if !r.looked {
		r.looked = true
		// Another writer commits between our lookup and our insert.
		if err := r.mockStore.CreateTag(ctx, &model.Tag{Name: name, Color: model.DefaultTagColor}); err != nil {
			return nil, err
		}
		return nil, apperror.NotFound("tag", name)
	}
	return r.mockStore.GetTagByName(ctx, name)
}
