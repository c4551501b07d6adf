package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ymatsuda/quillpost/internal/apperror"
	"github.com/ymatsuda/quillpost/internal/model"
)

func newPostTestService(t *testing.T) (*PostService, *mockStore) {
	t.Helper()
	store := newMockStore()
	return NewPostService(store, store, testLogger()), store
}

func validCreateInput() CreatePostInput {
	return CreatePostInput{
		Title:       "A Post",
		Description: "Some words worth reading.",
		Tags:        []string{"go"},
	}
}

func TestCreate(t *testing.T) {
	svc, store := newPostTestService(t)
	store.addUser(t, "user_a")

	view, err := svc.Create(context.Background(), "user_a", validCreateInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if view.ID == 0 {
		t.Error("Create() did not assign an ID")
	}
	if view.UserID == nil || *view.UserID != "user_a" {
		t.Errorf("UserID = %v, want user_a", view.UserID)
	}
	if len(view.Tags) != 1 || view.Tags[0].Name != "go" {
		t.Errorf("Tags = %+v, want [go]", view.Tags)
	}
}

func TestCreate_UnsyncedUser(t *testing.T) {
	svc, _ := newPostTestService(t)

	_, err := svc.Create(context.Background(), "user_unknown", validCreateInput())
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Create() for unsynced user error = %v, want ErrConflict", err)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, store := newPostTestService(t)
	store.addUser(t, "user_a")

	tests := []struct {
		name  string
		alter func(*CreatePostInput)
	}{
		{"empty title", func(in *CreatePostInput) { in.Title = "   " }},
		{"title too long", func(in *CreatePostInput) { in.Title = strings.Repeat("x", MaxTitleLength+1) }},
		{"empty description", func(in *CreatePostInput) { in.Description = "" }},
		{"description too long", func(in *CreatePostInput) { in.Description = strings.Repeat("x", MaxDescriptionLength+1) }},
		{"too many tags", func(in *CreatePostInput) {
			in.Tags = make([]string, MaxTagsPerPost+1)
			for i := range in.Tags {
				in.Tags[i] = "t" + strings.Repeat("a", i+1)
			}
		}},
		{"blank tag", func(in *CreatePostInput) { in.Tags = []string{"  "} }},
		{"tag name too long", func(in *CreatePostInput) { in.Tags = []string{strings.Repeat("x", MaxTagNameLength+1)} }},
		{"bad image url", func(in *CreatePostInput) { bad := "not a url"; in.ImageURL = &bad }},
		{"ftp image url", func(in *CreatePostInput) { bad := "ftp://example.com/a.png"; in.ImageURL = &bad }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validCreateInput()
			tt.alter(&in)
			_, err := svc.Create(context.Background(), "user_a", in)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("Create() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestCreate_BoundaryLengthsAccepted(t *testing.T) {
	svc, store := newPostTestService(t)
	store.addUser(t, "user_a")

	in := CreatePostInput{
		Title:       strings.Repeat("t", MaxTitleLength),
		Description: strings.Repeat("d", MaxDescriptionLength),
	}
	if _, err := svc.Create(context.Background(), "user_a", in); err != nil {
		t.Errorf("Create() at max lengths error = %v", err)
	}
}

func TestCreate_LengthBoundsCountRunesNotBytes(t *testing.T) {
	svc, store := newPostTestService(t)
	store.addUser(t, "user_a")

	// Three bytes per character in UTF-8, so this title blows the byte count
	// while staying within the character bound.
	in := validCreateInput()
	in.Title = strings.Repeat("あ", MaxTitleLength)
	in.Tags = []string{strings.Repeat("語", MaxTagNameLength)}
	if _, err := svc.Create(context.Background(), "user_a", in); err != nil {
		t.Errorf("Create() with max-rune multibyte title error = %v", err)
	}

	in = validCreateInput()
	in.Title = strings.Repeat("あ", MaxTitleLength+1)
	if _, err := svc.Create(context.Background(), "user_a", in); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Create() one rune over error = %v, want ErrValidation", err)
	}
}

func TestCreate_DeduplicatesTags(t *testing.T) {
	svc, store := newPostTestService(t)
	store.addUser(t, "user_a")

	in := validCreateInput()
	in.Tags = []string{"go", " go ", "web"}

	view, err := svc.Create(context.Background(), "user_a", in)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(view.Tags) != 2 {
		t.Errorf("got %d tags, want 2 after dedupe", len(view.Tags))
	}
}

func TestCreate_BlankImageURLBecomesNil(t *testing.T) {
	svc, store := newPostTestService(t)
	store.addUser(t, "user_a")

	in := validCreateInput()
	blank := "   "
	in.ImageURL = &blank

	view, err := svc.Create(context.Background(), "user_a", in)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if view.ImageURL != nil {
		t.Errorf("ImageURL = %v, want nil", *view.ImageURL)
	}
}

func TestGet_HidesOtherUsersPosts(t *testing.T) {
	svc, store := newPostTestService(t)
	store.addUser(t, "user_a")
	store.addUser(t, "user_b")

	created, err := svc.Create(context.Background(), "user_a", validCreateInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err = svc.Get(context.Background(), "user_b", created.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Get() by non-owner error = %v, want ErrNotFound", err)
	}

	if _, err := svc.Get(context.Background(), "user_a", created.ID); err != nil {
		t.Errorf("Get() by owner error = %v", err)
	}

	// The public read still serves it.
	if _, err := svc.GetPublic(context.Background(), created.ID); err != nil {
		t.Errorf("GetPublic() error = %v", err)
	}
}

func TestUpdate_ForbiddenForNonOwner(t *testing.T) {
	svc, store := newPostTestService(t)
	store.addUser(t, "user_a")
	store.addUser(t, "user_b")

	created, err := svc.Create(context.Background(), "user_a", validCreateInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err = svc.Update(context.Background(), "user_b", created.ID, UpdatePostInput{
		Title: "hijacked", Description: "nope",
	})
	if !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("Update() by non-owner error = %v, want ErrForbidden", err)
	}
}

func TestUpdate(t *testing.T) {
	svc, store := newPostTestService(t)
	store.addUser(t, "user_a")

	created, err := svc.Create(context.Background(), "user_a", validCreateInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	updated, err := svc.Update(context.Background(), "user_a", created.ID, UpdatePostInput{
		Title: "Revised", Description: "Better words.",
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Title != "Revised" {
		t.Errorf("Title = %q, want %q", updated.Title, "Revised")
	}
	if updated.UserID == nil || *updated.UserID != "user_a" {
		t.Errorf("UserID = %v, want user_a preserved", updated.UserID)
	}
}

func TestDelete_ForbiddenForNonOwner(t *testing.T) {
	svc, store := newPostTestService(t)
	store.addUser(t, "user_a")
	store.addUser(t, "user_b")

	created, err := svc.Create(context.Background(), "user_a", validCreateInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err = svc.Delete(context.Background(), "user_b", created.ID)
	if !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("Delete() by non-owner error = %v, want ErrForbidden", err)
	}
}

func TestDelete_NotFound(t *testing.T) {
	svc, _ := newPostTestService(t)

	_, err := svc.Delete(context.Background(), "user_a", 999)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Delete() of missing post error = %v, want ErrNotFound", err)
	}
}

func TestList_FiltersByOwner(t *testing.T) {
	svc, store := newPostTestService(t)
	store.addUser(t, "user_a")
	store.addUser(t, "user_b")

	if _, err := svc.Create(context.Background(), "user_a", validCreateInput()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := svc.Create(context.Background(), "user_b", validCreateInput()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	mine, err := svc.List(context.Background(), "user_a", "", false)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(mine) != 1 {
		t.Errorf("got %d posts, want 1", len(mine))
	}

	all, err := svc.ListPublic(context.Background(), "")
	if err != nil {
		t.Fatalf("ListPublic() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("got %d public posts, want 2", len(all))
	}
}

func TestCanMutate(t *testing.T) {
	owner := "user_a"
	tests := []struct {
		name     string
		post     model.Post
		callerID string
		want     bool
	}{
		{"owner can mutate", model.Post{UserID: &owner}, "user_a", true},
		{"non-owner cannot", model.Post{UserID: &owner}, "user_b", false},
		{"nil owner is open", model.Post{UserID: nil}, "user_b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanMutate(&tt.post, tt.callerID); got != tt.want {
				t.Errorf("CanMutate() = %v, want %v", got, tt.want)
			}
		})
	}
}
