package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/ymatsuda/quillpost/internal/apperror"
	"github.com/ymatsuda/quillpost/internal/model"
)

func strPtr(s string) *string { return &s }

func TestCreateUserAndGet(t *testing.T) {
	db := newTestDB(t)

	u := &model.User{
		ID:        "user_abc123",
		Email:     "yuki@example.com",
		FirstName: strPtr("Yuki"),
	}
	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if u.CreatedAt.IsZero() || u.UpdatedAt.IsZero() {
		t.Error("CreateUser() did not set timestamps")
	}

	found, err := db.GetUser(context.Background(), "user_abc123")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if found.Email != "yuki@example.com" {
		t.Errorf("Email = %q, want %q", found.Email, "yuki@example.com")
	}
	if found.FirstName == nil || *found.FirstName != "Yuki" {
		t.Errorf("FirstName = %v, want Yuki", found.FirstName)
	}
	if found.LastName != nil {
		t.Errorf("LastName = %v, want nil", found.LastName)
	}
}

func TestCreateUser_Conflict(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "user_abc123")

	err := db.CreateUser(context.Background(), &model.User{
		ID: "user_abc123", Email: "dup@example.com",
	})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("CreateUser() duplicate error = %v, want ErrConflict", err)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUser(context.Background(), "user_missing")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUser() error = %v, want ErrNotFound", err)
	}
}

func TestUpsertUser_InsertsThenUpdates(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u := &model.User{ID: "user_abc123", Email: "v1@example.com"}
	if err := db.UpsertUser(ctx, u); err != nil {
		t.Fatalf("UpsertUser() insert error = %v", err)
	}
	created := u.CreatedAt

	u2 := &model.User{ID: "user_abc123", Email: "v2@example.com", LastName: strPtr("Matsuda")}
	if err := db.UpsertUser(ctx, u2); err != nil {
		t.Fatalf("UpsertUser() update error = %v", err)
	}

	found, err := db.GetUser(ctx, "user_abc123")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if found.Email != "v2@example.com" {
		t.Errorf("Email = %q, want %q", found.Email, "v2@example.com")
	}
	if found.LastName == nil || *found.LastName != "Matsuda" {
		t.Errorf("LastName = %v, want Matsuda", found.LastName)
	}
	if !found.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt changed on upsert: %v, want %v", found.CreatedAt, created)
	}
}

func TestUpdateUser_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.UpdateUser(context.Background(), &model.User{
		ID: "user_missing", Email: "ghost@example.com",
	})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateUser() error = %v, want ErrNotFound", err)
	}
}

func TestDeleteUser(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "user_abc123")

	ctx := context.Background()
	if err := db.DeleteUser(ctx, "user_abc123"); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}

	_, err := db.GetUser(ctx, "user_abc123")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUser() after delete error = %v, want ErrNotFound", err)
	}

	err = db.DeleteUser(ctx, "user_abc123")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("DeleteUser() repeat error = %v, want ErrNotFound", err)
	}
}
