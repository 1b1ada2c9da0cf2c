package db

import (
	"context"
	"errors"
	"testing"
)

func TestUserCreateNormalizesEmail(t *testing.T) {
	repo := NewUserRepository(openTestDB(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, CreateUserParams{
		Email:        "  Alice@Example.COM ",
		Username:     "pookie_king_1234",
		PasswordHash: "hash",
		IsVerified:   true,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.Email != "alice@example.com" {
		t.Fatalf("Email = %q, want alice@example.com", created.Email)
	}
	if created.UID == "" {
		t.Fatal("expected UID to be assigned")
	}

	found, err := repo.FindByEmail(ctx, "ALICE@example.com")
	if err != nil {
		t.Fatalf("FindByEmail() error = %v", err)
	}
	if found.ID != created.ID || found.UID != created.UID {
		t.Fatalf("FindByEmail() = %+v, want id %q", found, created.ID)
	}
	if !found.IsVerified {
		t.Fatal("expected IsVerified to round-trip")
	}
	if found.PasswordHash != "hash" {
		t.Fatalf("PasswordHash = %q, want hash", found.PasswordHash)
	}
}

func TestUserCreateReportsDuplicateColumn(t *testing.T) {
	repo := NewUserRepository(openTestDB(t))
	ctx := context.Background()
	createTestUser(t, repo, "a@x.com", "taken")

	_, err := repo.Create(ctx, CreateUserParams{Email: "a@x.com", Username: "fresh", PasswordHash: "h"})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("Create() error = %v, want ErrDuplicateEmail", err)
	}

	_, err = repo.Create(ctx, CreateUserParams{Email: "b@x.com", Username: "taken", PasswordHash: "h"})
	if !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("Create() error = %v, want ErrDuplicateUsername", err)
	}
	if !errors.Is(err, ErrDuplicate) {
		t.Fatal("expected ErrDuplicateUsername to match ErrDuplicate")
	}
}

func TestUserUpdatePassword(t *testing.T) {
	repo := NewUserRepository(openTestDB(t))
	ctx := context.Background()
	id := createTestUser(t, repo, "a@x.com", "alice")

	if err := repo.UpdatePassword(ctx, id, "new-hash"); err != nil {
		t.Fatalf("UpdatePassword() error = %v", err)
	}

	u, err := repo.FindByID(ctx, id)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if u.PasswordHash != "new-hash" {
		t.Fatalf("PasswordHash = %q, want new-hash", u.PasswordHash)
	}

	if err := repo.UpdatePassword(ctx, "usr_missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdatePassword() error = %v, want ErrNotFound", err)
	}
}

func TestUserLookupsMiss(t *testing.T) {
	repo := NewUserRepository(openTestDB(t))
	ctx := context.Background()

	if _, err := repo.FindByID(ctx, "usr_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindByID() error = %v, want ErrNotFound", err)
	}

	exists, err := repo.ExistsByEmail(ctx, "nobody@x.com")
	if err != nil {
		t.Fatalf("ExistsByEmail() error = %v", err)
	}
	if exists {
		t.Fatal("expected ExistsByEmail() = false")
	}

	available, err := repo.IsUsernameAvailable(ctx, "someone")
	if err != nil {
		t.Fatalf("IsUsernameAvailable() error = %v", err)
	}
	if !available {
		t.Fatal("expected username to be available")
	}
}
