package pending

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})

	return NewStore(client), mr
}

func TestCandidateRoundTrip(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	c := Candidate{Email: "A@x.com", Username: "pookie_king_1234", PasswordHash: "hash", OTP: "123456"}
	if err := store.PutCandidate(ctx, c, 10*time.Minute); err != nil {
		t.Fatalf("PutCandidate() error = %v", err)
	}

	if !mr.Exists("otp:a@x.com") {
		t.Fatal("expected key otp:a@x.com to exist")
	}
	if ttl := mr.TTL("otp:a@x.com"); ttl != 10*time.Minute {
		t.Fatalf("TTL = %v, want 10m", ttl)
	}

	got, err := store.GetCandidate(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("GetCandidate() error = %v", err)
	}
	if got.OTP != "123456" || got.Username != "pookie_king_1234" {
		t.Fatalf("GetCandidate() = %+v", got)
	}
}

func TestCandidateExpires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.PutCandidate(ctx, Candidate{Email: "a@x.com", OTP: "1"}, time.Minute); err != nil {
		t.Fatalf("PutCandidate() error = %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if _, err := store.GetCandidate(ctx, "a@x.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetCandidate() error = %v, want ErrNotFound", err)
	}
}

func TestCorruptEntryIsDeleted(t *testing.T) {
	store, mr := newTestStore(t)

	if err := mr.Set("otp:a@x.com", "{not json"); err != nil {
		t.Fatalf("mr.Set() error = %v", err)
	}

	if _, err := store.GetCandidate(context.Background(), "a@x.com"); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("GetCandidate() error = %v, want ErrCorrupt", err)
	}
	if mr.Exists("otp:a@x.com") {
		t.Fatal("expected corrupt entry to be deleted")
	}
}

func TestReplaceCandidateOTPPreservesTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	c := Candidate{Email: "a@x.com", OTP: "111111"}
	if err := store.PutCandidate(ctx, c, 10*time.Minute); err != nil {
		t.Fatalf("PutCandidate() error = %v", err)
	}
	mr.FastForward(4 * time.Minute)

	if err := store.ReplaceCandidateOTP(ctx, c, "222222", 10*time.Minute); err != nil {
		t.Fatalf("ReplaceCandidateOTP() error = %v", err)
	}

	if ttl := mr.TTL("otp:a@x.com"); ttl != 6*time.Minute {
		t.Fatalf("TTL = %v, want 6m", ttl)
	}
	got, err := store.GetCandidate(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("GetCandidate() error = %v", err)
	}
	if got.OTP != "222222" {
		t.Fatalf("OTP = %q, want 222222", got.OTP)
	}
}

func TestReplaceCandidateOTPResetsMissingTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	// Written without expiry: TTL lookup reports -1.
	if err := store.PutCandidate(ctx, Candidate{Email: "a@x.com", OTP: "1"}, 0); err != nil {
		t.Fatalf("PutCandidate() error = %v", err)
	}

	if err := store.ReplaceCandidateOTP(ctx, Candidate{Email: "a@x.com"}, "2", 10*time.Minute); err != nil {
		t.Fatalf("ReplaceCandidateOTP() error = %v", err)
	}
	if ttl := mr.TTL("otp:a@x.com"); ttl != 10*time.Minute {
		t.Fatalf("TTL = %v, want 10m", ttl)
	}
}

func TestResetRequestRoundTrip(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	r := ResetRequest{Email: "a@x.com", OTP: "654321", CreatedAt: time.Now().UTC()}
	if err := store.PutReset(ctx, r, 10*time.Minute); err != nil {
		t.Fatalf("PutReset() error = %v", err)
	}
	if !mr.Exists("passreset:a@x.com") {
		t.Fatal("expected key passreset:a@x.com to exist")
	}

	got, err := store.GetReset(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("GetReset() error = %v", err)
	}
	if got.OTP != "654321" {
		t.Fatalf("OTP = %q, want 654321", got.OTP)
	}

	if err := store.DeleteReset(ctx, "a@x.com"); err != nil {
		t.Fatalf("DeleteReset() error = %v", err)
	}
	if _, err := store.GetReset(ctx, "a@x.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetReset() error = %v, want ErrNotFound", err)
	}
}
