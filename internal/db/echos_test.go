package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"echobox/internal/models"
)

func createTestEcho(t *testing.T, repo *EchoRepository, ownerID string, public bool, status models.EchoStatus, goLiveAt time.Time) *models.Echo {
	t.Helper()

	e, err := repo.Create(context.Background(), CreateEchoParams{
		OwnerID:      ownerID,
		AudioURL:     "/uploads/audio/x.mp3",
		IsPublic:     public,
		Status:       status,
		GoLiveAt:     goLiveAt,
		UploadStatus: models.UploadStatusDone,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return e
}

func setCreatedAt(t *testing.T, database *DB, id string, at time.Time) {
	t.Helper()

	if _, err := database.Exec(`UPDATE echos SET created_at = ? WHERE id = ?`, at.UTC(), id); err != nil {
		t.Fatalf("setting created_at: %v", err)
	}
}

func TestListFeedOrdersByGoLiveThenCreated(t *testing.T) {
	database := openTestDB(t)
	users := NewUserRepository(database)
	echos := NewEchoRepository(database)
	ctx := context.Background()
	owner := createTestUser(t, users, "a@x.com", "alice")

	now := time.Now().UTC().Truncate(time.Second)
	shared := now.Add(-time.Hour)

	a := createTestEcho(t, echos, owner, true, models.EchoStatusLive, shared)
	b := createTestEcho(t, echos, owner, true, models.EchoStatusLive, shared)
	newer := createTestEcho(t, echos, owner, true, models.EchoStatusLive, now.Add(-time.Minute))
	setCreatedAt(t, database, a.ID, shared.Add(time.Second))
	setCreatedAt(t, database, b.ID, shared.Add(2*time.Second))

	// Never visible.
	createTestEcho(t, echos, owner, false, models.EchoStatusLive, shared)
	createTestEcho(t, echos, owner, true, models.EchoStatusLive, now.Add(time.Hour))
	createTestEcho(t, echos, owner, true, models.EchoStatusPending, now.Add(-2*time.Hour))

	got, err := echos.ListFeed(ctx, now, 20, 0)
	if err != nil {
		t.Fatalf("ListFeed() error = %v", err)
	}

	want := []string{newer.ID, b.ID, a.ID}
	if len(got) != len(want) {
		t.Fatalf("ListFeed() returned %d echos, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("ListFeed()[%d] = %q, want %q", i, got[i].ID, id)
		}
		if !got[i].IsFeedVisible(now) {
			t.Fatalf("ListFeed()[%d] is not feed visible", i)
		}
		if got[i].Creator == nil || got[i].Creator.Username != "alice" {
			t.Fatalf("ListFeed()[%d].Creator = %+v, want alice", i, got[i].Creator)
		}
	}
}

func TestListFeedPaginates(t *testing.T) {
	database := openTestDB(t)
	users := NewUserRepository(database)
	echos := NewEchoRepository(database)
	owner := createTestUser(t, users, "a@x.com", "alice")

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		createTestEcho(t, echos, owner, true, models.EchoStatusLive, base.Add(time.Duration(i)*time.Minute))
	}

	page, err := echos.ListFeed(context.Background(), time.Now(), 2, 4)
	if err != nil {
		t.Fatalf("ListFeed() error = %v", err)
	}
	if len(page) != 1 {
		t.Fatalf("ListFeed() len = %d, want 1", len(page))
	}
}

func TestOwnerListingsAndCounts(t *testing.T) {
	database := openTestDB(t)
	users := NewUserRepository(database)
	echos := NewEchoRepository(database)
	ctx := context.Background()
	owner := createTestUser(t, users, "a@x.com", "alice")
	other := createTestUser(t, users, "b@x.com", "bob")

	now := time.Now().UTC()
	createTestEcho(t, echos, owner, true, models.EchoStatusLive, now)
	createTestEcho(t, echos, owner, true, models.EchoStatusPending, now.Add(24*time.Hour))
	createTestEcho(t, echos, owner, false, models.EchoStatusPending, now.Add(24*time.Hour))
	createTestEcho(t, echos, other, true, models.EchoStatusPending, now.Add(24*time.Hour))

	pending, err := echos.ListPendingByOwner(ctx, owner, 50, 0)
	if err != nil {
		t.Fatalf("ListPendingByOwner() error = %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("ListPendingByOwner() len = %d, want 2", len(pending))
	}
	pendingTotal, err := echos.CountPendingByOwner(ctx, owner)
	if err != nil {
		t.Fatalf("CountPendingByOwner() error = %v", err)
	}
	if pendingTotal != 2 {
		t.Fatalf("CountPendingByOwner() = %d, want 2", pendingTotal)
	}

	all, err := echos.ListByOwner(ctx, owner, 50, 0)
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListByOwner() len = %d, want 3", len(all))
	}
	total, err := echos.CountByOwner(ctx, owner)
	if err != nil {
		t.Fatalf("CountByOwner() error = %v", err)
	}
	if total != 3 {
		t.Fatalf("CountByOwner() = %d, want 3", total)
	}
}

func TestMarkLiveIfPendingTransitionsOnce(t *testing.T) {
	database := openTestDB(t)
	users := NewUserRepository(database)
	echos := NewEchoRepository(database)
	ctx := context.Background()
	owner := createTestUser(t, users, "a@x.com", "alice")

	e := createTestEcho(t, echos, owner, true, models.EchoStatusPending, time.Now().Add(-time.Minute))

	ok, err := echos.MarkLiveIfPending(ctx, e.ID, time.Now())
	if err != nil {
		t.Fatalf("MarkLiveIfPending() error = %v", err)
	}
	if !ok {
		t.Fatal("expected first transition to succeed")
	}

	ok, err = echos.MarkLiveIfPending(ctx, e.ID, time.Now())
	if err != nil {
		t.Fatalf("MarkLiveIfPending() error = %v", err)
	}
	if ok {
		t.Fatal("expected second transition to be a no-op")
	}

	got, err := echos.FindByID(ctx, e.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.Status != models.EchoStatusLive {
		t.Fatalf("Status = %q, want live", got.Status)
	}
}

func TestListDuePending(t *testing.T) {
	database := openTestDB(t)
	users := NewUserRepository(database)
	echos := NewEchoRepository(database)
	owner := createTestUser(t, users, "a@x.com", "alice")

	now := time.Now().UTC()
	due := createTestEcho(t, echos, owner, true, models.EchoStatusPending, now.Add(-time.Minute))
	createTestEcho(t, echos, owner, true, models.EchoStatusPending, now.Add(time.Hour))
	createTestEcho(t, echos, owner, true, models.EchoStatusLive, now.Add(-time.Hour))

	got, err := echos.ListDuePending(context.Background(), now, 10)
	if err != nil {
		t.Fatalf("ListDuePending() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != due.ID {
		t.Fatalf("ListDuePending() = %v, want [%s]", got, due.ID)
	}
}

func TestUpdateCaptionAndDelete(t *testing.T) {
	database := openTestDB(t)
	users := NewUserRepository(database)
	echos := NewEchoRepository(database)
	ctx := context.Background()
	owner := createTestUser(t, users, "a@x.com", "alice")
	e := createTestEcho(t, echos, owner, true, models.EchoStatusLive, time.Now())

	caption := "hello"
	if err := echos.UpdateCaption(ctx, e.ID, &caption); err != nil {
		t.Fatalf("UpdateCaption() error = %v", err)
	}
	got, err := echos.FindByID(ctx, e.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.GetCaption() != "hello" {
		t.Fatalf("Caption = %q, want hello", got.GetCaption())
	}

	if err := echos.Delete(ctx, e.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := echos.FindByID(ctx, e.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindByID() error = %v, want ErrNotFound", err)
	}
	if err := echos.Delete(ctx, e.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete() error = %v, want ErrNotFound", err)
	}
}
