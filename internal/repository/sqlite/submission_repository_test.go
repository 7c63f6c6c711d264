package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mega-get-server/internal/domain"
	"mega-get-server/internal/repository"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestSubmissionRepo(t *testing.T) *SubmissionRepository {
	t.Helper()
	repo := NewSubmissionRepository(newTestDB(t)).(*SubmissionRepository)
	if err := repo.Init(context.Background()); err != nil {
		t.Fatalf("init submissions: %v", err)
	}
	return repo
}

func TestSubmissionCreateAndGet(t *testing.T) {
	repo := newTestSubmissionRepo(t)
	ctx := context.Background()

	sub := &domain.Submission{
		ID:          "sub-1",
		URL:         "https://mega.nz/file/abc#key",
		DownloadDir: "/data",
		Outcome:     domain.SubmissionAccepted,
	}
	if err := repo.Create(ctx, sub); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sub.CreatedAt.IsZero() {
		t.Error("Create should default CreatedAt")
	}

	got, err := repo.Get(ctx, "sub-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.URL != sub.URL || got.DownloadDir != "/data" || got.Outcome != domain.SubmissionAccepted {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestSubmissionSetOutcome(t *testing.T) {
	repo := newTestSubmissionRepo(t)
	ctx := context.Background()

	sub := &domain.Submission{ID: "sub-1", URL: "https://mega.nz/a", Outcome: domain.SubmissionAccepted}
	if err := repo.Create(ctx, sub); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := repo.SetOutcome(ctx, "sub-1", domain.SubmissionFailed, "Unable to parse MEGA URL"); err != nil {
		t.Fatalf("SetOutcome: %v", err)
	}

	got, err := repo.Get(ctx, "sub-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Outcome != domain.SubmissionFailed || got.Message != "Unable to parse MEGA URL" {
		t.Errorf("outcome not updated: %+v", got)
	}
}

func TestSubmissionSetOutcomeMissing(t *testing.T) {
	repo := newTestSubmissionRepo(t)

	err := repo.SetOutcome(context.Background(), "nope", domain.SubmissionFailed, "")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestSubmissionListNewestFirst(t *testing.T) {
	repo := newTestSubmissionRepo(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		sub := &domain.Submission{
			ID:        string(rune('a' + i)),
			URL:       "https://mega.nz/" + string(rune('a'+i)),
			Outcome:   domain.SubmissionAccepted,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(ctx, sub); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	subs, err := repo.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected 2 submissions, got %d", len(subs))
	}
	if subs[0].ID != "c" || subs[1].ID != "b" {
		t.Errorf("expected newest first, got %v then %v", subs[0].ID, subs[1].ID)
	}
}

func TestUserRepositoryRoundTrip(t *testing.T) {
	repo := NewUserRepository(newTestDB(t)).(*UserRepository)
	ctx := context.Background()
	if err := repo.Init(ctx); err != nil {
		t.Fatalf("init users: %v", err)
	}

	user := &domain.User{Username: "alice", PasswordHash: "hash"}
	id, err := repo.Create(ctx, user)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id == 0 {
		t.Error("expected non-zero id")
	}

	byName, err := repo.GetByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if byName.ID != id || byName.PasswordHash != "hash" {
		t.Errorf("unexpected user: %+v", byName)
	}

	if _, err := repo.GetByID(ctx, id); err != nil {
		t.Errorf("GetByID: %v", err)
	}

	if _, err := repo.Create(ctx, &domain.User{Username: "alice", PasswordHash: "other"}); !errors.Is(err, repository.ErrUserExists) {
		t.Errorf("duplicate username: got %v, want ErrUserExists", err)
	}

	if _, err := repo.GetByUsername(ctx, "bob"); !errors.Is(err, repository.ErrUserNotFound) {
		t.Errorf("missing user: got %v, want ErrUserNotFound", err)
	}
	if _, err := repo.GetByID(ctx, 9999); !errors.Is(err, repository.ErrUserNotFound) {
		t.Errorf("missing id: got %v, want ErrUserNotFound", err)
	}
}
