package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"mega-get-server/internal/domain"
	"mega-get-server/internal/history"
	"mega-get-server/internal/megacmd"
)

type fakeMessenger struct {
	mu    sync.Mutex
	lines []string
}

func (f *fakeMessenger) AppendMessage(line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, line)
}

func (f *fakeMessenger) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.lines))
	copy(out, f.lines)
	return out
}

func (f *fakeMessenger) contains(prefix string) bool {
	for _, l := range f.snapshot() {
		if strings.HasPrefix(l, prefix) {
			return true
		}
	}
	return false
}

type memSubmissionRepo struct {
	mu   sync.Mutex
	subs map[string]*domain.Submission
}

func newMemSubmissionRepo() *memSubmissionRepo {
	return &memSubmissionRepo{subs: map[string]*domain.Submission{}}
}

func (m *memSubmissionRepo) Init(context.Context) error { return nil }

func (m *memSubmissionRepo) Create(_ context.Context, sub *domain.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *sub
	m.subs[sub.ID] = &stored
	return nil
}

func (m *memSubmissionRepo) SetOutcome(_ context.Context, id string, outcome domain.SubmissionOutcome, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[id]
	if !ok {
		return errors.New("submission not found")
	}
	sub.Outcome = outcome
	sub.Message = message
	return nil
}

func (m *memSubmissionRepo) List(context.Context, int) ([]domain.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Submission
	for _, sub := range m.subs {
		out = append(out, *sub)
	}
	return out, nil
}

func (m *memSubmissionRepo) outcome(id string) domain.SubmissionOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub, ok := m.subs[id]; ok {
		return sub.Outcome
	}
	return ""
}

// scriptedRunner returns one fixed result for every command.
type scriptedRunner struct {
	result megacmd.Result
	err    error
}

func (s scriptedRunner) Run(context.Context, string, ...string) (megacmd.Result, error) {
	return s.result, s.err
}

func newDownloadFixture(t *testing.T, runner megacmd.Runner) (DownloadService, *fakeMessenger, *memSubmissionRepo) {
	t.Helper()
	client := megacmd.NewClient(runner, megacmd.ClientConfig{DownloadDir: t.TempDir()})
	store := history.NewStore(filepath.Join(t.TempDir(), "history.json"), 10)
	messenger := &fakeMessenger{}
	repo := newMemSubmissionRepo()
	return NewDownloadService(client, store, repo, messenger, nil), messenger, repo
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSubmitSuccess(t *testing.T) {
	svc, messenger, repo := newDownloadFixture(t, scriptedRunner{})

	sub, err := svc.Submit(context.Background(), "  https://mega.nz/file/abc#key  ")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sub.ID == "" {
		t.Error("expected generated submission id")
	}
	if sub.URL != "https://mega.nz/file/abc#key" {
		t.Errorf("url not trimmed: %q", sub.URL)
	}

	if got := svc.History(); len(got) != 1 || got[0] != "https://mega.nz/file/abc#key" {
		t.Errorf("history = %v", got)
	}

	waitUntil(t, func() bool { return messenger.contains("✓ Download started successfully") })
	if !messenger.contains("Starting download to ") {
		t.Errorf("missing start message: %v", messenger.snapshot())
	}
	if repo.outcome(sub.ID) != domain.SubmissionAccepted {
		t.Errorf("outcome = %q", repo.outcome(sub.ID))
	}
}

func TestSubmitEmptyURL(t *testing.T) {
	svc, _, _ := newDownloadFixture(t, scriptedRunner{})

	if _, err := svc.Submit(context.Background(), "   "); !errors.Is(err, ErrEmptyURL) {
		t.Errorf("got %v, want ErrEmptyURL", err)
	}
}

func TestSubmitBadURLReportsDetails(t *testing.T) {
	runner := scriptedRunner{result: megacmd.Result{ExitCode: 1, Stderr: "Couldn't find anything at the given link\n"}}
	svc, messenger, repo := newDownloadFixture(t, runner)

	sub, err := svc.Submit(context.Background(), "https://mega.nz/file/broken")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	waitUntil(t, func() bool { return repo.outcome(sub.ID) == domain.SubmissionFailed })
	if !messenger.contains("✗ Error: Unable to parse MEGA URL") {
		t.Errorf("missing parse error message: %v", messenger.snapshot())
	}
	if !messenger.contains("Details: Couldn't find anything") {
		t.Errorf("missing details line: %v", messenger.snapshot())
	}
}

func TestSubmitSpawnFailure(t *testing.T) {
	runner := scriptedRunner{err: errors.New("mega-get: executable file not found")}
	svc, messenger, repo := newDownloadFixture(t, runner)

	sub, err := svc.Submit(context.Background(), "https://mega.nz/file/abc")
	if err != nil {
		// Submission itself still succeeds; the failure lands in the log.
		t.Fatalf("Submit: %v", err)
	}

	waitUntil(t, func() bool { return repo.outcome(sub.ID) == domain.SubmissionFailed })
	if !messenger.contains("✗ Error: ") {
		t.Errorf("missing error message: %v", messenger.snapshot())
	}
}

func TestHistoryRoundTripThroughService(t *testing.T) {
	svc, _, _ := newDownloadFixture(t, scriptedRunner{})
	ctx := context.Background()

	for _, u := range []string{"https://mega.nz/a", "https://mega.nz/b", "https://mega.nz/a"} {
		if _, err := svc.Submit(ctx, u); err != nil {
			t.Fatalf("Submit(%q): %v", u, err)
		}
	}

	got := svc.History()
	if len(got) != 2 || got[0] != "https://mega.nz/a" || got[1] != "https://mega.nz/b" {
		t.Errorf("history = %v", got)
	}

	if err := svc.ClearHistory(); err != nil {
		t.Fatalf("ClearHistory: %v", err)
	}
	if got := svc.History(); len(got) != 0 {
		t.Errorf("history not cleared: %v", got)
	}
}
