package megacmd

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"mega-get-server/internal/domain"
)

// fakeRunner records invocations and replays scripted results.
type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string

	result Result
	err    error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string{name}, args...))
	return f.result, f.err
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRunner) call(i int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

func newTestClient(runner Runner, downloadDir string) *Client {
	c := NewClient(runner, ClientConfig{
		DownloadDir:     downloadDir,
		ListLimit:       25,
		PathDisplaySize: 120,
	})
	c.resumeDelay = 10 * time.Millisecond
	return c
}

func TestStartDownloadArgsAndResumeNudge(t *testing.T) {
	runner := &fakeRunner{}
	client := newTestClient(runner, "downloads")

	res, err := client.StartDownload(context.Background(), "  https://mega.nz/file/abc#key  ")
	if err != nil {
		t.Fatalf("StartDownload: %v", err)
	}
	if !res.Ok() {
		t.Fatalf("expected ok result, got %+v", res)
	}

	got := runner.call(0)
	absDir, _ := filepath.Abs("downloads")
	want := []string{"mega-get", "-q", "--ignore-quota-warn", "https://mega.nz/file/abc#key", absDir}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("mega-get call = %v, want %v", got, want)
	}

	// The resume-all follow-up fires after resumeDelay.
	deadline := time.Now().Add(time.Second)
	for runner.callCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if runner.callCount() < 2 {
		t.Fatal("resume-all nudge never fired")
	}
	nudge := runner.call(1)
	if strings.Join(nudge, " ") != "mega-transfers -r -a" {
		t.Errorf("nudge call = %v", nudge)
	}
}

func TestStartDownloadFailureSkipsNudge(t *testing.T) {
	runner := &fakeRunner{result: Result{ExitCode: 1, Stderr: "Couldn't find anything"}}
	client := newTestClient(runner, "downloads")

	res, err := client.StartDownload(context.Background(), "https://mega.nz/file/bad")
	if err != nil {
		t.Fatalf("StartDownload: %v", err)
	}
	if res.Ok() {
		t.Fatal("expected failed result")
	}

	time.Sleep(50 * time.Millisecond)
	if n := runner.callCount(); n != 1 {
		t.Errorf("expected no resume nudge after failure, got %d calls", n)
	}
}

func TestActionFlagMapping(t *testing.T) {
	tests := []struct {
		name   string
		action domain.TransferAction
		tag    string
		want   string
	}{
		{name: "cancel one", action: domain.ActionCancel, tag: "42", want: "mega-transfers -c 42"},
		{name: "pause one", action: domain.ActionPause, tag: "7", want: "mega-transfers -p 7"},
		{name: "resume one", action: domain.ActionResume, tag: "7", want: "mega-transfers -r 7"},
		{name: "empty tag means all", action: domain.ActionPause, tag: "", want: "mega-transfers -p -a"},
		{name: "all keyword", action: domain.ActionResume, tag: "ALL", want: "mega-transfers -r -a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			client := newTestClient(runner, "downloads")

			if _, err := client.Action(context.Background(), tt.action, tt.tag); err != nil {
				t.Fatalf("Action: %v", err)
			}
			if got := strings.Join(runner.call(0), " "); got != tt.want {
				t.Errorf("call = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestActionRejectsUnknown(t *testing.T) {
	runner := &fakeRunner{}
	client := newTestClient(runner, "downloads")

	if _, err := client.Action(context.Background(), domain.TransferAction("restart"), "1"); err == nil {
		t.Fatal("expected error for unknown action")
	}
	if runner.callCount() != 0 {
		t.Error("no command should be issued for unknown actions")
	}
}

func TestListTransfersArgs(t *testing.T) {
	runner := &fakeRunner{result: Result{Stdout: "listing"}}
	client := newTestClient(runner, "downloads")

	out, err := client.ListTransfers(context.Background())
	if err != nil {
		t.Fatalf("ListTransfers: %v", err)
	}
	if out != "listing" {
		t.Errorf("unexpected output %q", out)
	}
	want := "mega-transfers --limit=25 --path-display-size=120"
	if got := strings.Join(runner.call(0), " "); got != want {
		t.Errorf("call = %q, want %q", got, want)
	}
}

func TestListTransfersFoldsStderrOnFailure(t *testing.T) {
	runner := &fakeRunner{result: Result{ExitCode: 1, Stdout: "partial\n", Stderr: "server not running"}}
	client := newTestClient(runner, "downloads")

	out, err := client.ListTransfers(context.Background())
	if err != nil {
		t.Fatalf("ListTransfers: %v", err)
	}
	if !strings.Contains(out, "partial") || !strings.Contains(out, "server not running") {
		t.Errorf("stderr not folded into output: %q", out)
	}
}

func TestListTransfersPropagatesSpawnError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("exec: \"mega-transfers\": executable file not found")}
	client := newTestClient(runner, "downloads")

	if _, err := client.ListTransfers(context.Background()); err == nil {
		t.Fatal("expected spawn error to propagate")
	}
}

func TestSimulateRunnerListing(t *testing.T) {
	client := NewClient(SimulateRunner{}, ClientConfig{DownloadDir: "/data"})

	out, err := client.ListTransfers(context.Background())
	if err != nil {
		t.Fatalf("ListTransfers: %v", err)
	}
	transfers := ParseTransfers(out)
	if len(transfers) != 2 {
		t.Fatalf("expected 2 simulated transfers, got %d", len(transfers))
	}

	// Control commands return empty success, never the canned listing.
	res, err := client.Action(context.Background(), domain.ActionPause, "1")
	if err != nil {
		t.Fatalf("Action: %v", err)
	}
	if res.Stdout != "" || !res.Ok() {
		t.Errorf("unexpected control result: %+v", res)
	}
}
