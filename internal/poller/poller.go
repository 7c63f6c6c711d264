// Package poller owns the shared view of the MEGAcmd transfer listing: a
// single recurring task rebuilds it, everything else reads snapshots.
package poller

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"mega-get-server/internal/domain"
	"mega-get-server/internal/megacmd"
)

// minInterval is the floor for the poll cadence regardless of configuration.
const minInterval = 500 * time.Millisecond

// retryingAdvisory is appended to the message log the first time a RETRYING
// transfer shows up, once per run.
const retryingAdvisory = "⚠ If transfers stay at 0% (RETRYING), try Resume, or Cancel and re-add the URL."

// Lister fetches the raw transfer listing text.
type Lister interface {
	ListTransfers(ctx context.Context) (string, error)
}

// Snapshot is a point-in-time copy of the poller state. Slices are copied,
// so holding a Snapshot after the next tick is safe.
type Snapshot struct {
	Transfers []domain.Transfer `json:"transfers"`
	Raw       string            `json:"raw"`
	// ParseFailed is set when the tool produced output but no line matched
	// either grammar; the UI shows the raw text instead of an empty list.
	ParseFailed bool      `json:"parse_failed"`
	Messages    []string  `json:"messages"`
	ServerReady bool      `json:"server_ready"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Config struct {
	Interval  time.Duration
	Logger    *logrus.Logger
	OnRefresh func() // invoked after every state write, never concurrently
}

// Poller periodically replaces the current listing and collects the
// user-visible message log. All mutation happens under one mutex; the poll
// goroutine is the only listing writer.
type Poller struct {
	lister    Lister
	interval  time.Duration
	logger    *logrus.Logger
	onRefresh func()

	refreshMu sync.Mutex

	mu           sync.Mutex
	transfers    []domain.Transfer
	raw          string
	messages     []string
	retryingSeen bool
	serverReady  bool
	updatedAt    time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

func New(lister Lister, cfg Config) *Poller {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	interval := cfg.Interval
	if interval < minInterval {
		interval = minInterval
	}
	return &Poller{
		lister:    lister,
		interval:  interval,
		logger:    cfg.Logger,
		onRefresh: cfg.OnRefresh,
	}
}

// Interval reports the effective poll cadence after the floor.
func (p *Poller) Interval() time.Duration { return p.interval }

// Start launches the recurring poll task. It polls once immediately so the
// first snapshot is populated without waiting a full interval.
func (p *Poller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.pollOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.pollOnce(ctx)
			}
		}
	}()
}

// Stop cancels the poll task and waits for it to exit.
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
		<-p.done
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	out, err := p.lister.ListTransfers(ctx)
	if err != nil {
		// Listing failures never stop the loop; they become a message line.
		p.logger.Warnf("transfer listing failed: %v", err)
		p.appendLocked(func() {
			p.messages = append(p.messages, fmt.Sprintf("Poll error: %v", err))
		})
		return
	}

	transfers := megacmd.ParseTransfers(out)

	p.appendLocked(func() {
		p.raw = out
		p.transfers = transfers
		p.updatedAt = time.Now()
		if !p.retryingSeen && hasRetrying(transfers) {
			p.retryingSeen = true
			p.messages = append(p.messages, retryingAdvisory)
		}
	})
}

// AppendMessage adds a line to the user-visible log and triggers a refresh.
// Action handlers share this entry point with the poll task.
func (p *Poller) AppendMessage(line string) {
	p.appendLocked(func() {
		p.messages = append(p.messages, line)
	})
}

// SetServerReady records the readiness-probe outcome for snapshots.
func (p *Poller) SetServerReady(ready bool) {
	p.appendLocked(func() {
		p.serverReady = ready
	})
}

// appendLocked runs fn under the state mutex, then fires the refresh
// callback outside it, serialized by its own mutex. The write always
// precedes the refresh it triggers, and the callback is free to call
// Snapshot without deadlocking.
func (p *Poller) appendLocked(fn func()) {
	p.mu.Lock()
	fn()
	p.mu.Unlock()

	if p.onRefresh != nil {
		p.refreshMu.Lock()
		p.onRefresh()
		p.refreshMu.Unlock()
	}
}

// Snapshot returns a copy of the current state.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := Snapshot{
		Transfers:   make([]domain.Transfer, len(p.transfers)),
		Raw:         p.raw,
		Messages:    make([]string, len(p.messages)),
		ServerReady: p.serverReady,
		UpdatedAt:   p.updatedAt,
	}
	copy(snap.Transfers, p.transfers)
	copy(snap.Messages, p.messages)
	snap.ParseFailed = len(p.transfers) == 0 && strings.TrimSpace(p.raw) != ""
	return snap
}

func hasRetrying(transfers []domain.Transfer) bool {
	for _, t := range transfers {
		if t.State == domain.TransferStateRetrying {
			return true
		}
	}
	return false
}
