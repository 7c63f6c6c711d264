package megacmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"mega-get-server/internal/domain"
)

// MEGAcmd entry points used by this client.
const (
	binGet       = "mega-get"
	binTransfers = "mega-transfers"
	binVersion   = "mega-version"
)

// resumeAllDelay is how long to wait after a successful mega-get before
// issuing the advisory resume-all. Freshly queued transfers occasionally
// stall at 0% (RETRYING) until the server is nudged.
const resumeAllDelay = 2 * time.Second

// Client drives the MEGAcmd suite through a Runner. The Runner decides
// whether real processes are spawned (ExecRunner) or canned responses are
// returned (SimulateRunner/SampleRunner).
type Client struct {
	runner          Runner
	downloadDir     string
	listLimit       int
	pathDisplaySize int
	logger          *logrus.Logger

	// resumeDelay is shortened in tests.
	resumeDelay time.Duration
}

type ClientConfig struct {
	DownloadDir     string
	ListLimit       int
	PathDisplaySize int
	Logger          *logrus.Logger
}

func NewClient(runner Runner, cfg ClientConfig) *Client {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = 50
	}
	if cfg.PathDisplaySize <= 0 {
		cfg.PathDisplaySize = 80
	}
	return &Client{
		runner:          runner,
		downloadDir:     cfg.DownloadDir,
		listLimit:       cfg.ListLimit,
		pathDisplaySize: cfg.PathDisplaySize,
		logger:          cfg.Logger,
		resumeDelay:     resumeAllDelay,
	}
}

// StartDownload submits url to mega-get and waits for the command to
// complete (the transfer itself continues inside the MEGAcmd server). On
// success a resume-all follow-up is fired after a short delay; that nudge is
// advisory and its failure is swallowed.
func (c *Client) StartDownload(ctx context.Context, url string) (Result, error) {
	dir, err := filepath.Abs(c.downloadDir)
	if err != nil {
		dir = c.downloadDir
	}

	res, err := c.runner.Run(ctx, binGet, "-q", "--ignore-quota-warn", strings.TrimSpace(url), dir)
	if err != nil {
		return res, err
	}

	if res.Ok() {
		go c.nudgeResumeAll()
	}
	return res, nil
}

func (c *Client) nudgeResumeAll() {
	time.Sleep(c.resumeDelay)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := c.runner.Run(ctx, binTransfers, "-r", "-a"); err != nil {
		c.logger.Debugf("resume-all nudge failed: %v", err)
	}
}

// Action issues a cancel/pause/resume against a single tag, or against every
// transfer when tag is empty or "all".
func (c *Client) Action(ctx context.Context, action domain.TransferAction, tag string) (Result, error) {
	if !action.Valid() {
		return Result{}, fmt.Errorf("unknown transfer action %q", action)
	}

	flag := map[domain.TransferAction]string{
		domain.ActionCancel: "-c",
		domain.ActionPause:  "-p",
		domain.ActionResume: "-r",
	}[action]

	target := strings.TrimSpace(tag)
	if target == "" || strings.EqualFold(target, "all") {
		target = "-a"
	}

	return c.runner.Run(ctx, binTransfers, flag, target)
}

// ListTransfers fetches the raw transfer listing. Stderr is folded into the
// returned text on a non-zero exit so parse failures surface the tool's own
// complaint to the UI.
func (c *Client) ListTransfers(ctx context.Context) (string, error) {
	res, err := c.runner.Run(ctx, binTransfers,
		fmt.Sprintf("--limit=%d", c.listLimit),
		fmt.Sprintf("--path-display-size=%d", c.pathDisplaySize),
	)
	if err != nil {
		return "", err
	}

	out := res.Stdout
	if !res.Ok() && res.Stderr != "" {
		out += res.Stderr
	}
	return out, nil
}

// Version runs mega-version; a zero exit means the MEGAcmd server is up.
func (c *Client) Version(ctx context.Context) (Result, error) {
	return c.runner.Run(ctx, binVersion)
}

// DownloadDir reports where submissions are saved.
func (c *Client) DownloadDir() string { return c.downloadDir }
