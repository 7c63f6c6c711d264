package megacmd

import (
	"context"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"mega-get-server/internal/environment"
)

// Readiness probe cadence. mega-version is cheap; the overall deadline keeps
// a missing server from stalling startup for long.
const (
	probeAttemptTimeout = 5 * time.Second
	probeOverallTimeout = 15 * time.Second
	probeRetryDelay     = 1 * time.Second
	serverStartGrace    = 2 * time.Second
)

// ServerProbe starts the MEGAcmd background server where that makes sense
// and waits until it answers. This is best-effort orchestration of a
// third-party daemon: a false result is advisory, never fatal.
type ServerProbe struct {
	runner *ExecRunner
	client *Client
	logger *logrus.Logger
}

func NewServerProbe(runner *ExecRunner, client *Client, logger *logrus.Logger) *ServerProbe {
	if logger == nil {
		logger = logrus.New()
	}
	return &ServerProbe{runner: runner, client: client, logger: logger}
}

// EnsureReady launches mega-cmd-server when the headless binary is present,
// then polls mega-version until it exits zero or the deadline passes.
// Containerized runs are assumed to manage the server themselves (the image
// entrypoint starts it) and report ready immediately.
func (p *ServerProbe) EnsureReady(ctx context.Context) bool {
	if environment.InContainer() {
		return true
	}

	if bin, headless := p.serverBinary(); bin != "" && headless {
		if err := p.runner.StartDetached(bin); err != nil {
			p.logger.Warnf("start %s: %v", bin, err)
		} else {
			p.logger.Infof("started MEGAcmd server (%s)", bin)
			select {
			case <-time.After(serverStartGrace):
			case <-ctx.Done():
				return false
			}
		}
	}

	return p.waitReady(ctx)
}

// serverBinary resolves the MEGAcmd server executable. Linux installs ship
// a headless mega-cmd-server; the macOS bundle only has the MEGAcmd app
// binary, which would open a GUI, so it is detected but never launched.
func (p *ServerProbe) serverBinary() (bin string, headless bool) {
	if _, err := p.runner.LookPath("mega-cmd-server"); err == nil {
		return "mega-cmd-server", true
	}
	if runtime.GOOS == "darwin" && p.runner.MegaCmdDir != "" {
		if _, err := p.runner.LookPath("MEGAcmd"); err == nil {
			return "MEGAcmd", false
		}
	}
	return "", false
}

func (p *ServerProbe) waitReady(ctx context.Context) bool {
	deadline := time.Now().Add(probeOverallTimeout)
	for time.Now().Before(deadline) {
		attemptCtx, cancel := context.WithTimeout(ctx, probeAttemptTimeout)
		res, err := p.client.Version(attemptCtx)
		cancel()
		if err == nil && res.Ok() {
			return true
		}

		select {
		case <-time.After(probeRetryDelay):
		case <-ctx.Done():
			return false
		}
	}
	return false
}
