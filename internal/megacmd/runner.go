package megacmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"mega-get-server/internal/environment"
)

// Result captures one finished external command invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Ok reports whether the command exited zero.
func (r Result) Ok() bool { return r.ExitCode == 0 }

// Runner starts an external command and waits for it to finish. A non-zero
// exit is reported through Result, not through the error; the error is
// reserved for spawn failures (binary missing, fork error).
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner invokes real processes with the MEGAcmd install directory
// prepended to PATH.
type ExecRunner struct {
	MegaCmdDir string
}

func NewExecRunner(megaCmdDir string) *ExecRunner {
	return &ExecRunner{MegaCmdDir: megaCmdDir}
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = environment.CommandEnv(r.MegaCmdDir)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("run %s: %w", name, err)
	}
	return res, nil
}

// LookPath resolves name against the augmented search path.
func (r *ExecRunner) LookPath(name string) (string, error) {
	if r.MegaCmdDir == "" {
		return exec.LookPath(name)
	}
	// exec.LookPath consults the process PATH, so candidates in the MEGAcmd
	// dir are checked explicitly first.
	candidate := r.MegaCmdDir + "/" + name
	if path, err := exec.LookPath(candidate); err == nil {
		return path, nil
	}
	return exec.LookPath(name)
}

// StartDetached launches a command without waiting for it (used for the
// MEGAcmd background server). The child keeps running after this returns.
func (r *ExecRunner) StartDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Env = environment.CommandEnv(r.MegaCmdDir)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	// Reap the child when it eventually exits so it does not linger as a
	// zombie.
	go func() { _ = cmd.Wait() }()
	return nil
}

// SimulateRunner satisfies every command with canned output so the server
// can run where MEGAcmd is not installed.
type SimulateRunner struct{}

const simulatedListing = "\n" +
	"TRANSFER  STATE     PROGRESS  PATH\n" +
	"1         ACTIVE    12%       /data/sample_file.zip\n" +
	"2         QUEUED    0%        /data/another_file.pdf\n"

func (SimulateRunner) Run(_ context.Context, name string, args ...string) (Result, error) {
	if name == binTransfers && isListingArgs(args) {
		return Result{Stdout: simulatedListing}, nil
	}
	return Result{}, nil
}

// SampleRunner answers the listing query with realistic native-format rows,
// for exercising the UI without live transfers.
type SampleRunner struct{}

const sampleListing = `
⇓    1234  /Downloads/ubuntu-22.04.iso  45.2% of  3.54 GB ACTIVE
⇑    5678  /Uploads/video.mp4  78.5% of  1.23 GB ACTIVE
⇓    9012  /Downloads/document.pdf  0.0% of  15.2 MB QUEUED
⇓    3456  /Downloads/large_archive.zip  12.8% of  8.91 GB RETRYING
`

func (SampleRunner) Run(_ context.Context, name string, args ...string) (Result, error) {
	if name == binTransfers && isListingArgs(args) {
		return Result{Stdout: sampleListing}, nil
	}
	return Result{}, nil
}

func isListingArgs(args []string) bool {
	for _, a := range args {
		switch a {
		case "-c", "-p", "-r":
			return false
		}
	}
	return true
}
