// Package environment resolves where downloads go, where the MEGAcmd
// binaries live, and what kind of host the server is running on. It is a
// leaf package: everything here is derived from the OS and environment
// variables only.
package environment

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// RunMode classifies the host the server was started on. It is informational
// only; the server always serves HTTP.
type RunMode string

const (
	RunModeContainer RunMode = "container"
	RunModeWeb       RunMode = "web"
	RunModeDesktop   RunMode = "desktop"
)

// InContainer reports whether the process runs inside a container.
func InContainer() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return os.Getenv("container") != ""
}

// DetectRunMode returns container for containerized runs, web for headless
// Linux (no DISPLAY) or when FORCE_WEB_SERVER is set, desktop otherwise.
func DetectRunMode() RunMode {
	if InContainer() {
		return RunModeContainer
	}
	if isTruthy(os.Getenv("FORCE_WEB_SERVER")) {
		return RunModeWeb
	}
	if runtime.GOOS == "linux" && os.Getenv("DISPLAY") == "" {
		return RunModeWeb
	}
	return RunModeDesktop
}

// DefaultDownloadDir is the platform-aware default for the download
// directory: /data/ in containers, the user Downloads folder elsewhere.
func DefaultDownloadDir() string {
	if InContainer() {
		return "/data/"
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("USERPROFILE"), "Downloads")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "downloads"
	}
	return filepath.Join(home, "Downloads")
}

// DefaultMegaCmdDir returns the conventional MEGAcmd install location when
// one exists. Only macOS ships the binaries outside PATH.
func DefaultMegaCmdDir() string {
	if runtime.GOOS != "darwin" {
		return ""
	}
	const macosDir = "/Applications/MEGAcmd.app/Contents/MacOS"
	if fi, err := os.Stat(macosDir); err == nil && fi.IsDir() {
		return macosDir
	}
	return ""
}

// CommandEnv builds the environment for mega-* subprocesses with megaCmdDir
// prepended to PATH, so a locally installed MEGAcmd wins over the system one.
func CommandEnv(megaCmdDir string) []string {
	env := os.Environ()
	if megaCmdDir == "" {
		return env
	}
	for i, kv := range env {
		if strings.HasPrefix(kv, "PATH=") {
			env[i] = "PATH=" + megaCmdDir + string(os.PathListSeparator) + kv[len("PATH="):]
			return env
		}
	}
	return append(env, "PATH="+megaCmdDir)
}

// SearchPath extracts the PATH value from a CommandEnv-style environment.
func SearchPath(env []string) string {
	for _, kv := range env {
		if strings.HasPrefix(kv, "PATH=") {
			return kv[len("PATH="):]
		}
	}
	return ""
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
