package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// EnvHome overrides the home directory.
const EnvHome = "WDCLIENT_HOME"

// Home layout:
//
//	<home>/logs     default log file location
//	<home>/reports  run reports when neither --output nor `reports:` is set
var (
	homeMu  sync.Mutex
	homeDir string
)

// GetHome returns the wdclient home directory, resolved once: $WDCLIENT_HOME
// (made absolute), the parent of a bin/ directory holding the binary, or the
// working directory.
func GetHome() string {
	homeMu.Lock()
	defer homeMu.Unlock()
	if homeDir == "" {
		homeDir = resolveHome()
	}
	return homeDir
}

// GetLogsDir returns <home>/logs.
func GetLogsDir() string {
	return filepath.Join(GetHome(), "logs")
}

// GetReportsDir returns <home>/reports.
func GetReportsDir() string {
	return filepath.Join(GetHome(), "reports")
}

func resolveHome() string {
	if env := strings.TrimSpace(os.Getenv(EnvHome)); env != "" {
		if abs, err := filepath.Abs(env); err == nil {
			return abs
		}
		return env
	}
	if dir, ok := installHome(); ok {
		return dir
	}
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}
	return "."
}

// installHome reports <home> for a binary installed as <home>/bin/wdclient.
func installHome() (string, bool) {
	exe, err := os.Executable()
	if err != nil {
		return "", false
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	bin := filepath.Dir(exe)
	if filepath.Base(bin) != "bin" {
		return "", false
	}
	return filepath.Dir(bin), true
}

// ResetHome forgets the resolved home directory. Tests use it after changing
// $WDCLIENT_HOME.
func ResetHome() {
	homeMu.Lock()
	defer homeMu.Unlock()
	homeDir = ""
}
