package config

import (
	"os"
	"path/filepath"
	"sync"
)

const homeEnv = "KEYWORD_RUNNER_HOME"

// home is resolved once per process.
var home struct {
	once sync.Once
	dir  string
}

// GetHome returns the directory holding the default reports and logs
// folders: $KEYWORD_RUNNER_HOME when set, the install prefix when the
// binary lives in a bin/ folder, otherwise the working directory.
func GetHome() string {
	home.once.Do(func() {
		home.dir = findHome()
	})
	return home.dir
}

// GetReportsDir returns <home>/reports, the output folder used when
// neither config.yaml nor --output names one.
func GetReportsDir() string {
	return filepath.Join(GetHome(), "reports")
}

// GetLogsDir returns <home>/logs.
func GetLogsDir() string {
	return filepath.Join(GetHome(), "logs")
}

func findHome() string {
	if dir := os.Getenv(homeEnv); dir != "" {
		return dir
	}
	if prefix, ok := installPrefix(); ok {
		return prefix
	}
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}
	return "."
}

// installPrefix returns <prefix> for a binary installed as
// <prefix>/bin/keyword-runner, following symlinks.
func installPrefix() (string, bool) {
	exe, err := os.Executable()
	if err != nil {
		return "", false
	}
	if real, err := filepath.EvalSymlinks(exe); err == nil {
		exe = real
	}
	bin := filepath.Dir(exe)
	if filepath.Base(bin) != "bin" {
		return "", false
	}
	return filepath.Dir(bin), true
}

// ResetHome forgets the resolved home so tests can change
// KEYWORD_RUNNER_HOME.
func ResetHome() {
	home.once = sync.Once{}
	home.dir = ""
}
