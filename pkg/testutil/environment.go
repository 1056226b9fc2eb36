package testutil

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/panduza/pza/pkg/paths"
)

// Environment is an isolated user root for one test
type Environment struct {
	Root     string
	StateDir string
	CacheDir string

	t *testing.T
}

// NewEnvironment points PANDUZA_ROOT_DIR, XDG_STATE_HOME and
// XDG_CACHE_HOME at fresh temp directories
func NewEnvironment(t *testing.T) *Environment {
	t.Helper()

	base := t.TempDir()
	env := &Environment{
		Root:     filepath.Join(base, "root"),
		StateDir: filepath.Join(base, "state"),
		CacheDir: filepath.Join(base, "cache"),
		t:        t,
	}

	t.Setenv(paths.EnvRootDir, env.Root)
	t.Setenv("XDG_STATE_HOME", env.StateDir)
	t.Setenv("XDG_CACHE_HOME", env.CacheDir)
	return env
}

// ConfigPath returns the configuration file inside the root
func (e *Environment) ConfigPath() string {
	return filepath.Join(e.Root, paths.ConfigFileName)
}

// LogFilePath returns where the logger writes inside the state dir
func (e *Environment) LogFilePath() string {
	return filepath.Join(e.StateDir, paths.AppDirName, paths.LogFileName)
}

// WriteConfig writes content to the configuration file and returns its path
func (e *Environment) WriteConfig(content string) string {
	e.t.Helper()
	return e.WriteFile(paths.ConfigFileName, content)
}

// WriteFile writes content to name below the root, creating directories
func (e *Environment) WriteFile(name, content string) string {
	e.t.Helper()

	path := filepath.Join(e.Root, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		e.t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		e.t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// FreePort returns a local TCP port that was free a moment ago
func FreePort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve a port: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	if err := l.Close(); err != nil {
		t.Fatalf("failed to release port %d: %v", port, err)
	}
	return port
}
