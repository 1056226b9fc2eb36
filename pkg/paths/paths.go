// Package paths provides the standardized filesystem locations used by
// Panduza tools. The user root lives at ~/.panduza; logs and caches follow
// the XDG Base Directory specification.
package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/panduza/pza/pkg/errors"
)

// Environment variable names
const (
	// EnvRootDir overrides the user root directory
	EnvRootDir = "PANDUZA_ROOT_DIR"

	// EnvHome is the standard home directory variable
	EnvHome = "HOME"
)

// Default directories and files
const (
	// UserRootDirName is the directory created in the user's home
	UserRootDirName = ".panduza"

	// AppDirName is the directory name used under XDG locations
	AppDirName = "panduza"

	// ConfigFileName is the name of the main configuration file
	ConfigFileName = "config.json5"

	// LogFileName is the name of the log file
	LogFileName = "panduza.log"
)

// UserRootDir returns the Panduza user root directory, ~/.panduza unless
// PANDUZA_ROOT_DIR is set.
func UserRootDir() (string, error) {
	if root := os.Getenv(EnvRootDir); root != "" {
		return expandHome(root), nil
	}

	home, err := homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, UserRootDirName), nil
}

// EnsureUserRootDirExists creates the user root directory if it doesn't exist
func EnsureUserRootDirExists() error {
	root, err := UserRootDir()
	if err != nil {
		return err
	}
	return ensureDir(root)
}

// Paths resolves every location below one user root
type Paths struct {
	root string
}

// New creates a Paths rooted at root. An empty root resolves to UserRootDir.
func New(root string) (*Paths, error) {
	if root == "" {
		var err error
		root, err = UserRootDir()
		if err != nil {
			return nil, err
		}
	}

	absRoot, err := filepath.Abs(expandHome(root))
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInvalidInput, "failed to get absolute path for %s", root)
	}
	return &Paths{root: absRoot}, nil
}

// Root returns the user root directory
func (p *Paths) Root() string {
	return p.root
}

// ConfigFile returns the main configuration file path
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.root, ConfigFileName)
}

// StateDir returns the XDG state directory for panduza
func (p *Paths) StateDir() string {
	return stateDir()
}

// LogFilePath returns the log file location
func (p *Paths) LogFilePath() string {
	return filepath.Join(p.StateDir(), LogFileName)
}

// CacheDir returns the XDG cache directory for panduza
func (p *Paths) CacheDir() string {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, AppDirName)
	}
	return filepath.Join(xdg.CacheHome, AppDirName)
}

// Ensure creates the root directory
func (p *Paths) Ensure() error {
	return ensureDir(p.root)
}

// DefaultLogFilePath returns the log file location without needing a root
func DefaultLogFilePath() string {
	return filepath.Join(stateDir(), LogFileName)
}

// stateDir checks XDG_STATE_HOME first since xdg caches its values at init
func stateDir() string {
	if stateHome := os.Getenv("XDG_STATE_HOME"); stateHome != "" {
		return filepath.Join(stateHome, AppDirName)
	}
	return filepath.Join(xdg.StateHome, AppDirName)
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "failed to create directory %s", dir)
	}
	return nil
}

func homeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return home, nil
	}
	if home = os.Getenv(EnvHome); home != "" {
		return home, nil
	}
	return "", errors.New(errors.ErrHomeNotFound, "unable to determine home directory")
}

// expandHome expands ~ to the home directory
func expandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}

	home, err := homeDir()
	if err != nil {
		return path
	}

	if len(path) == 1 {
		return home
	}

	// Handle both ~/ and ~\
	if path[1] == '/' || path[1] == filepath.Separator {
		return filepath.Join(home, path[2:])
	}

	// ~something (not the user's home)
	return path
}
