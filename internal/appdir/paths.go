package appdir

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.fieldops, or the FIELDOPS_DIR override when set.
// The agent keeps its queue database, config, logs and lock file here.
func BaseDir() string {
	if dir := os.Getenv("FIELDOPS_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".fieldops")
}

// DBPath returns the durable queue database path.
func DBPath() string {
	return filepath.Join(BaseDir(), "queue.db")
}

// ConfigPath returns the agent config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// TokenPath returns the file holding the session token from the last login.
func TokenPath() string {
	return filepath.Join(BaseDir(), "token")
}

// LogDir returns the agent log directory.
func LogDir() string {
	return filepath.Join(BaseDir(), "logs")
}

// LogPath returns the agent log file path.
func LogPath() string {
	return filepath.Join(LogDir(), "fieldagent.log")
}

// EnsureDir creates the data directory tree with owner-only permissions.
func EnsureDir() error {
	dirs := []string{
		BaseDir(),
		LogDir(),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
