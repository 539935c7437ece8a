package paths

import (
	"os"
	"path/filepath"
	"sync"
)

// ConfigDirEnv overrides the config directory when set.
const ConfigDirEnv = "AGENTOS_CONFIG_DIR"

var (
	mu             sync.RWMutex
	configOverride string
)

// SetConfigDir overrides the config directory for the rest of the process.
// An empty dir restores the default.
func SetConfigDir(dir string) {
	mu.Lock()
	defer mu.Unlock()
	configOverride = dir
}

// GetConfigDir returns the user's config directory for agentos.
//
// The --config-dir flag wins over AGENTOS_CONFIG_DIR, which wins over
// ~/.config/agentos. If the home directory cannot be determined, it falls
// back to a directory under the system temporary directory.
func GetConfigDir() string {
	mu.RLock()
	override := configOverride
	mu.RUnlock()

	if override != "" {
		return filepath.Clean(override)
	}
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		return filepath.Clean(dir)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Clean(filepath.Join(os.TempDir(), ".agentos-config"))
	}
	return filepath.Clean(filepath.Join(homeDir, ".config", "agentos"))
}

// GetDataDir returns the user's data directory for agentos (logs).
func GetDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Clean(filepath.Join(os.TempDir(), ".agentos"))
	}
	return filepath.Clean(filepath.Join(homeDir, ".agentos"))
}

// GetHomeDir returns the user's home directory.
//
// Returns an empty string if the home directory cannot be determined.
func GetHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Clean(homeDir)
}
