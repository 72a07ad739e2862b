// Package paths resolves where params keeps its configuration, its data
// files, and its key backup ledger.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// appName names the per-user directories.
const appName = "params"

// ConfigFileName is the configuration file inside the config directory.
const ConfigFileName = "config.yaml"

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "PARAMS_CONFIG_DIR"
	EnvDataDir   = "PARAMS_DATA_DIR"
)

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform-specific configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/params (fallback ~/.config/params)
// macOS:   ~/Library/Application Support/params
// Windows: %APPDATA%/params
func DefaultConfigDir() (string, error) {
	return userDir("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir returns the platform-specific data directory.
//
// Linux:   $XDG_DATA_HOME/params (fallback ~/.local/share/params)
// macOS and Windows: same as the config directory.
func DefaultDataDir() (string, error) {
	return userDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func userDir(xdgVar, homeRel string) (string, error) {
	if runtime.GOOS == "linux" {
		if xdg := os.Getenv(xdgVar); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, homeRel, appName), nil
	}
	dir, err := platformDir.userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName), nil
}

// firstAbs returns the first non-empty candidate as an absolute path.
func firstAbs(candidates ...string) (string, bool, error) {
	for _, c := range candidates {
		if c != "" {
			abs, err := filepath.Abs(c)
			return abs, true, err
		}
	}
	return "", false, nil
}

// ResolveConfigDir returns the configuration directory:
// flag > PARAMS_CONFIG_DIR > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if dir, ok, err := firstAbs(flag, os.Getenv(EnvConfigDir)); ok {
		return dir, err
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns the data directory:
// flag > data_dir from config > PARAMS_DATA_DIR > DefaultDataDir().
func ResolveDataDir(flag, configValue string) (string, error) {
	if dir, ok, err := firstAbs(flag, configValue, os.Getenv(EnvDataDir)); ok {
		return dir, err
	}
	return DefaultDataDir()
}

// ResolveFile returns flag, else configValue, else name inside dir, as an
// absolute path.
func ResolveFile(flag, configValue, dir, name string) (string, error) {
	if path, ok, err := firstAbs(flag, configValue); ok {
		return path, err
	}
	return filepath.Abs(filepath.Join(dir, name))
}
