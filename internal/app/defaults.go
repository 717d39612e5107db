package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - STREAMD_CONFIG_PATH: config file location (default: ~/.config/streamd.toml)
//   - STREAMD_HOME: base directory for streamd data (default: ~/.local/share/streamd)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	dataDir, err := getDataDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"data_dir":    dataDir,
		"log_dir":     filepath.Join(dataDir, "log"),
	}, nil
}

// getConfigPath returns the config file path, checking STREAMD_CONFIG_PATH
// env var first, then falling back to the default ~/.config/streamd.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("STREAMD_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "streamd.toml"), nil
}

// getDataDir returns the base directory for streamd data, checking
// STREAMD_HOME env var first, then falling back to the XDG default
// ~/.local/share/streamd.
func getDataDir() (string, error) {
	if path := os.Getenv("STREAMD_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "streamd"), nil
}
