package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for streamd.
type Config struct {
	DataDir   string          `toml:"data_dir"`
	LogDir    string          `toml:"log_dir"`
	LogLevel  string          `toml:"log_level"`
	Index     IndexConfig     `toml:"index"`
	Node      NodeConfig      `toml:"node"`
	Watch     WatchConfig     `toml:"watch"`
	Transcode TranscodeConfig `toml:"transcode"`
}

// IndexConfig represents configuration for the metadata index.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type IndexConfig struct {
	Type string `toml:"type"`           // "bolt" or "memory"
	Path string `toml:"path,omitempty"` // only used for type=bolt; defaults to <data_dir>/index.db
}

// NodeConfig holds the content node's network settings.
type NodeConfig struct {
	Listen   string `toml:"listen"`              // blob endpoint bind address
	RelayURL string `toml:"relay_url,omitempty"` // probed at startup; empty disables the relay
}

// WatchConfig holds the directories kept in sync with the index.
type WatchConfig struct {
	Roots  []string `toml:"roots"`
	Ignore []string `toml:"ignore"`
}

// TranscodeConfig holds ffmpeg settings. Empty fields fall back to the
// transcoder's defaults.
type TranscodeConfig struct {
	FFmpegPath string   `toml:"ffmpeg_path,omitempty"`
	Format     string   `toml:"format,omitempty"`
	VideoCodec string   `toml:"video_codec,omitempty"`
	AudioCodec string   `toml:"audio_codec,omitempty"`
	ExtraArgs  []string `toml:"extra_args,omitempty"`
}

// NewConfig creates a new Config with defaults rooted under dataDir.
func NewConfig(dataDir string) *Config {
	return &Config{
		DataDir:  dataDir,
		LogDir:   filepath.Join(dataDir, "log"),
		LogLevel: "info",
		Index: IndexConfig{
			Type: "bolt",
		},
		Node: NodeConfig{
			Listen: "127.0.0.1:4433",
		},
		Transcode: TranscodeConfig{
			Format: "mp4",
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the
// provided Config. An existing file is never overwritten.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
