package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		DataDir:  "/home/user/.local/share/streamd",
		LogDir:   "/home/user/.local/share/streamd/log",
		LogLevel: "debug",
		Index: IndexConfig{
			Type: "bolt",
			Path: "/home/user/.local/share/streamd/index.db",
		},
		Node: NodeConfig{
			Listen:   "127.0.0.1:4433",
			RelayURL: "https://relay.example.com",
		},
		Watch: WatchConfig{
			Roots:  []string{"/media/movies", "/media/shows"},
			Ignore: []string{"*.part", "*.tmp"},
		},
		Transcode: TranscodeConfig{
			FFmpegPath: "/usr/local/bin/ffmpeg",
			Format:     "mp4",
			VideoCodec: "libx264",
			AudioCodec: "aac",
			ExtraArgs:  []string{"-preset", "veryfast"},
		},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.DataDir != original.DataDir {
		t.Errorf("DataDir = %q, want %q", got.DataDir, original.DataDir)
	}
	if got.LogLevel != original.LogLevel {
		t.Errorf("LogLevel = %q, want %q", got.LogLevel, original.LogLevel)
	}
	if got.Index.Type != "bolt" {
		t.Errorf("Index.Type = %q, want %q", got.Index.Type, "bolt")
	}
	if got.Index.Path != original.Index.Path {
		t.Errorf("Index.Path = %q, want %q", got.Index.Path, original.Index.Path)
	}
	if got.Node.Listen != original.Node.Listen {
		t.Errorf("Node.Listen = %q, want %q", got.Node.Listen, original.Node.Listen)
	}
	if got.Node.RelayURL != original.Node.RelayURL {
		t.Errorf("Node.RelayURL = %q, want %q", got.Node.RelayURL, original.Node.RelayURL)
	}
	if len(got.Watch.Roots) != 2 || got.Watch.Roots[0] != "/media/movies" {
		t.Errorf("Watch.Roots = %q, want %q", got.Watch.Roots, original.Watch.Roots)
	}
	if len(got.Watch.Ignore) != 2 {
		t.Fatalf("len(Watch.Ignore) = %d, want 2", len(got.Watch.Ignore))
	}
	if got.Transcode.FFmpegPath != original.Transcode.FFmpegPath {
		t.Errorf("Transcode.FFmpegPath = %q, want %q", got.Transcode.FFmpegPath, original.Transcode.FFmpegPath)
	}
	if len(got.Transcode.ExtraArgs) != 2 || got.Transcode.ExtraArgs[0] != "-preset" {
		t.Errorf("Transcode.ExtraArgs = %q, want %q", got.Transcode.ExtraArgs, original.Transcode.ExtraArgs)
	}
}

func TestManager_Read_Document(t *testing.T) {
	doc := `
data_dir = "/srv/streamd"
log_level = "warn"

[index]
type = "bolt"

[node]
listen = "0.0.0.0:4433"
relay_url = "https://relay.example.com"

[watch]
roots = ["/media"]
ignore = ["*.part"]

[transcode]
format = "webm"
`
	m := &Manager{}
	got, err := m.Read(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.DataDir != "/srv/streamd" {
		t.Errorf("DataDir = %q, want %q", got.DataDir, "/srv/streamd")
	}
	if got.Node.Listen != "0.0.0.0:4433" {
		t.Errorf("Node.Listen = %q, want %q", got.Node.Listen, "0.0.0.0:4433")
	}
	if len(got.Watch.Roots) != 1 || got.Watch.Roots[0] != "/media" {
		t.Errorf("Watch.Roots = %q, want [/media]", got.Watch.Roots)
	}
	if got.Transcode.Format != "webm" {
		t.Errorf("Transcode.Format = %q, want %q", got.Transcode.Format, "webm")
	}
}

func TestManager_Read_Malformed(t *testing.T) {
	m := &Manager{}
	if _, err := m.Read(strings.NewReader("data_dir = [not toml")); err == nil {
		t.Fatal("Read() accepted malformed input")
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/streamd")

	if cfg.DataDir != "/data/streamd" {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, "/data/streamd")
	}
	if cfg.LogDir != filepath.Join("/data/streamd", "log") {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/streamd/log")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.Index.Type != "bolt" {
		t.Errorf("Index.Type = %q, want %q", cfg.Index.Type, "bolt")
	}
	if cfg.Node.Listen != "127.0.0.1:4433" {
		t.Errorf("Node.Listen = %q, want %q", cfg.Node.Listen, "127.0.0.1:4433")
	}
	if cfg.Transcode.Format != "mp4" {
		t.Errorf("Transcode.Format = %q, want %q", cfg.Transcode.Format, "mp4")
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "streamd.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "streamd.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "streamd.toml")
		cfg := NewConfig(dir)
		cfg.Watch.Roots = []string{"/media"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.DataDir != dir {
			t.Errorf("DataDir = %q, want %q", got.DataDir, dir)
		}
		if len(got.Watch.Roots) != 1 || got.Watch.Roots[0] != "/media" {
			t.Errorf("Watch.Roots = %q, want [/media]", got.Watch.Roots)
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/streamd.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
