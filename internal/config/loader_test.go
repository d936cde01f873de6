package config_test

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/wavecue/internal/config"
)

func TestLoad_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "wavecue.yaml")
	if err := os.WriteFile(path, []byte(validYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cache.PostgresDSN != "postgres://localhost/wavecue" {
		t.Errorf("cache.postgres_dsn: got %q", cfg.Cache.PostgresDSN)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("error should wrap a not-exist error, got: %v", err)
	}
}

func TestLoad_InvalidFileNamesPath(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("cache:\n  backend: redis\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := config.Load(path)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), path) {
		t.Errorf("error should name the file, got: %v", err)
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	cfg.Canvas.Width = 640
	cfg.Decoder.FFmpegPath = config.FFmpegDisabled
	cfg.ApplyDefaults()

	if cfg.Canvas.Width != 640 {
		t.Errorf("width: got %d, want 640", cfg.Canvas.Width)
	}
	if cfg.Canvas.Height != 80 {
		t.Errorf("height: got %d, want 80", cfg.Canvas.Height)
	}
	if cfg.Decoder.FFmpegPath != config.FFmpegDisabled {
		t.Errorf("ffmpeg_path: got %q, want %q", cfg.Decoder.FFmpegPath, config.FFmpegDisabled)
	}
}
