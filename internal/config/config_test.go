package config

import (
	"image"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "streamdec.yaml")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
chunk_size: 512
workers: 2
order: bgra
target: 64x48
out_dir: /tmp/out
http:
  timeout_s: 5
jpeg:
  max_pixels: 1000000
webp:
  max_bytes: 4096
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ChunkSize != 512 || cfg.Workers != 2 || cfg.Order != "bgra" || cfg.OutDir != "/tmp/out" {
		t.Errorf("cfg = %+v", cfg)
	}

	if cfg.HTTP.TimeoutS != 5 || cfg.HTTP.UserAgent != "streamdec" {
		t.Errorf("http = %+v", cfg.HTTP)
	}

	if cfg.JPEG.MaxPixels != 1000000 || cfg.WebP.MaxBytes != 4096 || cfg.WebP.MaxPixels != 0 {
		t.Errorf("limits = %+v %+v", cfg.JPEG, cfg.WebP)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"syntax", "workers: [1"},
		{"order", "order: RGBX"},
		{"target", "target: 10"},
		{"negative chunk", "chunk_size: -1"},
		{"negative limit", "webp:\n  max_pixels: -5"},
	}

	for _, tc := range tests {
		if _, err := Load(writeConfig(t, tc.data)); err == nil {
			t.Errorf("%s: Load succeeded", tc.name)
		}
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load of a missing file succeeded")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.ChunkSize != 32<<10 || cfg.Workers != 4 || cfg.Order != "RGBA" || cfg.HTTP.TimeoutS != 30 {
		t.Errorf("Default() = %+v", cfg)
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    image.Point
		wantErr bool
	}{
		{"320x240", image.Pt(320, 240), false},
		{"1X1", image.Pt(1, 1), false},
		{"0x10", image.Point{}, true},
		{"10", image.Point{}, true},
		{"ax10", image.Point{}, true},
		{"10x-2", image.Point{}, true},
	}

	for _, tc := range tests {
		got, err := ParseSize(tc.in)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Errorf("ParseSize(%q) = %v, %v, want %v, wantErr %v", tc.in, got, err, tc.want, tc.wantErr)
		}
	}
}
