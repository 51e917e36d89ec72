// Package config loads the YAML configuration of the streamdec command.
package config

import (
	"fmt"
	"image"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete command configuration
type Config struct {
	ChunkSize int        `yaml:"chunk_size"` // bytes per Feed (default: 32768)
	Workers   int        `yaml:"workers"`    // parallel sessions for directories (default: 4)
	Order     string     `yaml:"order"`      // RGBA, BGRA, ARGB, ABGR (default: RGBA)
	Target    string     `yaml:"target"`     // WxH, empty keeps the frame size
	SizeOnly  bool       `yaml:"size_only"`
	OutDir    string     `yaml:"out_dir"` // PNG output directory, empty disables output
	Debug     bool       `yaml:"debug"`
	HTTP      HTTPConfig `yaml:"http"`
	JPEG      JPEGConfig `yaml:"jpeg"`
	WebP      WebPConfig `yaml:"webp"`
}

// HTTPConfig contains settings for -url downloads
type HTTPConfig struct {
	TimeoutS  int    `yaml:"timeout_s"` // whole request timeout in seconds (default: 30)
	UserAgent string `yaml:"user_agent"`
}

// JPEGConfig contains JPEG engine limits
type JPEGConfig struct {
	MaxPixels int `yaml:"max_pixels"`
}

// WebPConfig contains WebP engine limits
type WebPConfig struct {
	MaxPixels int `yaml:"max_pixels"`
	MaxBytes  int `yaml:"max_bytes"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	if err := Validate(cfg); err != nil {
		panic(err)
	}

	return cfg
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// ParseSize parses a "WxH" size such as "320x240".
func ParseSize(s string) (image.Point, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return image.Point{}, fmt.Errorf("size %q: want WxH", s)
	}

	w, err := strconv.Atoi(ws)
	if err != nil {
		return image.Point{}, fmt.Errorf("size %q: bad width: %w", s, err)
	}

	h, err := strconv.Atoi(hs)
	if err != nil {
		return image.Point{}, fmt.Errorf("size %q: bad height: %w", s, err)
	}

	if w <= 0 || h <= 0 {
		return image.Point{}, fmt.Errorf("size %q: must be positive", s)
	}

	return image.Pt(w, h), nil
}
