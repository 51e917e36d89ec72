package config

import (
	"fmt"

	"github.com/gen2brain/streamdec"
)

// Validate checks if the configuration is valid and fills in defaults
func Validate(cfg *Config) error {
	if cfg.ChunkSize < 0 {
		return fmt.Errorf("chunk_size must be >= 0")
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = streamdec.DefaultChunkSize
	}

	if cfg.Workers < 0 {
		return fmt.Errorf("workers must be >= 0")
	}
	if cfg.Workers == 0 {
		cfg.Workers = 4
	}

	if cfg.Order == "" {
		cfg.Order = "RGBA"
	}
	if _, err := streamdec.ParseChannelOrder(cfg.Order); err != nil {
		return fmt.Errorf("order: %w", err)
	}

	if cfg.Target != "" {
		if _, err := ParseSize(cfg.Target); err != nil {
			return fmt.Errorf("target: %w", err)
		}
	}

	if cfg.HTTP.TimeoutS < 0 {
		return fmt.Errorf("http.timeout_s must be >= 0")
	}
	if cfg.HTTP.TimeoutS == 0 {
		cfg.HTTP.TimeoutS = 30
	}
	if cfg.HTTP.UserAgent == "" {
		cfg.HTTP.UserAgent = "streamdec"
	}

	if cfg.JPEG.MaxPixels < 0 || cfg.WebP.MaxPixels < 0 || cfg.WebP.MaxBytes < 0 {
		return fmt.Errorf("engine limits must be >= 0")
	}

	return nil
}
