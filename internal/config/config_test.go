package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Zoom != DefaultZoom {
		t.Errorf("Zoom = %d, want %d", cfg.Zoom, DefaultZoom)
	}
	if cfg.TileSize != DefaultTileSize {
		t.Errorf("TileSize = %d, want %d", cfg.TileSize, DefaultTileSize)
	}
	if cfg.RetryDelay != DefaultRetryDelay {
		t.Errorf("RetryDelay = %v, want %v", cfg.RetryDelay, DefaultRetryDelay)
	}
	if cfg.BackgroundURL != DefaultBackgroundURL {
		t.Errorf("BackgroundURL = %q, want default", cfg.BackgroundURL)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ZOOM", "7")
	t.Setenv("TILE_SIZE", "256")
	t.Setenv("RETRY_DELAY", "250ms")
	t.Setenv("OSM_URL", "http://localhost/{z}/{x}/{y}.png")

	cfg := Load()
	if cfg.Zoom != 7 {
		t.Errorf("Zoom = %d, want 7", cfg.Zoom)
	}
	if cfg.TileSize != 256 {
		t.Errorf("TileSize = %d, want 256", cfg.TileSize)
	}
	if cfg.RetryDelay != 250*time.Millisecond {
		t.Errorf("RetryDelay = %v, want 250ms", cfg.RetryDelay)
	}
	if cfg.BackgroundURL != "http://localhost/{z}/{x}/{y}.png" {
		t.Errorf("BackgroundURL = %q", cfg.BackgroundURL)
	}
}

func TestLoadIgnoresMalformedEnv(t *testing.T) {
	t.Setenv("ZOOM", "not-a-number")
	t.Setenv("RETRY_DELAY", "soon")

	cfg := Load()
	if cfg.Zoom != DefaultZoom {
		t.Errorf("malformed ZOOM should fall back, got %d", cfg.Zoom)
	}
	if cfg.RetryDelay != DefaultRetryDelay {
		t.Errorf("malformed RETRY_DELAY should fall back, got %v", cfg.RetryDelay)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"negative zoom", func(c *Config) { c.Zoom = -1 }, true},
		{"zero tile size", func(c *Config) { c.TileSize = 0 }, true},
		{"zero workers", func(c *Config) { c.Workers = 0 }, true},
		{"empty overlay url", func(c *Config) { c.OverlayURL = "" }, true},
		{"unbounded retries allowed", func(c *Config) { c.MaxAttempts = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}
