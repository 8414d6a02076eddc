package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Defaults mirror the constants this tool shipped with.
const (
	DefaultZoom     = 11
	DefaultTileSize = 1000
	DefaultWorkers  = 10
	DefaultCacheDir = "tile_cache"

	DefaultBackgroundURL = "https://tile.openstreetmap.org/{z}/{x}/{y}.png"
	DefaultOverlayURL    = "https://backend.wplace.live/files/s0/tiles/{x}/{y}.png"
	DefaultUserAgent     = "wplace-dl/1.0"

	DefaultRetryDelay        = 5 * time.Second
	DefaultMaxAttempts       = 8
	DefaultBackgroundTimeout = 10 * time.Second
	DefaultOverlayTimeout    = 15 * time.Second
)

// Config holds one run's fixed parameters. It is filled once at startup
// and threaded through every component; nothing reads ambient state later.
type Config struct {
	North float64
	South float64
	East  float64
	West  float64
	Zoom  int

	TileSize int
	Workers  int
	CacheDir string
	OutDir   string

	BackgroundURL string // template with {z}, {x}, {y}
	OverlayURL    string // template with {x}, {y}
	UserAgent     string

	RetryDelay time.Duration
	// MaxAttempts caps the per-request retry loop; 0 retries forever.
	MaxAttempts       int
	BackgroundTimeout time.Duration
	OverlayTimeout    time.Duration

	NoCaption bool

	// Optional integrations.
	DiscordToken     string
	DiscordChannelID string
	EventsURL        string
}

// Load builds a Config from defaults and environment overrides.
// Command-line flags are bound on top of the result by the caller.
func Load() *Config {
	return &Config{
		Zoom:     envInt("ZOOM", DefaultZoom),
		TileSize: envInt("TILE_SIZE", DefaultTileSize),
		Workers:  envInt("MAX_WORKERS", DefaultWorkers),
		CacheDir: envString("CACHE_DIR", DefaultCacheDir),
		OutDir:   os.Getenv("OUT_DIR"),

		BackgroundURL: envString("OSM_URL", DefaultBackgroundURL),
		OverlayURL:    envString("WPLACE_URL", DefaultOverlayURL),
		UserAgent:     envString("USER_AGENT", DefaultUserAgent),

		RetryDelay:        envDuration("RETRY_DELAY", DefaultRetryDelay),
		MaxAttempts:       envInt("MAX_ATTEMPTS", DefaultMaxAttempts),
		BackgroundTimeout: envDuration("OSM_TIMEOUT", DefaultBackgroundTimeout),
		OverlayTimeout:    envDuration("WPLACE_TIMEOUT", DefaultOverlayTimeout),

		DiscordToken:     os.Getenv("DISCORD_TOKEN"),
		DiscordChannelID: os.Getenv("DISCORD_CHANNEL_ID"),
		EventsURL:        os.Getenv("WPLACE_EVENTS_URL"),
	}
}

// Validate rejects parameter combinations no run can work with.
func (c *Config) Validate() error {
	if c.Zoom < 0 {
		return fmt.Errorf("zoom must be >= 0, got %d", c.Zoom)
	}
	if c.TileSize <= 0 {
		return fmt.Errorf("tile size must be > 0, got %d", c.TileSize)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be > 0, got %d", c.Workers)
	}
	if c.BackgroundURL == "" || c.OverlayURL == "" {
		return fmt.Errorf("tile URL templates must not be empty")
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("max attempts must be >= 0, got %d", c.MaxAttempts)
	}
	return nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
