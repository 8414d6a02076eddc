package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/bluestar-b/wplace-dl-with-osm-bg/internal/config"
	"github.com/bluestar-b/wplace-dl-with-osm-bg/internal/fetch"
	"github.com/bluestar-b/wplace-dl-with-osm-bg/internal/mercator"
	"github.com/bluestar-b/wplace-dl-with-osm-bg/internal/monitor"
	"github.com/bluestar-b/wplace-dl-with-osm-bg/internal/mosaic"
	"github.com/bluestar-b/wplace-dl-with-osm-bg/internal/notify"
	"github.com/bluestar-b/wplace-dl-with-osm-bg/internal/tilecache"
)

const attribution = "Map data © OpenStreetMap contributors | canvas © wplace.live"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	var bounds mercator.Bounds
	flag.Float64Var(&bounds.North, "north", 13.870763044489482, "north latitude of the bounding box")
	flag.Float64Var(&bounds.South, "south", 13.775688622735316, "south latitude of the bounding box")
	flag.Float64Var(&bounds.West, "west", 99.06565396552733, "west longitude of the bounding box")
	flag.Float64Var(&bounds.East, "east", 102.76180630927732, "east longitude of the bounding box")
	flag.IntVar(&cfg.Zoom, "zoom", cfg.Zoom, "tile zoom level")
	flag.IntVar(&cfg.TileSize, "tile-size", cfg.TileSize, "output size of one tile in pixels")
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "number of concurrent tile workers")
	flag.StringVar(&cfg.CacheDir, "cache-dir", cfg.CacheDir, "directory for cached background tiles")
	flag.StringVar(&cfg.OutDir, "out-dir", cfg.OutDir, "directory for the output image")
	flag.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "retry attempts per tile request (0 = retry forever)")
	flag.BoolVar(&cfg.NoCaption, "no-caption", cfg.NoCaption, "skip the attribution caption")
	flag.Parse()

	target := flag.Arg(0)
	if target == "" {
		log.Fatal("usage: wplace-dl [flags] <target-name>")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	rng := mercator.RangeFor(bounds, cfg.Zoom)
	if rng.Count() == 0 {
		log.Fatal("no tiles found!")
	}
	log.Printf("total tiles to process: %d", rng.Count())
	log.Printf("final image: %d x %d pixels", rng.Cols()*cfg.TileSize, rng.Rows()*cfg.TileSize)

	client := fetch.NewClient(fetch.Options{
		RetryDelay:  cfg.RetryDelay,
		MaxAttempts: cfg.MaxAttempts,
		UserAgent:   cfg.UserAgent,
		Limiter:     fetch.NewRateLimiter(cfg.Workers),
		Store:       tilecache.New(cfg.CacheDir),
	})
	comp := mosaic.NewCompositor(client, cfg.Zoom, cfg.TileSize,
		cfg.BackgroundURL, cfg.OverlayURL,
		cfg.BackgroundTimeout, cfg.OverlayTimeout)

	var mon *monitor.Monitor
	if cfg.EventsURL != "" {
		mon = monitor.New(cfg.EventsURL, rng)
		if err := mon.Start(); err != nil {
			log.Printf("live paint monitor unavailable: %v", err)
			mon = nil
		}
	}

	start := time.Now()
	canvas, stats, err := mosaic.NewRenderer(comp, rng, cfg.TileSize, cfg.Workers).Run(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	if !cfg.NoCaption {
		canvas.Caption(attribution)
	}

	output := fmt.Sprintf("%s_%s.png", target, time.Now().Format("2006-01-02_15-04-05"))
	if cfg.OutDir != "" {
		output = filepath.Join(cfg.OutDir, output)
	}
	if err := canvas.Save(output); err != nil {
		log.Fatal(err)
	}

	log.Printf("done: %d/%d tiles had canvas content.", stats.OverlayTiles, stats.Total)
	if stats.Failed > 0 {
		log.Printf("%d tiles failed and were left at the background fill", stats.Failed)
	}
	if mon != nil {
		inRange, total := mon.Stop()
		log.Printf("live paint events during render: %d in range / %d total", inRange, total)
	}
	log.Printf("saved as %s", output)

	if cfg.DiscordToken != "" && cfg.DiscordChannelID != "" {
		if err := notify.SendMosaic(cfg.DiscordToken, cfg.DiscordChannelID, output, target, stats, time.Since(start)); err != nil {
			log.Printf("discord upload failed: %v", err)
		} else {
			log.Printf("mosaic posted to discord channel %s", cfg.DiscordChannelID)
		}
	}
}
