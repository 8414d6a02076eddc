package mosaic

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/bluestar-b/wplace-dl-with-osm-bg/internal/mercator"
)

// Stats summarizes one pipeline run.
type Stats struct {
	Total        int
	Rendered     int
	Failed       int
	OverlayTiles int
}

// Renderer fans the compositor out over every tile in the range with a
// bounded worker pool and assembles the results into one canvas.
type Renderer struct {
	comp     *Compositor
	rng      mercator.Range
	tileSize int
	workers  int
}

// NewRenderer configures a run over rng. workers bounds concurrency;
// values below 1 fall back to a single worker.
func NewRenderer(comp *Compositor, rng mercator.Range, tileSize, workers int) *Renderer {
	if workers < 1 {
		workers = 1
	}
	return &Renderer{comp: comp, rng: rng, tileSize: tileSize, workers: workers}
}

type outcome struct {
	coord mercator.TileCoord
	res   Result
	err   error
}

// Run renders every tile and returns the assembled canvas. Tiles complete
// in any order; each lands in its own disjoint canvas region, so ordering
// never affects the output. A failed tile is logged and its region left at
// the canvas fill; only an empty range is an error.
func (r *Renderer) Run(ctx context.Context) (*Canvas, Stats, error) {
	tiles := r.rng.Tiles()
	if len(tiles) == 0 {
		return nil, Stats{}, errors.New("tile range is empty")
	}

	canvas := NewCanvas(r.rng.Cols(), r.rng.Rows(), r.tileSize)
	results := make(chan outcome)
	sem := make(chan struct{}, r.workers)

	go func() {
		var wg sync.WaitGroup
		for _, coord := range tiles {
			wg.Add(1)
			sem <- struct{}{}
			go func(coord mercator.TileCoord) {
				defer wg.Done()
				defer func() { <-sem }()
				res, err := r.comp.Render(ctx, coord)
				results <- outcome{coord: coord, res: res, err: err}
			}(coord)
		}
		wg.Wait()
		close(results)
	}()

	// Single collector: canvas writes happen only here, one result at a
	// time, so the canvas needs no lock.
	st := Stats{Total: len(tiles)}
	done := 0
	for out := range results {
		done++
		if out.err != nil {
			st.Failed++
			log.Printf("error processing tile (%d, %d): %v", out.coord.X, out.coord.Y, out.err)
			continue
		}
		canvas.WriteTile(out.coord.X-r.rng.MinX, out.coord.Y-r.rng.MinY, out.res.Image)
		st.Rendered++
		if out.res.HasOverlay {
			st.OverlayTiles++
		}
		log.Printf("[%d/%d] finished tile (%d, %d)", done, st.Total, out.coord.X, out.coord.Y)
	}

	return canvas, st, nil
}
