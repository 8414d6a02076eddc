package mosaic

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"strconv"
	"strings"
	"time"

	xdraw "golang.org/x/image/draw"

	"github.com/bluestar-b/wplace-dl-with-osm-bg/internal/fetch"
	"github.com/bluestar-b/wplace-dl-with-osm-bg/internal/mercator"
)

const backgroundSource = "osm"

// placeholderGray fills a background tile when the store gives up on it.
var placeholderGray = color.NRGBA{220, 220, 220, 255}

// Compositor produces one finished mosaic tile: cached background,
// live overlay, alpha-composited at a fixed size.
type Compositor struct {
	client         *fetch.Client
	zoom           int
	tileSize       int
	backgroundURL  string // template with {z}, {x}, {y}
	overlayURL     string // template with {x}, {y}; the overlay grid has no zoom
	bgTimeout      time.Duration
	overlayTimeout time.Duration
}

// Result is the output of one per-tile unit of work.
type Result struct {
	Coord mercator.TileCoord
	Image *image.NRGBA
	// HasOverlay reports whether the overlay carried an alpha channel,
	// i.e. real painted content rather than an opaque filler tile.
	HasOverlay bool
}

// NewCompositor wires a compositor for one run's fixed parameters.
func NewCompositor(client *fetch.Client, zoom, tileSize int, backgroundURL, overlayURL string, bgTimeout, overlayTimeout time.Duration) *Compositor {
	if bgTimeout <= 0 {
		bgTimeout = 10 * time.Second
	}
	if overlayTimeout <= 0 {
		overlayTimeout = 15 * time.Second
	}
	return &Compositor{
		client:         client,
		zoom:           zoom,
		tileSize:       tileSize,
		backgroundURL:  backgroundURL,
		overlayURL:     overlayURL,
		bgTimeout:      bgTimeout,
		overlayTimeout: overlayTimeout,
	}
}

// Render fetches, normalizes and composites a single tile. Overlay absence
// is a normal outcome; only genuine processing failures return an error.
func (c *Compositor) Render(ctx context.Context, coord mercator.TileCoord) (Result, error) {
	bg, err := c.background(ctx, coord)
	if err != nil {
		return Result{}, err
	}

	overlay, hasAlpha, err := c.overlay(ctx, coord)
	if err != nil {
		return Result{}, err
	}
	if overlay != nil {
		// Straight alpha-over: the overlay's own alpha is the blend mask.
		draw.Draw(bg, bg.Bounds(), overlay, image.Point{}, draw.Over)
	}

	return Result{Coord: coord, Image: bg, HasOverlay: hasAlpha}, nil
}

func (c *Compositor) background(ctx context.Context, coord mercator.TileCoord) (*image.NRGBA, error) {
	url := ExpandURL(c.backgroundURL, c.zoom, coord.X, coord.Y)
	data, err := c.client.FetchCached(ctx, url, backgroundSource, c.zoom, coord.X, coord.Y, c.bgTimeout)
	if errors.Is(err, fetch.ErrRetriesExhausted) || errors.Is(err, fetch.ErrNoTile) {
		log.Printf("background unavailable for tile (%d, %d), using placeholder: %v", coord.X, coord.Y, err)
		return placeholderTile(c.tileSize), nil
	}
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode background tile (%d, %d): %w", coord.X, coord.Y, err)
	}
	return resizeTo(flattenOpaque(img), c.tileSize), nil
}

// overlay returns the overlay tile converted to NRGBA at tile size, or nil
// when the cell has no overlay data. hasAlpha reports whether the source
// image carried an alpha channel or transparency metadata.
func (c *Compositor) overlay(ctx context.Context, coord mercator.TileCoord) (overlay *image.NRGBA, hasAlpha bool, err error) {
	url := ExpandURL(c.overlayURL, c.zoom, coord.X, coord.Y)
	data, err := c.client.FetchUncached(ctx, url, c.overlayTimeout)
	if errors.Is(err, fetch.ErrNoTile) || errors.Is(err, fetch.ErrRetriesExhausted) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("decode overlay tile (%d, %d): %w", coord.X, coord.Y, err)
	}
	return resizeTo(toNRGBA(img), c.tileSize), hasAlphaChannel(img), nil
}

// ExpandURL substitutes {z}, {x} and {y} in a tile URL template.
func ExpandURL(template string, z, x, y int) string {
	r := strings.NewReplacer(
		"{z}", strconv.Itoa(z),
		"{x}", strconv.Itoa(x),
		"{y}", strconv.Itoa(y),
	)
	return r.Replace(template)
}

func placeholderTile(size int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: placeholderGray}, image.Point{}, draw.Src)
	return img
}

func toNRGBA(src image.Image) *image.NRGBA {
	if img, ok := src.(*image.NRGBA); ok {
		return img
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// flattenOpaque converts src to NRGBA and drops any alpha channel. The
// background layer is always opaque; translucency belongs to the overlay.
func flattenOpaque(src image.Image) *image.NRGBA {
	dst := toNRGBA(src)
	if dst == src {
		clone := image.NewNRGBA(dst.Bounds())
		copy(clone.Pix, dst.Pix)
		dst = clone
	}
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xFF
	}
	return dst
}

// resizeTo scales src to size x size with a Catmull-Rom filter when the
// dimensions differ.
func resizeTo(src *image.NRGBA, size int) *image.NRGBA {
	if src.Bounds().Dx() == size && src.Bounds().Dy() == size {
		return src
	}
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

// hasAlphaChannel reports whether img's source format carries an alpha
// channel. PNG truecolor and grayscale without alpha decode to RGBA/Gray;
// palette images count only when the palette holds a transparent entry.
func hasAlphaChannel(img image.Image) bool {
	switch p := img.(type) {
	case *image.NRGBA:
		return true
	case *image.NRGBA64:
		return true
	case *image.Paletted:
		for _, c := range p.Palette {
			if _, _, _, a := c.RGBA(); a < 0xffff {
				return true
			}
		}
	}
	return false
}
