package mosaic

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/bluestar-b/wplace-dl-with-osm-bg/internal/tilecache"
)

const captionFontSize = 16

// Canvas is the shared output bitmap. Each tile occupies a disjoint region,
// and all writes come from the pipeline's single sequential collector, so
// no locking is needed.
type Canvas struct {
	img      *image.NRGBA
	tileSize int
}

// NewCanvas allocates a cols x rows tile grid filled with opaque black.
func NewCanvas(cols, rows, tileSize int) *Canvas {
	img := image.NewNRGBA(image.Rect(0, 0, cols*tileSize, rows*tileSize))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.NRGBA{0, 0, 0, 255}}, image.Point{}, draw.Src)
	return &Canvas{img: img, tileSize: tileSize}
}

// WriteTile blits a finished tile into the region at grid cell (relX, relY).
func (c *Canvas) WriteTile(relX, relY int, tile image.Image) {
	dp := image.Pt(relX*c.tileSize, relY*c.tileSize)
	draw.Draw(c.img, tile.Bounds().Add(dp), tile, tile.Bounds().Min, draw.Src)
}

// Image returns the canvas bitmap.
func (c *Canvas) Image() *image.NRGBA { return c.img }

// Caption draws an attribution line in the bottom-left corner.
func (c *Canvas) Caption(text string) {
	face := captionFace()
	descent := face.Metrics().Descent.Ceil()
	x := 8
	y := c.img.Bounds().Dy() - descent - 6

	// White text over a dark outline so it stays readable on any map.
	outline := color.NRGBA{0, 0, 0, 255}
	for _, dx := range []int{-1, 0, 1} {
		for _, dy := range []int{-1, 0, 1} {
			if dx == 0 && dy == 0 {
				continue
			}
			drawString(c.img, text, x+dx, y+dy, outline, face)
		}
	}
	drawString(c.img, text, x, y, color.NRGBA{255, 255, 255, 255}, face)
}

// Save encodes the canvas as PNG and writes it atomically.
func (c *Canvas) Save(path string) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, c.img); err != nil {
		return err
	}
	return tilecache.WriteFileAtomic(path, buf.Bytes())
}

func drawString(img draw.Image, text string, x, y int, col color.NRGBA, face font.Face) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

var (
	captionOnce sync.Once
	captionFont font.Face
)

func captionFace() font.Face {
	captionOnce.Do(func() {
		parsed, err := opentype.Parse(goregular.TTF)
		if err != nil {
			return
		}
		face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
			Size:    captionFontSize,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return
		}
		captionFont = face
	})
	if captionFont != nil {
		return captionFont
	}
	return basicfont.Face7x13
}
