package mercator

import "math"

// TileCoord addresses one tile of the 2^zoom x 2^zoom grid at a given zoom.
type TileCoord struct {
	X int
	Y int
}

// Bounds is a geographic bounding box in degrees.
type Bounds struct {
	North float64
	South float64
	East  float64
	West  float64
}

// Normalize returns bounds with North >= South and East >= West.
// Axes given in reverse order are swapped, not rejected.
func (b Bounds) Normalize() Bounds {
	if b.South > b.North {
		b.North, b.South = b.South, b.North
	}
	if b.West > b.East {
		b.East, b.West = b.West, b.East
	}
	return b
}

// Project converts latitude/longitude to fractional tile coordinates
// using the standard Web-Mercator tile projection.
func Project(lat, lon float64, zoom int) (x, y float64) {
	n := math.Exp2(float64(zoom))
	latRad := lat * math.Pi / 180
	x = (lon + 180) / 360 * n
	y = (1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n
	return x, y
}

// Range is an inclusive rectangle of tile coordinates.
type Range struct {
	MinX int
	MaxX int
	MinY int
	MaxY int
	Zoom int
}

// RangeFor computes the inclusive tile range covering bounds at zoom.
// Both bounds are clamped independently into [0, 2^zoom-1], so a bbox
// exceeding world extent still yields a valid range.
func RangeFor(b Bounds, zoom int) Range {
	b = b.Normalize()
	corners := [4][2]float64{
		{b.North, b.West}, // NW
		{b.North, b.East}, // NE
		{b.South, b.West}, // SW
		{b.South, b.East}, // SE
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range corners {
		x, y := Project(c[0], c[1], zoom)
		minX = math.Min(minX, x)
		maxX = math.Max(maxX, x)
		minY = math.Min(minY, y)
		maxY = math.Max(maxY, y)
	}

	last := int(math.Exp2(float64(zoom))) - 1
	return Range{
		MinX: clamp(int(math.Floor(minX)), 0, last),
		MaxX: clamp(int(math.Ceil(maxX)), 0, last),
		MinY: clamp(int(math.Floor(minY)), 0, last),
		MaxY: clamp(int(math.Ceil(maxY)), 0, last),
		Zoom: zoom,
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Cols returns the number of tile columns in the range.
func (r Range) Cols() int { return r.MaxX - r.MinX + 1 }

// Rows returns the number of tile rows in the range.
func (r Range) Rows() int { return r.MaxY - r.MinY + 1 }

// Count returns the total number of tiles in the range.
func (r Range) Count() int {
	if r.Cols() <= 0 || r.Rows() <= 0 {
		return 0
	}
	return r.Cols() * r.Rows()
}

// Contains reports whether c lies inside the range.
func (r Range) Contains(c TileCoord) bool {
	return c.X >= r.MinX && c.X <= r.MaxX && c.Y >= r.MinY && c.Y <= r.MaxY
}

// Tiles enumerates every tile coordinate in the range, column-major.
func (r Range) Tiles() []TileCoord {
	if r.Count() <= 0 {
		return nil
	}
	tiles := make([]TileCoord, 0, r.Count())
	for x := r.MinX; x <= r.MaxX; x++ {
		for y := r.MinY; y <= r.MaxY; y++ {
			tiles = append(tiles, TileCoord{X: x, Y: y})
		}
	}
	return tiles
}
