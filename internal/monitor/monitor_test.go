package monitor

import (
	"testing"

	"github.com/bluestar-b/wplace-dl-with-osm-bg/internal/mercator"
)

func TestObserveCountsOnlyPaintEventsInRange(t *testing.T) {
	rng := mercator.Range{MinX: 10, MaxX: 12, MinY: 20, MaxY: 22, Zoom: 11}
	m := New("ws://unused", rng)

	events := []struct {
		name string
		ev   PaintEvent
	}{
		{"inside", PaintEvent{Type: "paint", TileX: 11, TileY: 21, Count: 3}},
		{"outside", PaintEvent{Type: "paint", TileX: 5, TileY: 5, Count: 2}},
		{"edge min", PaintEvent{Type: "paint", TileX: 10, TileY: 20}},
		{"edge max", PaintEvent{Type: "paint", TileX: 12, TileY: 22}},
		{"wrong type", PaintEvent{Type: "ping", TileX: 11, TileY: 21, Count: 100}},
	}
	for _, e := range events {
		m.Observe(e.ev)
	}

	inRange, total := m.Stop()
	// inside(3) + two edge events defaulting to 1 each.
	if inRange != 5 {
		t.Errorf("inRange = %d, want 5", inRange)
	}
	// all paint events: 3 + 2 + 1 + 1.
	if total != 7 {
		t.Errorf("total = %d, want 7", total)
	}
}

func TestObserveDefaultsZeroCountToOne(t *testing.T) {
	rng := mercator.Range{MinX: 0, MaxX: 1, MinY: 0, MaxY: 1, Zoom: 1}
	m := New("ws://unused", rng)
	m.Observe(PaintEvent{Type: "paint", TileX: 0, TileY: 0})
	if inRange, total := m.Stop(); inRange != 1 || total != 1 {
		t.Fatalf("got inRange=%d total=%d, want 1/1", inRange, total)
	}
}
