package monitor

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bluestar-b/wplace-dl-with-osm-bg/internal/mercator"
)

const readTimeout = 60 * time.Second

var debugLogging = os.Getenv("WPLACE_DEBUG_LOG") == "1"

func debugf(format string, args ...interface{}) {
	if !debugLogging {
		return
	}
	log.Printf(format, args...)
}

// PaintEvent is one live paint notification from the overlay event stream.
type PaintEvent struct {
	Type  string `json:"type"`
	TileX int    `json:"tile_x"`
	TileY int    `json:"tile_y"`
	Count int    `json:"count"`
}

// Monitor listens to the overlay service's event stream while a render
// runs and counts paint events that land inside the rendered tile range.
// It is strictly best-effort: connection loss or malformed frames never
// affect the render.
type Monitor struct {
	url    string
	rng    mercator.Range
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	conn    *websocket.Conn
	inRange int
	total   int
}

// New creates a monitor for the event stream at url, scoped to rng.
func New(url string, rng mercator.Range) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{url: url, rng: rng, ctx: ctx, cancel: cancel}
}

// Start connects and begins consuming events in the background.
func (m *Monitor) Start() error {
	conn, _, err := websocket.DefaultDialer.Dial(m.url, nil)
	if err != nil {
		return err
	}
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()

	log.Printf("live paint monitor connected: %s", m.url)
	go m.receiveLoop(conn)
	return nil
}

func (m *Monitor) receiveLoop(conn *websocket.Conn) {
	defer conn.Close()
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if m.ctx.Err() == nil {
				debugf("live paint monitor read error: %v", err)
			}
			return
		}

		var ev PaintEvent
		if err := json.Unmarshal(message, &ev); err != nil {
			debugf("live paint monitor: dropping malformed frame: %v", err)
			continue
		}
		m.Observe(ev)
	}
}

// Observe records one event against the counters.
func (m *Monitor) Observe(ev PaintEvent) {
	if ev.Type != "paint" {
		return
	}
	count := ev.Count
	if count <= 0 {
		count = 1
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.total += count
	if m.rng.Contains(mercator.TileCoord{X: ev.TileX, Y: ev.TileY}) {
		m.inRange += count
	}
}

// Stop closes the connection and returns (events in range, events total).
func (m *Monitor) Stop() (int, int) {
	m.cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	return m.inRange, m.total
}
