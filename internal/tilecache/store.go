package tilecache

import (
	"os"
	"path/filepath"
	"strconv"
)

// Store is an on-disk tile store keyed by (source, zoom, x, y).
// A file's existence is the cache-hit signal; once present, its bytes are
// trusted unconditionally and never revalidated against the remote.
type Store struct {
	root string
}

// New returns a store rooted at dir. The directory is created lazily on
// the first Put.
func New(dir string) *Store {
	return &Store{root: dir}
}

// Path returns the cache file path for a tile key. The layout is
// <root>/<zoom>/<source>/<x>/<y>.png, stable for the lifetime of the
// cache directory.
func (s *Store) Path(source string, zoom, x, y int) string {
	return filepath.Join(s.root,
		strconv.Itoa(zoom), source, strconv.Itoa(x), strconv.Itoa(y)+".png")
}

// Get returns the cached bytes for a tile key, or ok=false on a miss.
func (s *Store) Get(source string, zoom, x, y int) ([]byte, bool) {
	data, err := os.ReadFile(s.Path(source, zoom, x, y))
	if err != nil {
		return nil, false
	}
	return data, true
}

// Put persists raw tile bytes, creating parent directories as needed.
// Concurrent puts for the same key are a benign race: both writers
// produce the same bytes and the atomic rename keeps readers consistent.
func (s *Store) Put(source string, zoom, x, y int, data []byte) error {
	return WriteFileAtomic(s.Path(source, zoom, x, y), data)
}
