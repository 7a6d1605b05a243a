package catalog

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/DenizUgur/solarpaper/internal/orbit"
)

// DefaultTTL is how long a cached catalog is reused.
const DefaultTTL = 7 * 24 * time.Hour

// FileName is the cache file name inside the cache directory.
const FileName = "objects.gob.gz"

var (
	// ErrNoCache is returned when no cache file exists.
	ErrNoCache = errors.New("no catalog cache")
	// ErrStale is returned when the cache is older than its TTL.
	ErrStale = errors.New("catalog cache is stale")
)

// Cache persists a Catalog on disk as gzip-compressed gob.
type Cache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// NewCache creates a Cache in dir. ttl <= 0 selects DefaultTTL.
func NewCache(dir string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{dir: dir, ttl: ttl, now: time.Now}
}

// Path returns the cache file path.
func (c *Cache) Path() string { return filepath.Join(c.dir, FileName) }

// Load reads the cached catalog. It returns ErrNoCache when absent and
// ErrStale (with the decoded catalog) when older than the TTL.
func (c *Cache) Load() (*Catalog, error) {
	f, err := os.Open(c.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCache
		}
		return nil, fmt.Errorf("opening catalog cache: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("reading catalog cache: %w", err)
	}
	defer zr.Close()

	var cat Catalog
	if err := gob.NewDecoder(zr).Decode(&cat); err != nil {
		return nil, fmt.Errorf("decoding catalog cache: %w", err)
	}
	if cat.Objects == nil {
		cat.Objects = make(map[orbit.Category][]Entry)
	}

	builtAt := cat.BuiltAt
	if builtAt.IsZero() {
		if st, err := f.Stat(); err == nil {
			builtAt = st.ModTime()
		}
	}
	if c.now().Sub(builtAt) > c.ttl {
		return &cat, ErrStale
	}
	return &cat, nil
}

// Age returns how old the cached catalog is, or -1 if there is none.
func (c *Cache) Age() time.Duration {
	cat, err := c.Load()
	if cat == nil || (err != nil && !errors.Is(err, ErrStale)) {
		return -1
	}
	return c.now().Sub(cat.BuiltAt)
}

// Save writes cat atomically, replacing any previous cache.
func (c *Cache) Save(cat *Catalog) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, FileName+".*")
	if err != nil {
		return fmt.Errorf("creating catalog cache: %w", err)
	}
	defer os.Remove(tmp.Name())

	zw := gzip.NewWriter(tmp)
	if err := gob.NewEncoder(zw).Encode(cat); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding catalog cache: %w", err)
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("compressing catalog cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing catalog cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.Path()); err != nil {
		return fmt.Errorf("replacing catalog cache: %w", err)
	}
	return nil
}

// Invalidate removes the cache file. A missing file is not an error.
func (c *Cache) Invalidate() error {
	if err := os.Remove(c.Path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("invalidating catalog cache: %w", err)
	}
	return nil
}
