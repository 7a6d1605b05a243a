package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DenizUgur/solarpaper/internal/horizons"
	"github.com/DenizUgur/solarpaper/internal/metrics"
	"github.com/DenizUgur/solarpaper/internal/orbit"
	"github.com/DenizUgur/solarpaper/internal/sbdb"
)

// BodyLister lists the bodies of a remote category.
type BodyLister interface {
	Bodies(ctx context.Context, cat orbit.Category, r horizons.Resolver) ([]horizons.Body, error)
}

// SmallBodyLister lists the small bodies of a local category.
type SmallBodyLister interface {
	Objects(ctx context.Context, cat orbit.Category, now time.Time) ([]sbdb.Object, error)
}

// maxConcurrentLists bounds simultaneous listing requests.
const maxConcurrentLists = 4

// Loader produces a catalog for a run, reusing the on-disk cache when it
// is fresh and complete.
type Loader struct {
	cache    *Cache
	remote   BodyLister
	small    SmallBodyLister
	resolver horizons.Resolver
	now      func() time.Time
	logger   *slog.Logger
}

// NewLoader returns a Loader. cache may be nil to disable persistence.
func NewLoader(cache *Cache, remote BodyLister, small SmallBodyLister, resolver horizons.Resolver, logger *slog.Logger) *Loader {
	return &Loader{
		cache:    cache,
		remote:   remote,
		small:    small,
		resolver: resolver,
		now:      time.Now,
		logger:   logger,
	}
}

// Load returns a catalog covering every category in want. When invalidate
// is set the cache is discarded first. Categories missing from a fresh
// cache are built and merged in; a stale cache is rebuilt entirely.
func (l *Loader) Load(ctx context.Context, want []orbit.Category, invalidate bool) (*Catalog, error) {
	if l.cache != nil && invalidate {
		if err := l.cache.Invalidate(); err != nil {
			return nil, err
		}
		l.logger.Info("catalog cache invalidated", "component", "catalog", "path", l.cache.Path())
	}

	var cached *Catalog
	if l.cache != nil {
		cat, err := l.cache.Load()
		switch {
		case err == nil:
			cached = cat
		case errors.Is(err, ErrNoCache):
			metrics.IncCatalogCache(metrics.CacheMiss)
		case errors.Is(err, ErrStale):
			metrics.IncCatalogCache(metrics.CacheStale)
			l.logger.Info("catalog cache is stale", "component", "catalog", "built_at", cat.BuiltAt)
		default:
			metrics.IncCatalogCache(metrics.CacheMiss)
			l.logger.Warn("catalog cache unreadable, rebuilding", "component", "catalog", "error", err)
		}
	}

	missing := want
	if cached != nil {
		missing = cached.Missing(want)
		if len(missing) == 0 {
			metrics.IncCatalogCache(metrics.CacheHit)
			l.logger.Info("catalog loaded from cache",
				"component", "catalog",
				"objects", cached.Size(),
				"age", l.now().Sub(cached.BuiltAt).Round(time.Second).String(),
			)
			return cached, nil
		}
		metrics.IncCatalogCache(metrics.CacheMiss)
	}

	built, err := l.Build(ctx, missing)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		cached.Merge(built)
		built = cached
	}

	if l.cache != nil {
		if err := l.cache.Save(built); err != nil {
			return nil, err
		}
	}
	return built, nil
}

// Build queries the listing sources for every category in cats.
func (l *Loader) Build(ctx context.Context, cats []orbit.Category) (*Catalog, error) {
	start := l.now()
	out := New(start)
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLists)
	for _, cat := range cats {
		g.Go(func() error {
			entries, err := l.list(ctx, cat, start)
			if err != nil {
				return fmt.Errorf("building catalog for %s: %w", cat, err)
			}
			mu.Lock()
			out.Objects[cat] = entries
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	l.logger.Info("catalog built",
		"component", "catalog",
		"categories", len(cats),
		"objects", out.Size(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (l *Loader) list(ctx context.Context, cat orbit.Category, now time.Time) ([]Entry, error) {
	if cat.IsSmallBody() {
		objs, err := l.small.Objects(ctx, cat, now)
		if err != nil {
			return nil, err
		}
		entries := make([]Entry, 0, len(objs))
		for _, o := range objs {
			el := o.Elements
			entries = append(entries, Entry{
				ID:        o.ID,
				Name:      o.Name,
				NearEarth: o.NearEarth,
				Hazardous: o.Hazardous,
				Elements:  &el,
			})
		}
		return entries, nil
	}

	bodies, err := l.remote.Bodies(ctx, cat, l.resolver)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(bodies))
	for _, b := range bodies {
		entries = append(entries, Entry{ID: b.ID, Name: b.Name, Start: b.Start})
	}
	return entries, nil
}
