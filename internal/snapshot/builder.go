// Package snapshot builds the trajectory snapshot file: it loads the
// catalog, drives the fetch of every requested category, normalizes
// grouped records and streams them into a gzip-compressed output.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/DenizUgur/solarpaper/internal/catalog"
	"github.com/DenizUgur/solarpaper/internal/fetch"
	"github.com/DenizUgur/solarpaper/internal/metrics"
	"github.com/DenizUgur/solarpaper/internal/orbit"
	"github.com/DenizUgur/solarpaper/internal/ratio"
	"github.com/DenizUgur/solarpaper/internal/transform"
)

// FileName is the snapshot file name inside the cache directory.
const FileName = "orbits.sso.gz"

var (
	// ErrConfig reports an invalid build request. Nothing is fetched.
	ErrConfig = errors.New("invalid snapshot request")
	// ErrBusy is returned when a build is already running.
	ErrBusy = errors.New("snapshot build already running")
)

// CatalogLoader supplies the object catalog of a run.
type CatalogLoader interface {
	Load(ctx context.Context, want []orbit.Category, invalidate bool) (*catalog.Catalog, error)
}

// Fetcher plans and executes the jobs of one category.
type Fetcher interface {
	Plan(cat orbit.Category, entries []catalog.Entry) ([]fetch.Job, int)
	Execute(ctx context.Context, cat orbit.Category, jobs []fetch.Job, handle func(fetch.Result) error) (fetch.Report, error)
}

// Publisher uploads a finished snapshot.
type Publisher interface {
	Publish(ctx context.Context, path, runID string) error
}

// Config configures a Builder.
type Config struct {
	Dir        string    // output directory
	ValidUntil time.Time // written to the header
}

// Summary is the outcome of a finished build.
type Summary struct {
	RunID      string          `json:"run_id"`
	Path       string          `json:"path"`
	Bytes      int64           `json:"bytes"`
	ValidUntil time.Time       `json:"valid_until"`
	Requested  int             `json:"requested"`
	Skipped    int             `json:"skipped"`
	Produced   int             `json:"produced"`
	Omitted    int             `json:"omitted"`
	Failed     []fetch.Failure `json:"-"`
	Published  bool            `json:"published"`
	Duration   time.Duration   `json:"duration_ns"`
}

// Builder assembles snapshots. One build runs at a time; progress may be
// observed concurrently.
type Builder struct {
	cfg        Config
	catalog    CatalogLoader
	fetcher    Fetcher
	normalizer *ratio.Normalizer
	publisher  Publisher
	logger     *slog.Logger
	progress   tracker
	running    atomic.Bool
}

// NewBuilder returns a Builder. publisher may be nil.
func NewBuilder(cfg Config, loader CatalogLoader, fetcher Fetcher, normalizer *ratio.Normalizer, publisher Publisher, logger *slog.Logger) *Builder {
	b := &Builder{
		cfg:        cfg,
		catalog:    loader,
		fetcher:    fetcher,
		normalizer: normalizer,
		publisher:  publisher,
		logger:     logger,
	}
	b.progress.now = time.Now
	return b
}

// Path returns the output file path.
func (b *Builder) Path() string { return filepath.Join(b.cfg.Dir, FileName) }

// State returns the current lifecycle phase.
func (b *Builder) State() State { return b.progress.state() }

// Progress returns a copy of the current progress.
func (b *Builder) Progress() Progress { return b.progress.snapshot() }

// LastSummary returns the summary of the most recent successful build.
func (b *Builder) LastSummary() (Summary, bool) { return b.progress.summary() }

// ValidateRequest checks a category list: it must be non-empty, free of
// duplicates, and include sun_and_planets whenever a planetary satellite
// category is requested.
func ValidateRequest(cats []orbit.Category) error {
	if len(cats) == 0 {
		return fmt.Errorf("%w: no categories requested", ErrConfig)
	}
	seen := make(map[orbit.Category]bool, len(cats))
	var satellite orbit.Category = -1
	for _, c := range cats {
		if !c.Valid() {
			return fmt.Errorf("%w: unknown category %d", ErrConfig, c)
		}
		if seen[c] {
			return fmt.Errorf("%w: %s requested twice", ErrConfig, c)
		}
		seen[c] = true
		if c.IsSatellite() && satellite < 0 {
			satellite = c
		}
	}
	if satellite >= 0 && !seen[orbit.SunAndPlanets] {
		return fmt.Errorf("%w: %s requires %s", ErrConfig, satellite, orbit.SunAndPlanets)
	}
	return nil
}

// Run builds a snapshot of cats, in the given order. Per-object failures
// are reported in the summary; catalog, configuration and output errors
// abort the build.
func (b *Builder) Run(ctx context.Context, cats []orbit.Category, invalidate bool) (Summary, error) {
	if err := ValidateRequest(cats); err != nil {
		return Summary{}, err
	}
	if !b.running.CompareAndSwap(false, true) {
		return Summary{}, ErrBusy
	}
	defer b.running.Store(false)

	start := time.Now()
	sum := Summary{RunID: uuid.NewString(), Path: b.Path(), ValidUntil: b.cfg.ValidUntil}
	b.progress.update(func(p *Progress) {
		*p = Progress{RunID: sum.RunID, CategoriesTotal: len(cats), StartedAt: start}
	})
	b.progress.set(Uninitialized)
	logger := b.logger.With("component", "snapshot", "run_id", sum.RunID)

	fail := func(err error) (Summary, error) {
		b.progress.update(func(p *Progress) { p.Error = err.Error() })
		b.progress.set(Failed)
		logger.Error("snapshot build failed", "error", err)
		return sum, err
	}

	cat, err := b.catalog.Load(ctx, cats, invalidate)
	if err != nil {
		return fail(fmt.Errorf("loading catalog: %w", err))
	}
	b.progress.set(CatalogReady)
	logger.Info("catalog ready", "objects", cat.Size(), "categories", len(cats))

	out, err := b.create()
	if err != nil {
		return fail(err)
	}
	defer out.abort()

	for i, c := range cats {
		b.progress.update(func(p *Progress) { p.Category = c.String() })
		rep, err := b.runCategory(ctx, c, cat.Entries(c), out)
		sum.Requested += rep.Requested
		sum.Skipped += rep.Skipped
		sum.Produced += rep.Produced
		sum.Omitted += rep.Omitted
		sum.Failed = append(sum.Failed, rep.Failed...)
		b.progress.update(func(p *Progress) {
			p.CategoriesDone = i + 1
			p.Skipped += rep.Skipped
			p.Omitted += rep.Omitted
			p.Failed += len(rep.Failed)
		})
		if err != nil {
			return fail(fmt.Errorf("category %s: %w", c, err))
		}
	}

	n, err := out.commit(b.Path())
	if err != nil {
		return fail(err)
	}
	sum.Bytes = n
	metrics.SetSnapshotBytes(n)

	if b.publisher != nil {
		if err := b.publisher.Publish(ctx, b.Path(), sum.RunID); err != nil {
			logger.Warn("publishing snapshot", "error", err)
		} else {
			sum.Published = true
		}
	}

	sum.Duration = time.Since(start)
	b.progress.finish(&sum)
	b.progress.update(func(p *Progress) { p.Category = "" })
	b.progress.set(Done)
	metrics.MarkSuccess(time.Now())

	logger.Info("snapshot written",
		"path", sum.Path,
		"size", humanize.Bytes(uint64(n)),
		"requested", sum.Requested,
		"produced", sum.Produced,
		"omitted", sum.Omitted,
		"skipped", sum.Skipped,
		"failed", len(sum.Failed),
		"duration_ms", sum.Duration.Milliseconds(),
	)
	return sum, nil
}

// runCategory fetches one category and writes its records. Categories that
// carry a center are normalized per center group as soon as every member of
// the group is settled; small bodies are written as they arrive.
func (b *Builder) runCategory(ctx context.Context, c orbit.Category, entries []catalog.Entry, out *output) (fetch.Report, error) {
	jobs, skipped := b.fetcher.Plan(c, entries)
	jobs = dedupe(jobs)
	b.progress.set(Fetching)

	var barrier *ratio.Barrier
	if !c.IsSmallBody() {
		barrier = ratio.NewBarrier()
		for _, j := range jobs {
			barrier.Expect(j.Entry.ID, j.Params.Center)
		}
	}

	handle := func(res fetch.Result) error {
		if barrier == nil {
			if res.Record == nil {
				return nil
			}
			return b.write(out, res.Record)
		}

		var (
			group []*orbit.Record
			ready bool
			err   error
		)
		if res.Record != nil {
			group, ready, err = barrier.Add(res.Record)
			if err != nil {
				return err
			}
		} else {
			group, ready = barrier.Drop(res.Job.Entry.ID)
		}
		if !ready {
			if barrier.Pending() > 0 {
				b.progress.set(Buffering)
			}
			return nil
		}
		return b.emit(out, group)
	}

	rep, err := b.fetcher.Execute(ctx, c, jobs, handle)
	rep.Requested = len(entries)
	rep.Skipped = skipped
	if err != nil {
		return rep, err
	}

	if barrier != nil {
		for _, group := range barrier.Flush() {
			if err := b.emit(out, group); err != nil {
				return rep, err
			}
		}
	}
	return rep, nil
}

// emit normalizes and writes one complete group.
func (b *Builder) emit(out *output, group []*orbit.Record) error {
	b.progress.set(Normalizing)
	b.normalizer.NormalizeGroup(group)
	b.progress.set(Flushing)
	for _, r := range group {
		if err := b.write(out, r); err != nil {
			return err
		}
	}
	b.progress.set(Fetching)
	return nil
}

func (b *Builder) write(out *output, r *orbit.Record) error {
	if err := out.enc.Encode(r); err != nil {
		return err
	}
	b.progress.update(func(p *Progress) { p.Produced++ })
	return nil
}

// dedupe drops repeated ids, keeping the first.
func dedupe(jobs []fetch.Job) []fetch.Job {
	seen := make(map[string]bool, len(jobs))
	out := jobs[:0]
	for _, j := range jobs {
		if seen[j.Entry.ID] {
			continue
		}
		seen[j.Entry.ID] = true
		out = append(out, j)
	}
	return out
}

// output is a snapshot being written to a temporary file.
type output struct {
	f    *os.File
	zw   *gzip.Writer
	enc  *orbit.Encoder
	done bool
}

func (b *Builder) create() (*output, error) {
	if err := os.MkdirAll(b.cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}
	f, err := os.CreateTemp(b.cfg.Dir, FileName+".*")
	if err != nil {
		return nil, fmt.Errorf("creating snapshot: %w", err)
	}
	zw := gzip.NewWriter(f)
	if err := orbit.WriteHeader(zw, transform.CivilJD(b.cfg.ValidUntil)); err != nil {
		zw.Close()
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("writing snapshot header: %w", err)
	}
	return &output{f: f, zw: zw, enc: orbit.NewEncoder(zw)}, nil
}

// commit finishes the stream and moves it to path, returning its size.
func (o *output) commit(path string) (int64, error) {
	if err := o.zw.Close(); err != nil {
		return 0, fmt.Errorf("compressing snapshot: %w", err)
	}
	st, err := o.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat snapshot: %w", err)
	}
	if err := o.f.Close(); err != nil {
		return 0, fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(o.f.Name(), path); err != nil {
		os.Remove(o.f.Name())
		return 0, fmt.Errorf("replacing snapshot: %w", err)
	}
	o.done = true
	return st.Size(), nil
}

// abort discards an uncommitted output.
func (o *output) abort() {
	if o.done {
		return
	}
	o.zw.Close()
	o.f.Close()
	os.Remove(o.f.Name())
}
