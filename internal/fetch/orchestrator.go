// Package fetch drives the concurrent retrieval or computation of every
// object of a category and delivers the finished records to one consumer.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/DenizUgur/solarpaper/internal/catalog"
	"github.com/DenizUgur/solarpaper/internal/horizons"
	"github.com/DenizUgur/solarpaper/internal/metrics"
	"github.com/DenizUgur/solarpaper/internal/orbit"
	"github.com/DenizUgur/solarpaper/internal/params"
	"github.com/DenizUgur/solarpaper/internal/propagation"
)

// Default pool sizes.
const (
	DefaultRemoteWorkers = 2
	DefaultLocalWorkers  = 8
)

// EphemerisSource retrieves a body's trajectory from a remote service.
type EphemerisSource interface {
	Vectors(ctx context.Context, req horizons.VectorRequest) (orbit.Samples, error)
}

// Resolver supplies sampling parameters.
type Resolver interface {
	Resolve(c orbit.Category, id string) params.Params
}

// Config configures an Orchestrator.
type Config struct {
	RemoteWorkers int
	LocalWorkers  int
	ErrorDir      string // raw payloads of failed fetches; empty disables
}

// Outcome classifies the result of one job.
type Outcome int

const (
	Produced Outcome = iota
	Omitted
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Produced:
		return metrics.OutcomeProduced
	case Omitted:
		return metrics.OutcomeOmitted
	default:
		return metrics.OutcomeFailed
	}
}

// Job is one object to fetch or propagate.
type Job struct {
	Category orbit.Category
	Entry    catalog.Entry
	Params   params.Params
}

// Result is the outcome of a Job. Record is set only when Outcome is
// Produced; Err is set for Omitted and Failed.
type Result struct {
	Job      Job
	Record   *orbit.Record
	Outcome  Outcome
	Err      error
	Duration time.Duration
}

// Failure is an object that could not be produced.
type Failure struct {
	ID       string
	Category orbit.Category
	Err      error
}

// Report summarizes one category run.
type Report struct {
	Requested int
	Skipped   int
	Produced  int
	Omitted   int
	Failed    []Failure
}

// Add accumulates other into r.
func (r *Report) Add(other Report) {
	r.Requested += other.Requested
	r.Skipped += other.Skipped
	r.Produced += other.Produced
	r.Omitted += other.Omitted
	r.Failed = append(r.Failed, other.Failed...)
}

// Orchestrator schedules jobs on a worker pool sized by strategy.
type Orchestrator struct {
	cfg      Config
	source   EphemerisSource
	resolver Resolver
	logger   *slog.Logger
}

// New returns an Orchestrator.
func New(cfg Config, source EphemerisSource, resolver Resolver, logger *slog.Logger) *Orchestrator {
	if cfg.RemoteWorkers <= 0 {
		cfg.RemoteWorkers = DefaultRemoteWorkers
	}
	if cfg.LocalWorkers <= 0 {
		cfg.LocalWorkers = DefaultLocalWorkers
	}
	return &Orchestrator{cfg: cfg, source: source, resolver: resolver, logger: logger}
}

// Plan resolves parameters for every entry of cat and returns the jobs to
// run. Disabled objects and remote objects centered on the dwarf-planet
// placeholder are skipped.
func (o *Orchestrator) Plan(cat orbit.Category, entries []catalog.Entry) (jobs []Job, skipped int) {
	for _, e := range entries {
		p := o.resolver.Resolve(cat, e.ID)
		switch {
		case !p.Enabled:
			skipped++
			continue
		case !cat.IsSmallBody() && p.Center == params.DwarfPlanetCenter:
			o.logger.Debug("skipping body without ephemeris frame",
				"component", "fetch",
				"category", cat.String(),
				"spkid", e.ID,
				"center", p.Center,
			)
			skipped++
			continue
		}
		jobs = append(jobs, Job{Category: cat, Entry: e, Params: p})
	}
	for i := 0; i < skipped; i++ {
		metrics.RecordObject(cat.String(), metrics.OutcomeSkipped)
	}
	return jobs, skipped
}

func (o *Orchestrator) strategy(cat orbit.Category) (string, int) {
	if cat.IsSmallBody() {
		return "local", o.cfg.LocalWorkers
	}
	return "remote", o.cfg.RemoteWorkers
}

// Execute runs jobs of category cat and hands every result, produced or
// not, to handle on the calling goroutine. An error from handle aborts
// the run and is returned; per-object errors never are.
func (o *Orchestrator) Execute(ctx context.Context, cat orbit.Category, jobs []Job, handle func(Result) error) (Report, error) {
	name, workers := o.strategy(cat)
	rep := Report{}
	start := time.Now()

	work := func(ctx context.Context, j Job) Result {
		t := time.Now()
		res := o.runJob(ctx, j)
		res.Duration = time.Since(t)
		return res
	}

	err := runPool(ctx, workers, jobs, work, func(res Result) error {
		metrics.ObserveFetch(name, res.Duration)
		metrics.RecordObject(cat.String(), res.Outcome.String())

		switch res.Outcome {
		case Produced:
			rep.Produced++
		case Omitted:
			rep.Omitted++
			o.logger.Info("no ephemeris for window",
				"component", "fetch",
				"category", cat.String(),
				"spkid", res.Job.Entry.ID,
			)
		case Failed:
			rep.Failed = append(rep.Failed, Failure{ID: res.Job.Entry.ID, Category: cat, Err: res.Err})
			o.logger.Warn("object failed",
				"component", "fetch",
				"category", cat.String(),
				"spkid", res.Job.Entry.ID,
				"error", res.Err,
			)
			o.dumpPayload(res.Job.Entry.ID, res.Err)
		}
		return handle(res)
	})

	o.logger.Info("category fetched",
		"component", "fetch",
		"category", cat.String(),
		"strategy", name,
		"workers", workers,
		"jobs", len(jobs),
		"produced", rep.Produced,
		"omitted", rep.Omitted,
		"failed", len(rep.Failed),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return rep, err
}

// Run plans and executes every entry of cat, passing produced records to
// sink. Omissions and failures are only reported.
func (o *Orchestrator) Run(ctx context.Context, cat orbit.Category, entries []catalog.Entry, sink func(*orbit.Record) error) (Report, error) {
	jobs, skipped := o.Plan(cat, entries)
	rep, err := o.Execute(ctx, cat, jobs, func(res Result) error {
		if res.Record == nil {
			return nil
		}
		return sink(res.Record)
	})
	rep.Requested = len(entries)
	rep.Skipped = skipped
	return rep, err
}

func (o *Orchestrator) runJob(ctx context.Context, j Job) Result {
	samples, err := o.samples(ctx, j)
	if err != nil {
		if errors.Is(err, horizons.ErrInsufficientData) {
			return Result{Job: j, Outcome: Omitted, Err: err}
		}
		return Result{Job: j, Outcome: Failed, Err: err}
	}

	rec := NewRecord(j, samples)
	if err := rec.Validate(); err != nil {
		return Result{Job: j, Outcome: Failed, Err: err}
	}
	return Result{Job: j, Record: rec, Outcome: Produced}
}

func (o *Orchestrator) samples(ctx context.Context, j Job) (orbit.Samples, error) {
	p := j.Params
	if j.Category.IsSmallBody() {
		if j.Entry.Elements == nil {
			return orbit.Samples{}, fmt.Errorf("spkid %s: no orbital elements in catalog", j.Entry.ID)
		}
		return propagation.Propagate(j.Entry.ID, *j.Entry.Elements, propagation.Window{
			Start:   p.Start(),
			Stop:    p.Stop,
			Periods: p.Periods(),
		})
	}

	start := p.Start()
	if j.Entry.Start.After(start) {
		start = j.Entry.Start
	}
	return o.source.Vectors(ctx, horizons.VectorRequest{
		ID:          j.Entry.ID,
		Center:      p.Center,
		Start:       start,
		Stop:        p.Stop,
		StepMinutes: p.StepMinutes,
	})
}

// NewRecord assembles the record of job j from its trajectory.
func NewRecord(j Job, s orbit.Samples) *orbit.Record {
	r := &orbit.Record{
		ID:                   j.Entry.ID,
		Name:                 orbit.TruncateString(j.Entry.Name, orbit.NameWidth),
		Category:             j.Category,
		TrailDurationSeconds: trailSeconds(j.Params.TrailDurationSeconds),
		Samples:              s,
	}
	if j.Category.IsSmallBody() {
		r.NearEarth = j.Entry.NearEarth
		r.Hazardous = j.Entry.Hazardous
	} else {
		r.Center = j.Params.Center
	}
	return r
}

// trailSeconds truncates to whole seconds, saturating at the uint32 range.
func trailSeconds(s float64) uint32 {
	switch {
	case s <= 0:
		return 0
	case s >= math.MaxUint32:
		return math.MaxUint32
	}
	return uint32(s)
}

type payloader interface {
	Payload() []byte
}

// dumpPayload writes the raw response behind err to <ErrorDir>/<id>.log.
func (o *Orchestrator) dumpPayload(id string, err error) {
	var p payloader
	if o.cfg.ErrorDir == "" || !errors.As(err, &p) || len(p.Payload()) == 0 {
		return
	}
	if err := os.MkdirAll(o.cfg.ErrorDir, 0755); err != nil {
		o.logger.Warn("creating error dir", "component", "fetch", "error", err)
		return
	}
	path := filepath.Join(o.cfg.ErrorDir, filepath.Base(id)+".log")
	if err := os.WriteFile(path, p.Payload(), 0644); err != nil {
		o.logger.Warn("writing error payload", "component", "fetch", "spkid", id, "error", err)
		return
	}
	o.logger.Info("error payload saved", "component", "fetch", "spkid", id, "path", path)
}
