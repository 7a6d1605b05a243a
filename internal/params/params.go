// Package params resolves per-object sampling parameters from a layered
// configuration: global default < category default < individual override.
package params

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/DenizUgur/solarpaper/internal/orbit"
)

// ValidityBuffer is added to every span and to the reference stop so a
// snapshot stays usable for a while after it is built.
const ValidityBuffer = 7 * 24 * time.Hour

// DwarfPlanetCenter is the placeholder center used for bodies orbiting a
// dwarf planet. The ephemeris service has no coordinate frame for it.
const DwarfPlanetCenter = "999"

// RootCenter is the id of the Sun, the root of every center chain.
const RootCenter = "10"

// Layer is one level of the override stack. Nil fields fall through to
// the layer below.
type Layer struct {
	Span          *time.Duration
	Stop          *time.Time
	Step          *time.Duration
	Center        *string
	Enabled       *bool
	TrailDuration *time.Duration
}

// merge returns l with every field set in over replacing its own.
func (l Layer) merge(over *Layer) Layer {
	if over == nil {
		return l
	}
	if over.Span != nil {
		l.Span = over.Span
	}
	if over.Stop != nil {
		l.Stop = over.Stop
	}
	if over.Step != nil {
		l.Step = over.Step
	}
	if over.Center != nil {
		l.Center = over.Center
	}
	if over.Enabled != nil {
		l.Enabled = over.Enabled
	}
	if over.TrailDuration != nil {
		l.TrailDuration = over.TrailDuration
	}
	return l
}

// CategoryConfig holds the optional layers of one category.
type CategoryConfig struct {
	Default    *Layer
	Individual map[string]Layer
}

// Config is the full override stack. Default must set Span, Stop, Step and
// Center.
type Config struct {
	Default Layer
	Objects map[orbit.Category]CategoryConfig
}

// Validate checks that the global default is complete.
func (c Config) Validate() error {
	switch {
	case c.Default.Span == nil:
		return fmt.Errorf("global default: span is required")
	case c.Default.Stop == nil:
		return fmt.Errorf("global default: stop is required")
	case c.Default.Step == nil:
		return fmt.Errorf("global default: step is required")
	case c.Default.Center == nil:
		return fmt.Errorf("global default: center is required")
	case *c.Default.Step < time.Minute:
		return fmt.Errorf("global default: step %v is below one minute", *c.Default.Step)
	}
	return nil
}

// Params are the resolved sampling parameters of one object.
type Params struct {
	Span                 time.Duration // history to retrieve, validity buffer included
	Stop                 time.Time
	StepMinutes          int
	Center               string
	Enabled              bool
	TrailDurationSeconds float64
}

// Start returns the first instant of the sampling window.
func (p Params) Start() time.Time { return p.Stop.Add(-p.Span) }

// Periods returns the number of samples covering the span at the step cadence.
func (p Params) Periods() int {
	if p.StepMinutes <= 0 {
		return 0
	}
	return int(p.Span.Minutes()) / p.StepMinutes
}

// finalize applies the post-resolution defaults to a merged layer.
func finalize(l Layer) Params {
	p := Params{
		Span:        *l.Span,
		Stop:        *l.Stop,
		StepMinutes: int(*l.Step / time.Minute),
		Center:      *l.Center,
		Enabled:     true,
	}
	if l.Enabled != nil {
		p.Enabled = *l.Enabled
	}
	trail := p.Span
	if l.TrailDuration != nil {
		trail = *l.TrailDuration
	}
	p.TrailDurationSeconds = trail.Seconds()
	p.Span += ValidityBuffer
	return p
}

type cacheKey struct {
	category orbit.Category
	id       string
}

// Resolver resolves and memoizes Params. Safe for concurrent use.
type Resolver struct {
	cfg   Config
	cache *lru.Cache[cacheKey, Params]
}

const memoSize = 1 << 16

// NewResolver returns a Resolver over cfg.
func NewResolver(cfg Config) (*Resolver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cache, err := lru.New[cacheKey, Params](memoSize)
	if err != nil {
		return nil, fmt.Errorf("creating params cache: %w", err)
	}
	return &Resolver{cfg: cfg, cache: cache}, nil
}

// Resolve returns the parameters of object id in category c.
func (r *Resolver) Resolve(c orbit.Category, id string) Params {
	key := cacheKey{c, id}
	if p, ok := r.cache.Get(key); ok {
		return p
	}

	l := r.cfg.Default
	if cc, ok := r.cfg.Objects[c]; ok {
		l = l.merge(cc.Default)
		if ind, ok := cc.Individual[id]; ok {
			l = l.merge(&ind)
		}
	}
	p := finalize(l)
	r.cache.Add(key, p)
	return p
}

// Stop returns the global reference stop.
func (r *Resolver) Stop() time.Time { return *r.cfg.Default.Stop }

// ValidUntil returns the instant the snapshot stays valid until.
func (r *Resolver) ValidUntil() time.Time { return r.Stop() }
