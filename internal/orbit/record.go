package orbit

import (
	"errors"
	"fmt"
	"math"
)

// Field widths of the fixed-size string columns.
const (
	IDWidth     = 8
	NameWidth   = 32
	CenterWidth = 8
)

// ErrInvalidRecord is returned when a record cannot be represented in the
// snapshot format.
var ErrInvalidRecord = errors.New("invalid record")

// Samples is a trajectory: parallel series of Julian dates (TDB) and
// ecliptic X/Y positions in AU.
type Samples struct {
	JD []float64
	X  []float64
	Y  []float64
}

// Len returns the number of samples.
func (s Samples) Len() int { return len(s.JD) }

// Record is one body's trajectory and display metadata.
//
// Which optional fields are meaningful is decided by Category.Variant():
// Center for every variant except small bodies, DistanceRatio for major
// bodies and satellites, NearEarth/Hazardous for small bodies only.
type Record struct {
	ID       string
	Name     string
	Category Category

	Center        string
	DistanceRatio *float32

	NearEarth bool
	Hazardous bool

	// RadiusRatio is nil when no physical radius is known for the body.
	RadiusRatio *float32

	TrailDurationSeconds uint32
	Samples              Samples
}

// Variant is shorthand for r.Category.Variant().
func (r *Record) Variant() Variant { return r.Category.Variant() }

// Validate checks that r can be encoded without loss.
func (r *Record) Validate() error {
	if !r.Category.Valid() {
		return fmt.Errorf("%w: unknown category %d", ErrInvalidRecord, r.Category)
	}
	if len(r.ID) > IDWidth {
		return fmt.Errorf("%w: id %q exceeds %d bytes", ErrInvalidRecord, r.ID, IDWidth)
	}
	if len(r.Name) > NameWidth {
		return fmt.Errorf("%w: name %q exceeds %d bytes", ErrInvalidRecord, r.Name, NameWidth)
	}

	v := r.Variant()
	if v.HasCenter() {
		if len(r.Center) > CenterWidth {
			return fmt.Errorf("%w: center %q exceeds %d bytes", ErrInvalidRecord, r.Center, CenterWidth)
		}
	} else if r.Center != "" {
		return fmt.Errorf("%w: %s record %s has a center", ErrInvalidRecord, v, r.ID)
	}
	if !v.HasDistanceRatio() && r.DistanceRatio != nil {
		return fmt.Errorf("%w: %s record %s has a distance ratio", ErrInvalidRecord, v, r.ID)
	}
	if !v.HasSmallBodyFlags() && (r.NearEarth || r.Hazardous) {
		return fmt.Errorf("%w: %s record %s has small-body flags", ErrInvalidRecord, v, r.ID)
	}

	n := len(r.Samples.JD)
	if len(r.Samples.X) != n || len(r.Samples.Y) != n {
		return fmt.Errorf("%w: record %s series lengths differ (jd=%d x=%d y=%d)",
			ErrInvalidRecord, r.ID, n, len(r.Samples.X), len(r.Samples.Y))
	}
	for i := 1; i < n; i++ {
		if !(r.Samples.JD[i] > r.Samples.JD[i-1]) {
			return fmt.Errorf("%w: record %s epochs not strictly increasing at sample %d", ErrInvalidRecord, r.ID, i)
		}
	}
	return nil
}

// MaxDistance returns the largest distance from the origin reached along
// the trajectory, or 0 for an empty trajectory.
func (r *Record) MaxDistance() float64 {
	var maxSq float64
	for i := range r.Samples.X {
		x, y := r.Samples.X[i], r.Samples.Y[i]
		if d := x*x + y*y; d > maxSq {
			maxSq = d
		}
	}
	return math.Sqrt(maxSq)
}

// Float32 returns a pointer to v, for setting optional ratios.
func Float32(v float32) *float32 { return &v }
