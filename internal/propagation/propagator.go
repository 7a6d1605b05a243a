// Package propagation computes small-body trajectories from classical
// orbital elements.
package propagation

import (
	"fmt"
	"time"

	"github.com/DenizUgur/solarpaper/internal/orbit"
	"github.com/DenizUgur/solarpaper/internal/transform"
)

// Window is an evenly sampled time range. Both ends are included.
type Window struct {
	Start   time.Time
	Stop    time.Time
	Periods int
}

// Epochs returns the sample instants of w as Julian Dates.
func (w Window) Epochs() []float64 {
	if w.Periods <= 0 {
		return nil
	}
	start := transform.JulianDate(w.Start)
	if w.Periods == 1 {
		return []float64{start}
	}
	stop := transform.JulianDate(w.Stop)
	step := (stop - start) / float64(w.Periods-1)

	out := make([]float64, w.Periods)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

// Propagate samples the orbit described by el over w and returns the
// ecliptic X/Y series.
func Propagate(spkid string, el Elements, w Window) (orbit.Samples, error) {
	if !w.Stop.After(w.Start) {
		return orbit.Samples{}, fmt.Errorf("spkid %s: empty window %s..%s", spkid,
			w.Start.UTC().Format(time.RFC3339), w.Stop.UTC().Format(time.RFC3339))
	}

	p, err := NewKeplerPropagator(spkid, el)
	if err != nil {
		return orbit.Samples{}, err
	}

	epochs := w.Epochs()
	s := orbit.Samples{
		JD: epochs,
		X:  make([]float64, len(epochs)),
		Y:  make([]float64, len(epochs)),
	}
	for i, jd := range epochs {
		pos, err := p.Position(jd)
		if err != nil {
			return orbit.Samples{}, err
		}
		s.X[i], s.Y[i] = pos.X, pos.Y
	}
	return s, nil
}
