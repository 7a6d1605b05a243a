package propagation

import (
	"errors"
	"fmt"
	"math"

	"github.com/soniakeys/coord"
	"github.com/soniakeys/meeus/v3/kepler"
	"github.com/soniakeys/unit"

	"github.com/DenizUgur/solarpaper/internal/transform"
)

// Kepler solver choice: github.com/soniakeys/meeus/v3/kepler
//
// Kepler3 (Meeus ch. 30, Sinnott's bisection) converges for any e < 1 in
// a fixed number of steps. meeus has no hyperbolic solver, so e > 1 uses a
// Newton iteration on e·sinh F − F = M.

// ErrUnsupportedOrbit is returned for element sets the propagator cannot
// handle (parabolic or malformed).
var ErrUnsupportedOrbit = errors.New("unsupported orbit")

// KeplerPropagator computes two-body heliocentric positions for one body.
type KeplerPropagator struct {
	el     Elements
	orient transform.Orientation
	n      float64 // mean motion, rad/day
	m0     float64 // mean anomaly at epoch, rad
	spkid  string
}

// NewKeplerPropagator validates el and precomputes the orbit orientation.
func NewKeplerPropagator(spkid string, el Elements) (*KeplerPropagator, error) {
	switch {
	case math.IsNaN(el.A) || math.IsNaN(el.E) || el.A == 0:
		return nil, fmt.Errorf("%w: spkid %s: a=%v e=%v", ErrUnsupportedOrbit, spkid, el.A, el.E)
	case el.E < 0:
		return nil, fmt.Errorf("%w: spkid %s: negative eccentricity %v", ErrUnsupportedOrbit, spkid, el.E)
	case el.E == 1:
		return nil, fmt.Errorf("%w: spkid %s: parabolic orbit", ErrUnsupportedOrbit, spkid)
	case el.E < 1 && el.A < 0, el.E > 1 && el.A > 0:
		return nil, fmt.Errorf("%w: spkid %s: a=%v inconsistent with e=%v", ErrUnsupportedOrbit, spkid, el.A, el.E)
	}

	return &KeplerPropagator{
		el: el,
		orient: transform.Orientation{
			Inclination: unit.AngleFromDeg(el.I),
			Node:        unit.AngleFromDeg(el.Node),
			Periapsis:   unit.AngleFromDeg(el.Peri),
		},
		n:     GaussK / math.Pow(math.Abs(el.A), 1.5),
		m0:    unit.AngleFromDeg(el.M).Rad(),
		spkid: spkid,
	}, nil
}

// Position returns the heliocentric ecliptic position (AU) at Julian Date jd.
func (p *KeplerPropagator) Position(jd float64) (coord.Cart, error) {
	m := p.m0 + p.n*(jd-p.el.Epoch)

	var xp, yp float64
	if p.el.E < 1 {
		// Kepler3 expects M in (-π, π].
		m = math.Remainder(m, 2*math.Pi)
		ea := kepler.Kepler3(p.el.E, unit.Angle(m))
		nu := kepler.True(ea, p.el.E)
		r := kepler.Radius(ea, p.el.E, p.el.A)
		s, c := nu.Sincos()
		xp, yp = r*c, r*s
	} else {
		f, err := solveHyperbolic(p.el.E, m)
		if err != nil {
			return coord.Cart{}, fmt.Errorf("spkid %s at JD %.5f: %w", p.spkid, jd, err)
		}
		a := math.Abs(p.el.A)
		xp = a * (p.el.E - math.Cosh(f))
		yp = a * math.Sqrt(p.el.E*p.el.E-1) * math.Sinh(f)
	}

	pos := transform.PerifocalToEcliptic(xp, yp, p.orient)
	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) {
		return coord.Cart{}, fmt.Errorf("propagation failed for spkid %s at JD %.5f: output is NaN/Inf", p.spkid, jd)
	}
	return pos, nil
}

// solveHyperbolic solves e·sinh F − F = M for F.
func solveHyperbolic(e, m float64) (float64, error) {
	f := math.Asinh(m / e)
	for i := 0; i < 50; i++ {
		d := (e*math.Sinh(f) - f - m) / (e*math.Cosh(f) - 1)
		f -= d
		if math.Abs(d) < 1e-12 {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: hyperbolic anomaly did not converge (e=%v M=%v)", ErrUnsupportedOrbit, e, m)
}
