package transform

import (
	"github.com/soniakeys/coord"
	"github.com/soniakeys/unit"
)

// Orientation holds the three angles placing an orbit plane in the
// heliocentric ecliptic frame.
type Orientation struct {
	Inclination unit.Angle // i
	Node        unit.Angle // Ω, longitude of the ascending node
	Periapsis   unit.Angle // ω, argument of periapsis
}

// PerifocalToEcliptic rotates a position given in the orbit's perifocal
// frame (x toward periapsis, y along the direction of motion at periapsis)
// into the ecliptic frame: r = R3(-Ω) R1(-i) R3(-ω) p.
func PerifocalToEcliptic(xp, yp float64, o Orientation) coord.Cart {
	sO, cO := o.Node.Sincos()
	si, ci := o.Inclination.Sincos()
	sw, cw := o.Periapsis.Sincos()

	// First two columns of the rotation matrix; zp is always 0.
	m11 := cO*cw - sO*sw*ci
	m12 := -cO*sw - sO*cw*ci
	m21 := sO*cw + cO*sw*ci
	m22 := -sO*sw + cO*cw*ci
	m31 := sw * si
	m32 := cw * si

	return coord.Cart{
		X: m11*xp + m12*yp,
		Y: m21*xp + m22*yp,
		Z: m31*xp + m32*yp,
	}
}
