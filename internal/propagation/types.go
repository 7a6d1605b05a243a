package propagation

// Elements is a set of heliocentric classical orbital elements as published
// by the small-body database.
type Elements struct {
	A     float64 // semi-major axis, AU (negative for hyperbolic orbits)
	E     float64 // eccentricity
	I     float64 // inclination, degrees
	Node  float64 // longitude of the ascending node, degrees
	Peri  float64 // argument of perihelion, degrees
	M     float64 // mean anomaly at Epoch, degrees
	Epoch float64 // osculation epoch, JD (TDB)
}

// GaussK is the Gaussian gravitational constant, rad/day for a in AU.
const GaussK = 0.01720209895
