// Package orbit defines the body categories, the trajectory record and the
// binary record format of the snapshot file.
package orbit

import "fmt"

// Category is one of the eleven body groups a snapshot is built from.
// The numeric value is the discriminant written to the snapshot file.
type Category int8

const (
	SunAndPlanets Category = iota
	JovianSatellites
	SaturianSatellites
	UranianSatellites
	NeptunianSatellites
	OtherSatellites
	Spacecrafts
	Comets
	NEOAsteroids
	IMBAsteroids
	MBAAsteroids
)

// NumCategories is the number of valid discriminants.
const NumCategories = 11

var categoryNames = [NumCategories]string{
	"sun_and_planets",
	"jovian_satellites",
	"saturian_satellites",
	"uranian_satellites",
	"neptunian_satellites",
	"other_satellites",
	"spacecrafts",
	"comets",
	"neo-asteroids",
	"imb-asteroids",
	"mba-asteroids",
}

// Categories returns every category in discriminant order.
func Categories() []Category {
	out := make([]Category, NumCategories)
	for i := range out {
		out[i] = Category(i)
	}
	return out
}

// Index returns the discriminant of c.
func (c Category) Index() int { return int(c) }

// FromIndex returns the category with discriminant i.
func FromIndex(i int) (Category, error) {
	if i < 0 || i >= NumCategories {
		return 0, fmt.Errorf("category index %d out of range [0,%d)", i, NumCategories)
	}
	return Category(i), nil
}

// Parse returns the category named s.
func Parse(s string) (Category, error) {
	for i, name := range categoryNames {
		if name == s {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", s)
}

// Valid reports whether c is one of the defined categories.
func (c Category) Valid() bool {
	return c >= 0 && int(c) < NumCategories
}

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("category(%d)", int8(c))
	}
	return categoryNames[c]
}

// IsSmallBody reports whether c holds comets or asteroids, whose
// trajectories are computed locally from orbital elements.
func (c Category) IsSmallBody() bool {
	switch c {
	case Comets, NEOAsteroids, IMBAsteroids, MBAAsteroids:
		return true
	}
	return false
}

// IsMajorBody reports whether c holds planets or natural satellites.
func (c Category) IsMajorBody() bool {
	return c.Valid() && !c.IsSmallBody() && c != Spacecrafts
}

// IsSatellite reports whether c is one of the four planetary-moon groups.
// Fetching them requires the planets to be part of the same run.
func (c Category) IsSatellite() bool {
	switch c {
	case JovianSatellites, SaturianSatellites, UranianSatellites, NeptunianSatellites:
		return true
	}
	return false
}

// Variant returns the record layout used for bodies of category c.
func (c Category) Variant() Variant {
	switch {
	case c == SunAndPlanets:
		return VariantMajorBody
	case c == Spacecrafts:
		return VariantSpacecraft
	case c.IsSmallBody():
		return VariantSmallBody
	default:
		return VariantSatellite
	}
}

// Variant selects which optional fields a record carries on the wire.
type Variant uint8

const (
	VariantMajorBody Variant = iota
	VariantSatellite
	VariantSpacecraft
	VariantSmallBody
)

func (v Variant) String() string {
	switch v {
	case VariantMajorBody:
		return "major-body"
	case VariantSatellite:
		return "satellite"
	case VariantSpacecraft:
		return "spacecraft"
	case VariantSmallBody:
		return "small-body"
	default:
		return "unknown"
	}
}

// HasSmallBodyFlags reports whether the near-earth and hazardous flags are
// encoded (discriminant > 6).
func (v Variant) HasSmallBodyFlags() bool { return v == VariantSmallBody }

// HasDistanceRatio reports whether a distance ratio is encoded
// (discriminant < 6).
func (v Variant) HasDistanceRatio() bool {
	return v == VariantMajorBody || v == VariantSatellite
}

// HasCenter reports whether a reference center id is encoded
// (discriminant < 7).
func (v Variant) HasCenter() bool { return v != VariantSmallBody }
