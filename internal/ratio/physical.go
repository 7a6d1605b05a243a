// Package ratio computes the per-group radius and distance ratios used to
// scale bodies relative to their siblings.
package ratio

import (
	"encoding/json"
	"fmt"
	"os"
)

// Physical maps a body id to its mean radius in kilometres.
type Physical map[string]float64

// Radius returns the radius of id and whether it is known.
func (p Physical) Radius(id string) (float64, bool) {
	r, ok := p[id]
	return r, ok
}

type physicalEntry struct {
	Radius *float64 `json:"radius"`
}

// LoadPhysical reads a JSON table of the form {"599": {"radius": 69911}}.
// Entries without a radius are ignored.
func LoadPhysical(path string) (Physical, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading physical properties: %w", err)
	}
	var raw map[string]physicalEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding physical properties %s: %w", path, err)
	}
	p := make(Physical, len(raw))
	for id, e := range raw {
		if e.Radius == nil {
			continue
		}
		if *e.Radius < 0 {
			return nil, fmt.Errorf("physical properties %s: negative radius for %s", path, id)
		}
		p[id] = *e.Radius
	}
	return p, nil
}

// DefaultPhysical returns mean radii (km) of the Sun, the planets, Pluto and
// the larger moons.
func DefaultPhysical() Physical {
	return Physical{
		"10":  695700,
		"199": 2439.7,
		"299": 6051.8,
		"399": 6371.0,
		"499": 3389.5,
		"599": 69911,
		"699": 58232,
		"799": 25362,
		"899": 24622,
		"999": 1188.3,

		"301": 1737.4,
		"401": 11.267,
		"402": 6.2,

		"501": 1821.6,
		"502": 1560.8,
		"503": 2634.1,
		"504": 2410.3,
		"505": 83.5,

		"601": 198.2,
		"602": 252.1,
		"603": 531.1,
		"604": 561.4,
		"605": 763.8,
		"606": 2574.7,
		"607": 135.0,
		"608": 734.5,
		"609": 106.5,

		"701": 578.9,
		"702": 584.7,
		"703": 788.4,
		"704": 761.4,
		"705": 235.8,

		"801": 1353.4,
		"802": 170.0,
		"808": 210.0,

		"901": 606.0,
	}
}
