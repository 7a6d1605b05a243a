package ratio

import (
	"github.com/DenizUgur/solarpaper/internal/orbit"
	"github.com/DenizUgur/solarpaper/internal/params"
)

// Normalizer annotates records with radius and distance ratios.
type Normalizer struct {
	physical Physical
}

// NewNormalizer returns a Normalizer backed by the given radius table.
func NewNormalizer(p Physical) *Normalizer {
	if p == nil {
		p = Physical{}
	}
	return &Normalizer{physical: p}
}

// Normalize partitions records by center and annotates every group.
// Group order follows the first appearance of each center in records.
func (n *Normalizer) Normalize(records []*orbit.Record) {
	var order []string
	groups := make(map[string][]*orbit.Record)
	for _, r := range records {
		if _, ok := groups[r.Center]; !ok {
			order = append(order, r.Center)
		}
		groups[r.Center] = append(groups[r.Center], r)
	}
	for _, c := range order {
		n.NormalizeGroup(groups[c])
	}
}

// NormalizeGroup annotates one group of records sharing a center. Records
// are modified in place; members with no known radius keep RadiusRatio nil.
// Distance ratios are only set on variants that carry one.
func (n *Normalizer) NormalizeGroup(group []*orbit.Record) {
	if len(group) == 0 {
		return
	}
	n.radiusRatios(group)
	if group[0].Variant().HasDistanceRatio() {
		distanceRatios(group)
	}
}

func (n *Normalizer) radiusRatios(group []*orbit.Record) {
	var (
		minR, maxR float64
		seen       bool
	)
	include := func(r float64) {
		if !seen {
			minR, maxR, seen = r, r, true
			return
		}
		minR = min(minR, r)
		maxR = max(maxR, r)
	}

	center := group[0].Center
	for _, rec := range group {
		r, ok := n.physical.Radius(rec.ID)
		if !ok {
			continue
		}
		include(r)
		// The center body counts only alongside a member with known radius.
		if center != params.RootCenter {
			if cr, ok := n.physical.Radius(center); ok {
				include(cr)
			}
		}
	}
	if !seen {
		return
	}

	for _, rec := range group {
		r, ok := n.physical.Radius(rec.ID)
		if !ok {
			continue
		}
		if maxR == minR {
			rec.RadiusRatio = orbit.Float32(0)
			continue
		}
		rec.RadiusRatio = orbit.Float32(float32((r - minR) / (maxR - minR)))
	}
}

func distanceRatios(group []*orbit.Record) {
	d := make([]float64, len(group))
	for i, rec := range group {
		d[i] = rec.MaxDistance()
	}
	minD, maxD := d[0], d[0]
	for _, v := range d[1:] {
		minD = min(minD, v)
		maxD = max(maxD, v)
	}

	if maxD == minD {
		group[0].DistanceRatio = orbit.Float32(0)
		return
	}
	for i, rec := range group {
		rec.DistanceRatio = orbit.Float32(float32((d[i] - minD) / (maxD - minD)))
	}
}
