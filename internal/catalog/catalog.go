// Package catalog holds the per-run object catalog: which bodies exist in
// each category, from when data is available, and for small bodies their
// orbital elements.
package catalog

import (
	"time"

	"github.com/DenizUgur/solarpaper/internal/orbit"
	"github.com/DenizUgur/solarpaper/internal/propagation"
)

// Entry is the catalog metadata of one body.
type Entry struct {
	ID        string
	Name      string
	Start     time.Time // first available instant, zero when unbounded
	NearEarth bool
	Hazardous bool
	Elements  *propagation.Elements // small bodies only
}

// Catalog maps each category to its bodies in listing order.
type Catalog struct {
	BuiltAt time.Time
	Objects map[orbit.Category][]Entry
}

// New returns an empty catalog stamped with builtAt.
func New(builtAt time.Time) *Catalog {
	return &Catalog{BuiltAt: builtAt, Objects: make(map[orbit.Category][]Entry)}
}

// Has reports whether category c has been populated (possibly empty).
func (c *Catalog) Has(cat orbit.Category) bool {
	_, ok := c.Objects[cat]
	return ok
}

// Entries returns the bodies of category cat.
func (c *Catalog) Entries(cat orbit.Category) []Entry { return c.Objects[cat] }

// Lookup returns the entry of id in category cat.
func (c *Catalog) Lookup(cat orbit.Category, id string) (Entry, bool) {
	for _, e := range c.Objects[cat] {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Missing returns the categories of want not yet in c, in the order given.
func (c *Catalog) Missing(want []orbit.Category) []orbit.Category {
	var out []orbit.Category
	for _, cat := range want {
		if !c.Has(cat) {
			out = append(out, cat)
		}
	}
	return out
}

// Merge copies every category of other into c, replacing existing ones.
// The older build time is kept.
func (c *Catalog) Merge(other *Catalog) {
	for cat, entries := range other.Objects {
		c.Objects[cat] = entries
	}
	if c.BuiltAt.IsZero() || (!other.BuiltAt.IsZero() && other.BuiltAt.Before(c.BuiltAt)) {
		c.BuiltAt = other.BuiltAt
	}
}

// Size returns the total number of entries.
func (c *Catalog) Size() int {
	n := 0
	for _, entries := range c.Objects {
		n += len(entries)
	}
	return n
}
