package ratio

import (
	"errors"
	"fmt"
	"sort"

	"github.com/DenizUgur/solarpaper/internal/orbit"
)

// ErrUnexpectedMember is returned when a record arrives that was never
// registered with Expect, or arrives twice.
var ErrUnexpectedMember = errors.New("unexpected group member")

type member struct {
	center string
	seq    int
}

type arrival struct {
	seq int
	rec *orbit.Record
}

type group struct {
	pending int
	arrived []arrival
}

// records returns the arrived records in registration order.
func (g *group) records() []*orbit.Record {
	sort.SliceStable(g.arrived, func(i, j int) bool { return g.arrived[i].seq < g.arrived[j].seq })
	out := make([]*orbit.Record, len(g.arrived))
	for i, a := range g.arrived {
		out[i] = a.rec
	}
	return out
}

// Barrier holds records per center until every expected member of that
// center has either arrived or been dropped. Released groups are ordered by
// registration order, not arrival order. Not safe for concurrent use; it is
// owned by the goroutine consuming fetch results.
type Barrier struct {
	members map[string]member
	groups  map[string]*group
	order   []string
	seq     int
}

// NewBarrier returns an empty Barrier.
func NewBarrier() *Barrier {
	return &Barrier{
		members: make(map[string]member),
		groups:  make(map[string]*group),
	}
}

// Expect registers id as a member of the group keyed by center.
func (b *Barrier) Expect(id, center string) {
	if _, ok := b.members[id]; ok {
		return
	}
	b.members[id] = member{center: center, seq: b.seq}
	b.seq++
	g, ok := b.groups[center]
	if !ok {
		g = &group{}
		b.groups[center] = g
		b.order = append(b.order, center)
	}
	g.pending++
}

// Add stores r in its group. When r completes the group, the group is
// returned and forgotten.
func (b *Barrier) Add(r *orbit.Record) ([]*orbit.Record, bool, error) {
	m, ok := b.members[r.ID]
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrUnexpectedMember, r.ID)
	}
	delete(b.members, r.ID)
	g := b.groups[m.center]
	g.arrived = append(g.arrived, arrival{seq: m.seq, rec: r})
	g.pending--
	return b.release(m.center, g)
}

// Drop marks id as never arriving. It may complete its group.
func (b *Barrier) Drop(id string) ([]*orbit.Record, bool) {
	m, ok := b.members[id]
	if !ok {
		return nil, false
	}
	delete(b.members, id)
	g := b.groups[m.center]
	g.pending--
	out, ready, _ := b.release(m.center, g)
	return out, ready
}

func (b *Barrier) release(center string, g *group) ([]*orbit.Record, bool, error) {
	if g.pending > 0 {
		return nil, false, nil
	}
	delete(b.groups, center)
	for i, c := range b.order {
		if c == center {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	if len(g.arrived) == 0 {
		return nil, false, nil
	}
	return g.records(), true, nil
}

// Flush releases every partially filled group in registration order and
// resets the barrier. Empty groups are skipped.
func (b *Barrier) Flush() [][]*orbit.Record {
	var out [][]*orbit.Record
	for _, c := range b.order {
		g := b.groups[c]
		if len(g.arrived) == 0 {
			continue
		}
		out = append(out, g.records())
	}
	b.members = make(map[string]member)
	b.groups = make(map[string]*group)
	b.order = nil
	return out
}

// Pending returns the number of members that have neither arrived nor been
// dropped.
func (b *Barrier) Pending() int { return len(b.members) }
