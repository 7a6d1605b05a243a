package snapshot

import (
	"sync"
	"time"

	"github.com/DenizUgur/solarpaper/internal/metrics"
)

// State is the lifecycle phase of a Builder.
type State int

const (
	Uninitialized State = iota
	CatalogReady
	Fetching
	Buffering
	Normalizing
	Flushing
	Done
	Failed
)

var stateNames = [...]string{
	"uninitialized",
	"catalog_ready",
	"fetching",
	"buffering",
	"normalizing",
	"flushing",
	"done",
	"failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText renders the state by name in JSON.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Progress is a point-in-time view of a build.
type Progress struct {
	RunID           string    `json:"run_id,omitempty"`
	State           State     `json:"state"`
	Category        string    `json:"category,omitempty"`
	CategoriesDone  int       `json:"categories_done"`
	CategoriesTotal int       `json:"categories_total"`
	Produced        int       `json:"produced"`
	Omitted         int       `json:"omitted"`
	Skipped         int       `json:"skipped"`
	Failed          int       `json:"failed"`
	StartedAt       time.Time `json:"started_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Error           string    `json:"error,omitempty"`
}

// tracker guards the progress shared with observers of a build.
type tracker struct {
	mu   sync.RWMutex
	p    Progress
	last *Summary
	now  func() time.Time
}

func (t *tracker) update(fn func(p *Progress)) {
	t.mu.Lock()
	fn(&t.p)
	t.p.UpdatedAt = t.now()
	t.mu.Unlock()
}

func (t *tracker) set(s State) {
	t.update(func(p *Progress) { p.State = s })
	metrics.SetBuilderState(int(s))
}

func (t *tracker) state() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.p.State
}

func (t *tracker) snapshot() Progress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.p
}

func (t *tracker) finish(s *Summary) {
	t.mu.Lock()
	t.last = s
	t.mu.Unlock()
}

func (t *tracker) summary() (Summary, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.last == nil {
		return Summary{}, false
	}
	return *t.last, true
}
