package snapshot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DenizUgur/solarpaper/internal/catalog"
	"github.com/DenizUgur/solarpaper/internal/fetch"
	"github.com/DenizUgur/solarpaper/internal/horizons"
	"github.com/DenizUgur/solarpaper/internal/orbit"
	"github.com/DenizUgur/solarpaper/internal/params"
	"github.com/DenizUgur/solarpaper/internal/propagation"
	"github.com/DenizUgur/solarpaper/internal/ratio"
	"github.com/DenizUgur/solarpaper/internal/transform"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

var testStop = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

type fakeLoader struct {
	cat   *catalog.Catalog
	err   error
	calls int
}

func (f *fakeLoader) Load(context.Context, []orbit.Category, bool) (*catalog.Catalog, error) {
	f.calls++
	return f.cat, f.err
}

// scaledSource returns a two-sample trajectory whose distance from the
// origin is the id's scale.
type scaledSource struct {
	scale map[string]float64
	errs  map[string]error
}

func (s *scaledSource) Vectors(_ context.Context, req horizons.VectorRequest) (orbit.Samples, error) {
	if err, ok := s.errs[req.ID]; ok {
		return orbit.Samples{}, err
	}
	k := s.scale[req.ID]
	return orbit.Samples{
		JD: []float64{2460000.5, 2460001.5},
		X:  []float64{k, 0},
		Y:  []float64{0, k},
	}, nil
}

type fakePublisher struct {
	mu    sync.Mutex
	path  string
	runID string
	err   error
}

func (p *fakePublisher) Publish(_ context.Context, path, runID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.path, p.runID = path, runID
	return p.err
}

func testCatalog() *catalog.Catalog {
	el := propagation.Elements{A: 1.458, E: 0.2228, I: 10.83, Node: 304.3, Peri: 178.9, M: 310.5, Epoch: 2460200.5}
	c := catalog.New(testStop)
	c.Objects[orbit.SunAndPlanets] = []catalog.Entry{
		{ID: "399", Name: "Earth"},
		{ID: "499", Name: "Mars"},
		{ID: "599", Name: "Jupiter"},
	}
	c.Objects[orbit.NEOAsteroids] = []catalog.Entry{
		{ID: "20000433", Name: "433 Eros", NearEarth: true, Elements: &el},
		{ID: "20099942", Name: "99942 Apophis", NearEarth: true, Hazardous: true, Elements: &el},
	}
	return c
}

func newTestBuilder(t *testing.T, loader CatalogLoader, pub Publisher) *Builder {
	t.Helper()
	res, err := params.NewResolver(params.Config{
		Default: params.Layer{
			Span:   ptr(10 * 24 * time.Hour),
			Stop:   ptr(testStop),
			Step:   ptr(24 * time.Hour),
			Center: ptr("10"),
		},
	})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	src := &scaledSource{
		scale: map[string]float64{"399": 1, "499": 1.5},
		errs:  map[string]error{"599": horizons.ErrInsufficientData},
	}
	o := fetch.New(fetch.Config{}, src, res, testLogger)
	return NewBuilder(Config{Dir: t.TempDir(), ValidUntil: testStop}, loader, o,
		ratio.NewNormalizer(ratio.DefaultPhysical()), pub, testLogger)
}

func readAll(t *testing.T, path string) []*orbit.Record {
	t.Helper()
	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()
	var out []*orbit.Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, rec)
	}
}

// TestValidateRequest covers the request rules.
func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name string
		cats []orbit.Category
		ok   bool
	}{
		{"empty", nil, false},
		{"duplicate", []orbit.Category{orbit.Comets, orbit.Comets}, false},
		{"satellites without planets", []orbit.Category{orbit.JovianSatellites}, false},
		{"satellites with planets", []orbit.Category{orbit.JovianSatellites, orbit.SunAndPlanets}, true},
		{"other satellites alone", []orbit.Category{orbit.OtherSatellites}, true},
		{"invalid", []orbit.Category{orbit.Category(11)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(tt.cats)
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrConfig) {
				t.Errorf("got %v, want ErrConfig", err)
			}
		})
	}
}

// TestRunRejectsInvalidRequest verifies nothing is loaded for a bad request.
func TestRunRejectsInvalidRequest(t *testing.T) {
	loader := &fakeLoader{cat: testCatalog()}
	b := newTestBuilder(t, loader, nil)
	if _, err := b.Run(context.Background(), []orbit.Category{orbit.UranianSatellites}, false); !errors.Is(err, ErrConfig) {
		t.Fatalf("err = %v, want ErrConfig", err)
	}
	if loader.calls != 0 {
		t.Errorf("catalog loaded %d times", loader.calls)
	}
	if _, err := os.Stat(b.Path()); !os.IsNotExist(err) {
		t.Errorf("output exists: %v", err)
	}
}

// TestRunEndToEnd builds a snapshot with a normalized and a streamed
// category and reads it back.
func TestRunEndToEnd(t *testing.T) {
	pub := &fakePublisher{}
	b := newTestBuilder(t, &fakeLoader{cat: testCatalog()}, pub)

	sum, err := b.Run(context.Background(), []orbit.Category{orbit.SunAndPlanets, orbit.NEOAsteroids}, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Requested != 5 || sum.Produced != 4 || sum.Omitted != 1 || len(sum.Failed) != 0 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.RunID == "" || sum.Bytes <= 0 || !sum.Published {
		t.Errorf("summary = %+v", sum)
	}
	if pub.path != b.Path() || pub.runID != sum.RunID {
		t.Errorf("published %q run %q", pub.path, pub.runID)
	}
	if b.State() != Done {
		t.Errorf("state = %v", b.State())
	}
	if last, ok := b.LastSummary(); !ok || last.RunID != sum.RunID {
		t.Errorf("LastSummary = %+v, %v", last, ok)
	}

	inv, err := Inspect(b.Path())
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if inv.ValidUntilJD != transform.CivilJD(testStop) {
		t.Errorf("header = %f, want %f", inv.ValidUntilJD, transform.CivilJD(testStop))
	}
	if inv.Records != 4 || inv.PerCategory[orbit.SunAndPlanets] != 2 || inv.PerCategory[orbit.NEOAsteroids] != 2 {
		t.Errorf("inventory = %+v", inv)
	}

	recs := readAll(t, b.Path())
	if len(recs) != 4 {
		t.Fatalf("read %d records", len(recs))
	}
	earth, mars := recs[0], recs[1]
	if earth.ID != "399" || mars.ID != "499" {
		t.Fatalf("planet order = %s, %s", earth.ID, mars.ID)
	}
	if earth.DistanceRatio == nil || *earth.DistanceRatio != 0 || mars.DistanceRatio == nil || *mars.DistanceRatio != 1 {
		t.Errorf("distance ratios = %v, %v", earth.DistanceRatio, mars.DistanceRatio)
	}
	if earth.RadiusRatio == nil || *earth.RadiusRatio != 1 || mars.RadiusRatio == nil || *mars.RadiusRatio != 0 {
		t.Errorf("radius ratios = %v, %v", earth.RadiusRatio, mars.RadiusRatio)
	}
	if earth.Center != "10" {
		t.Errorf("center = %q", earth.Center)
	}
	for _, r := range recs[2:] {
		if r.Category != orbit.NEOAsteroids || !r.NearEarth || r.Samples.Len() != 17 {
			t.Errorf("small body %s: %+v", r.ID, r)
		}
		if r.RadiusRatio != nil || r.DistanceRatio != nil {
			t.Errorf("small body %s carries ratios", r.ID)
		}
	}

	p := b.Progress()
	if p.CategoriesDone != 2 || p.Produced != 4 || p.Omitted != 1 || p.RunID != sum.RunID {
		t.Errorf("progress = %+v", p)
	}
}

// TestRunPublishFailureKeepsSnapshot verifies an upload error does not
// fail the build.
func TestRunPublishFailureKeepsSnapshot(t *testing.T) {
	pub := &fakePublisher{err: errors.New("bucket gone")}
	b := newTestBuilder(t, &fakeLoader{cat: testCatalog()}, pub)

	sum, err := b.Run(context.Background(), []orbit.Category{orbit.NEOAsteroids}, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Published {
		t.Error("summary reports a failed upload as published")
	}
	if _, err := os.Stat(b.Path()); err != nil {
		t.Errorf("snapshot missing: %v", err)
	}
}

// TestRunCatalogFailure verifies a catalog error fails the build without
// leaving output behind.
func TestRunCatalogFailure(t *testing.T) {
	b := newTestBuilder(t, &fakeLoader{err: errors.New("support api down")}, nil)

	if _, err := b.Run(context.Background(), []orbit.Category{orbit.SunAndPlanets}, false); err == nil {
		t.Fatal("expected error")
	}
	if b.State() != Failed {
		t.Errorf("state = %v, want failed", b.State())
	}
	if b.Progress().Error == "" {
		t.Error("progress does not carry the error")
	}
	entries, _ := os.ReadDir(filepath.Dir(b.Path()))
	if len(entries) != 0 {
		t.Errorf("output dir not empty: %v", entries)
	}
}

// TestRunCanceledRemovesPartialOutput verifies an aborted build discards
// its temporary file and keeps the previous snapshot.
func TestRunCanceledRemovesPartialOutput(t *testing.T) {
	b := newTestBuilder(t, &fakeLoader{cat: testCatalog()}, nil)
	if err := os.WriteFile(b.Path(), []byte("previous"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.Run(ctx, []orbit.Category{orbit.SunAndPlanets}, false); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	entries, _ := os.ReadDir(filepath.Dir(b.Path()))
	if len(entries) != 1 {
		t.Errorf("output dir = %v, want only the previous snapshot", entries)
	}
	if got, _ := os.ReadFile(b.Path()); string(got) != "previous" {
		t.Errorf("previous snapshot replaced: %q", got)
	}
}

// TestInspectEmpty verifies a headerless file is reported corrupt.
func TestInspectEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	if _, err := Inspect(path); err == nil {
		t.Error("expected error for empty file")
	}
}

// TestStateNames verifies states render by name.
func TestStateNames(t *testing.T) {
	if Buffering.String() != "buffering" || Failed.String() != "failed" || State(42).String() != "unknown" {
		t.Error("unexpected state names")
	}
	b, _ := Done.MarshalText()
	if string(b) != "done" {
		t.Errorf("MarshalText = %q", b)
	}
}
