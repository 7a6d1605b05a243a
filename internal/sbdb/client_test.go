package sbdb

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DenizUgur/solarpaper/internal/orbit"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

const queryBody = `{
  "signature": {"source": "NASA/JPL Small-Body Database (SBDB) Query API", "version": "1.0"},
  "fields": ["spkid","full_name","neo","pha","a","e","i","om","w","ma","epoch"],
  "count": 4,
  "data": [
    ["20000001","     1 Ceres (A801 AA)","N","N","2.767","0.0789","10.59","80.25","73.30","60.08","2460200.5"],
    ["20000433","   433 Eros (A898 PA)","Y","N","1.458","0.2228","10.83","304.3","178.9","310.5","2460200.5"],
    ["20099942"," 99942 Apophis (2004 MN4)","Y","Y","0.9224","0.1911","3.34","203.9","126.7","",  "2460200.5"],
    ["20000004","     4 Vesta (A807 FA)","N","N","2.362","0.0885","7.14","103.8","151.2","26.8", null]
  ]
}`

// TestParseRows verifies field mapping and that incomplete rows are skipped.
func TestParseRows(t *testing.T) {
	objs, skipped, err := ParseRows([]byte(queryBody))
	if err != nil {
		t.Fatalf("ParseRows: %v", err)
	}
	if skipped != 2 {
		t.Errorf("skipped = %d, want 2", skipped)
	}
	if len(objs) != 2 {
		t.Fatalf("got %d objects, want 2", len(objs))
	}

	ceres := objs[0]
	if ceres.ID != "20000001" || ceres.Name != "1 Ceres (A801 AA)" {
		t.Errorf("ceres = %q %q", ceres.ID, ceres.Name)
	}
	if ceres.Elements.A != 2.767 || ceres.Elements.M != 60.08 || ceres.Elements.Epoch != 2460200.5 {
		t.Errorf("ceres elements = %+v", ceres.Elements)
	}
	if !objs[1].NearEarth || objs[1].Hazardous {
		t.Errorf("eros flags = neo %v pha %v", objs[1].NearEarth, objs[1].Hazardous)
	}
}

// TestParseRowsNumericCells verifies numeric JSON cells are accepted.
func TestParseRowsNumericCells(t *testing.T) {
	body := `{"data":[[1000012,"2P/Encke","N","N",2.21,0.848,11.3,334.2,187.0,12.5,2460200.5]]}`
	objs, skipped, err := ParseRows([]byte(body))
	if err != nil || skipped != 0 || len(objs) != 1 {
		t.Fatalf("objs=%d skipped=%d err=%v", len(objs), skipped, err)
	}
	if objs[0].ID != "1000012" || objs[0].Elements.E != 0.848 {
		t.Errorf("got %+v", objs[0])
	}
}

// TestQueryFilters verifies the class and constraint filters per category.
func TestQueryFilters(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		cat   orbit.Category
		class string
		kind  string
		cdata []string
	}{
		{orbit.NEOAsteroids, "IEO,ATE,APO,AMO", "a", []string{"diameter|GE|2.0"}},
		{orbit.IMBAsteroids, "IMB", "a", []string{"diameter|GT|0"}},
		{orbit.MBAAsteroids, "MBA", "a", []string{"diameter|GE|10"}},
	}
	for _, tt := range tests {
		q, err := Query(tt.cat, now)
		if err != nil {
			t.Fatalf("%v: %v", tt.cat, err)
		}
		if q.Get("sb-class") != tt.class || q.Get("sb-kind") != tt.kind || q.Get("sb-ns") != "n" {
			t.Errorf("%v: %v", tt.cat, q)
		}
		var c struct{ AND []string }
		if err := json.Unmarshal([]byte(q.Get("sb-cdata")), &c); err != nil {
			t.Fatalf("%v: sb-cdata: %v", tt.cat, err)
		}
		if len(c.AND) != 1 || c.AND[0] != tt.cdata[0] {
			t.Errorf("%v: cdata = %v", tt.cat, c.AND)
		}
		if q.Get("fields") != fields || q.Get("full-prec") != "true" {
			t.Errorf("%v: fields = %q", tt.cat, q.Get("fields"))
		}
	}

	q, err := Query(orbit.Comets, now)
	if err != nil {
		t.Fatal(err)
	}
	if q.Get("sb-kind") != "c" || q.Get("sb-ns") != "" || q.Get("sb-class") != "ETc,HTC,HYP,COM" {
		t.Errorf("comets: %v", q)
	}
	var c struct{ AND []string }
	json.Unmarshal([]byte(q.Get("sb-cdata")), &c)
	if len(c.AND) != 2 || c.AND[0][:6] != "tp|LT|" || c.AND[1][:6] != "tp|GT|" {
		t.Errorf("comet cdata = %v", c.AND)
	}

	if _, err := Query(orbit.Spacecrafts, now); err == nil {
		t.Error("expected error for a remote category")
	}
}

// TestObjectsHTTP verifies the client end to end against a test server.
func TestObjectsHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("sb-class") != "MBA" {
			t.Errorf("sb-class = %q", r.URL.Query().Get("sb-class"))
		}
		w.Write([]byte(queryBody))
	}))
	defer server.Close()

	c := NewClient(server.URL, 0, 0, testLogger)
	objs, err := c.Objects(context.Background(), orbit.MBAAsteroids, time.Now())
	if err != nil {
		t.Fatalf("Objects: %v", err)
	}
	if len(objs) != 2 {
		t.Errorf("got %d objects", len(objs))
	}
}

// TestObjectsHTTPError verifies a failed query is an error.
func TestObjectsHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"invalid sb-cdata"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, 0, 0, testLogger)
	if _, err := c.Objects(context.Background(), orbit.Comets, time.Now()); err == nil {
		t.Fatal("expected error for 400 response")
	}
}
