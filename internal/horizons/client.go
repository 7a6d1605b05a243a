// Package horizons is a client for the JPL Horizons API: state-vector
// tables for major bodies and spacecraft, and the support API listing the
// bodies of each category.
package horizons

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/DenizUgur/solarpaper/internal/httputil"
	"github.com/DenizUgur/solarpaper/internal/orbit"
	"github.com/DenizUgur/solarpaper/internal/params"
)

const (
	DefaultAPIURL     = "https://ssd.jpl.nasa.gov/api/horizons.api"
	DefaultSupportURL = "https://ssd.jpl.nasa.gov/api/horizons_support.api"
)

// openCoverage marks an unbounded end of a coverage interval.
const openCoverage = "9999"

const timeLayout = "2006-01-02 15:04:05.000000"

// Config configures a Client.
type Config struct {
	APIURL     string
	SupportURL string
	RateLimit  float64 // requests per second, <= 0 disables pacing
	Timeout    time.Duration
}

// Client talks to the Horizons API and its support API.
type Client struct {
	http       *httputil.Client
	apiURL     string
	supportURL string
	logger     *slog.Logger
}

// NewClient returns a Client for cfg.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.SupportURL == "" {
		cfg.SupportURL = DefaultSupportURL
	}
	return &Client{
		http: httputil.NewClient(httputil.Config{
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			RateBurst: 1,
		}),
		apiURL:     cfg.APIURL,
		supportURL: cfg.SupportURL,
		logger:     logger,
	}
}

// VectorRequest selects one body's trajectory relative to Center.
type VectorRequest struct {
	ID          string
	Center      string
	Start       time.Time
	Stop        time.Time
	StepMinutes int
}

func (r VectorRequest) query() url.Values {
	return url.Values{
		"format":      {"text"},
		"COMMAND":     {r.ID},
		"OBJ_DATA":    {"NO"},
		"MAKE_EPHEM":  {"YES"},
		"EPHEM_TYPE":  {"VECTORS"},
		"CENTER":      {"500@" + r.Center},
		"START_TIME":  {"'" + r.Start.UTC().Format(timeLayout) + "'"},
		"STOP_TIME":   {"'" + r.Stop.UTC().Format(timeLayout) + "'"},
		"STEP_SIZE":   {fmt.Sprintf("'%d MINUTES'", r.StepMinutes)},
		"VEC_TABLE":   {"2"},
		"VEC_CORR":    {"NONE"},
		"VEC_DELTA_T": {"NO"},
		"VEC_LABELS":  {"NO"},
		"OUT_UNITS":   {"AU-D"},
		"REF_PLANE":   {"ECLIPTIC"},
		"REF_SYSTEM":  {"ICRF"},
		"CSV_FORMAT":  {"YES"},
	}
}

// Vectors retrieves the ecliptic X/Y trajectory described by req.
// It returns ErrInsufficientData when Horizons has no ephemeris for the
// window, *TransportError for failed exchanges and *ParseError for bodies
// that cannot be read.
func (c *Client) Vectors(ctx context.Context, req VectorRequest) (orbit.Samples, error) {
	if req.StepMinutes <= 0 {
		return orbit.Samples{}, fmt.Errorf("horizons %s: step must be positive, got %d", req.ID, req.StepMinutes)
	}

	start := time.Now()
	body, err := c.http.Get(ctx, c.apiURL, req.query())
	if err != nil {
		var se *httputil.StatusError
		if errors.As(err, &se) {
			return orbit.Samples{}, &TransportError{ID: req.ID, Status: se.Status, Body: se.Body, Err: err}
		}
		return orbit.Samples{}, &TransportError{ID: req.ID, Err: err}
	}

	s, err := ParseVectors(body)
	if errors.Is(err, ErrInsufficientData) {
		return orbit.Samples{}, err
	}
	if err != nil {
		return orbit.Samples{}, &ParseError{ID: req.ID, Body: body, Err: err}
	}

	c.logger.Debug("horizons vectors fetched",
		"component", "horizons",
		"spkid", req.ID,
		"center", req.Center,
		"samples", s.Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return s, nil
}

// Body is one entry of a support-API listing.
type Body struct {
	ID    string
	Name  string
	Start time.Time // first instant to request, already clamped to coverage
}

// Resolver supplies sampling parameters for a body.
type Resolver interface {
	Resolve(c orbit.Category, id string) params.Params
}

var listTokens = map[orbit.Category]string{
	orbit.SunAndPlanets:       "planets",
	orbit.JovianSatellites:    "js",
	orbit.SaturianSatellites:  "ss",
	orbit.UranianSatellites:   "us",
	orbit.NeptunianSatellites: "us",
	orbit.OtherSatellites:     "os",
	orbit.Spacecrafts:         "spacecraft",
}

// ListToken returns the support-API list name for a remote category.
func ListToken(c orbit.Category) (string, bool) {
	t, ok := listTokens[c]
	return t, ok
}

type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	*f = flexString(b)
	return nil
}

type supportEntry struct {
	ID    flexString `json:"id"`
	Name  flexString `json:"name"`
	CDMin flexString `json:"cd_min"`
	CDMax flexString `json:"cd_max"`
}

type supportResponse struct {
	List []struct {
		List []supportEntry `json:"list"`
	} `json:"list"`
}

// Bodies lists the bodies of remote category cat whose ephemeris coverage
// contains their reference stop. The Sun (id "10") is never listed.
func (c *Client) Bodies(ctx context.Context, cat orbit.Category, r Resolver) ([]Body, error) {
	token, ok := ListToken(cat)
	if !ok {
		return nil, fmt.Errorf("category %s has no horizons listing", cat)
	}

	q := url.Values{"www": {"1"}, "time-span": {"1"}, "list": {token}}
	body, err := c.http.Get(ctx, c.supportURL, q)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", cat, err)
	}

	var resp supportResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ParseError{ID: token, Body: body, Err: err}
	}
	if len(resp.List) == 0 {
		return nil, &ParseError{ID: token, Body: body, Err: errors.New("empty list")}
	}

	var out []Body
	for _, e := range resp.List[0].List {
		id := strings.TrimSpace(string(e.ID))
		if id == "" || id == params.RootCenter {
			continue
		}
		p := r.Resolve(cat, id)
		b, ok, err := coverage(e, p)
		if err != nil {
			c.logger.Warn("skipping body with unreadable coverage",
				"component", "horizons",
				"category", cat.String(),
				"spkid", id,
				"error", err,
			)
			continue
		}
		if !ok {
			continue
		}
		out = append(out, b)
	}

	c.logger.Info("horizons listing fetched",
		"component", "horizons",
		"category", cat.String(),
		"listed", len(resp.List[0].List),
		"usable", len(out),
	)
	return out, nil
}

// coverage reports whether e covers p.Stop and computes the clamped start.
func coverage(e supportEntry, p params.Params) (Body, bool, error) {
	b := Body{
		ID:    strings.TrimSpace(string(e.ID)),
		Name:  strings.TrimSpace(string(e.Name)),
		Start: p.Start(),
	}
	cdMin, cdMax := string(e.CDMin), string(e.CDMax)
	openStart := strings.Contains(cdMin, openCoverage)
	openEnd := strings.Contains(cdMax, openCoverage)

	if !openStart {
		first, err := ParseCoverageTime(cdMin)
		if err != nil {
			return Body{}, false, fmt.Errorf("cd_min: %w", err)
		}
		if !first.Before(p.Stop) {
			return Body{}, false, nil
		}
		if after := first.Add(time.Second); after.After(b.Start) {
			b.Start = after
		}
	}
	if !openEnd {
		last, err := ParseCoverageTime(cdMax)
		if err != nil {
			return Body{}, false, fmt.Errorf("cd_max: %w", err)
		}
		if !last.After(p.Stop) {
			return Body{}, false, nil
		}
	}
	return b, true, nil
}

var coverageLayouts = []string{
	"2006-Jan-02 15:04:05.0000",
	"2006-Jan-02 15:04:05",
	"2006-Jan-02 15:04",
	"2006-Jan-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02",
	time.RFC3339,
}

// ParseCoverageTime parses a coverage bound as printed by the support API.
// Bounds carry no zone and are read as UTC.
func ParseCoverageTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "A.D. ")
	for _, layout := range coverageLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
