// Package sbdb queries the JPL Small-Body Database for the orbital elements
// of comets and asteroids.
package sbdb

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/DenizUgur/solarpaper/internal/httputil"
	"github.com/DenizUgur/solarpaper/internal/orbit"
	"github.com/DenizUgur/solarpaper/internal/propagation"
	"github.com/DenizUgur/solarpaper/internal/transform"
)

const DefaultURL = "https://ssd-api.jpl.nasa.gov/sbdb_query.api"

const fields = "spkid,full_name,neo,pha,a,e,i,om,w,ma,epoch"

// firstElement is the index of the first orbital-element column.
const firstElement = 4

// cometWindow bounds the perihelion time of listed comets around now.
const cometWindow = 10 * 365 * 24 * time.Hour

// Object is one small body with its osculating elements.
type Object struct {
	ID        string
	Name      string
	NearEarth bool
	Hazardous bool
	Elements  propagation.Elements
}

// Client queries the SBDB query API.
type Client struct {
	http   *httputil.Client
	url    string
	logger *slog.Logger
}

// NewClient returns a Client. An empty baseURL selects DefaultURL.
func NewClient(baseURL string, rateLimit float64, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		http: httputil.NewClient(httputil.Config{
			Timeout:   timeout,
			RateLimit: rateLimit,
			RateBurst: 1,
		}),
		url:    baseURL,
		logger: logger,
	}
}

type constraint struct {
	And []string `json:"AND"`
}

// Query returns the query parameters selecting category c at instant now.
func Query(c orbit.Category, now time.Time) (url.Values, error) {
	q := url.Values{
		"fields":    {fields},
		"full-prec": {"true"},
		"sb-sat":    {"false"},
	}

	var (
		classes []string
		cdata   constraint
	)
	switch c {
	case orbit.Comets:
		q.Set("sb-kind", "c")
		q.Set("sb-xfrag", "1")
		classes = []string{"ETc", "HTC", "HYP", "COM"}
		cdata.And = []string{
			"tp|LT|" + formatJD(transform.CivilJD(now.Add(cometWindow))),
			"tp|GT|" + formatJD(transform.CivilJD(now.Add(-cometWindow))),
		}
	case orbit.NEOAsteroids:
		classes = []string{"IEO", "ATE", "APO", "AMO"}
		cdata.And = []string{"diameter|GE|2.0"}
	case orbit.IMBAsteroids:
		classes = []string{"IMB"}
		cdata.And = []string{"diameter|GT|0"}
	case orbit.MBAAsteroids:
		classes = []string{"MBA"}
		cdata.And = []string{"diameter|GE|10"}
	default:
		return nil, fmt.Errorf("category %s is not a small-body category", c)
	}
	if c != orbit.Comets {
		q.Set("sb-ns", "n")
		q.Set("sb-kind", "a")
		q.Set("sb-xfrag", "true")
	}

	b, err := json.Marshal(cdata)
	if err != nil {
		return nil, fmt.Errorf("encoding sb-cdata: %w", err)
	}
	q.Set("sb-class", strings.Join(classes, ","))
	q.Set("sb-cdata", string(b))
	return q, nil
}

func formatJD(jd float64) string { return strconv.FormatFloat(jd, 'f', -1, 64) }

type queryResponse struct {
	Fields []string `json:"fields"`
	Data   [][]any  `json:"data"`
}

// Objects lists the small bodies of category c.
func (c *Client) Objects(ctx context.Context, cat orbit.Category, now time.Time) ([]Object, error) {
	q, err := Query(cat, now)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	body, err := c.http.Get(ctx, c.url, q)
	if err != nil {
		return nil, fmt.Errorf("querying sbdb for %s: %w", cat, err)
	}

	objects, skipped, err := ParseRows(body)
	if err != nil {
		return nil, fmt.Errorf("sbdb %s: %w", cat, err)
	}
	if skipped > 0 {
		c.logger.Warn("skipped sbdb rows with missing elements",
			"component", "sbdb",
			"category", cat.String(),
			"skipped", skipped,
		)
	}
	c.logger.Info("sbdb objects fetched",
		"component", "sbdb",
		"category", cat.String(),
		"count", len(objects),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return objects, nil
}

// ParseRows decodes an SBDB query response. Rows missing any orbital
// element are skipped and counted.
func ParseRows(body []byte) ([]Object, int, error) {
	var resp queryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, 0, fmt.Errorf("decoding response: %w", err)
	}

	var (
		out     []Object
		skipped int
	)
	for _, row := range resp.Data {
		obj, ok := parseRow(row)
		if !ok {
			skipped++
			continue
		}
		out = append(out, obj)
	}
	return out, skipped, nil
}

func parseRow(row []any) (Object, bool) {
	if len(row) < firstElement+7 {
		return Object{}, false
	}
	cols := make([]string, len(row))
	for i, v := range row {
		cols[i] = cell(v)
	}

	var el [7]float64
	for i := range el {
		s := cols[firstElement+i]
		if s == "" {
			return Object{}, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Object{}, false
		}
		el[i] = f
	}
	if cols[0] == "" {
		return Object{}, false
	}

	return Object{
		ID:        cols[0],
		Name:      cols[1],
		NearEarth: cols[2] == "Y",
		Hazardous: cols[3] == "Y",
		Elements: propagation.Elements{
			A:     el[0],
			E:     el[1],
			I:     el[2],
			Node:  el[3],
			Peri:  el[4],
			M:     el[5],
			Epoch: el[6],
		},
	}, true
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}
