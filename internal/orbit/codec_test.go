package orbit

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"testing"
)

func sampleSeries(n int) Samples {
	s := Samples{}
	for i := 0; i < n; i++ {
		s.JD = append(s.JD, 2460000.5+float64(i))
		s.X = append(s.X, 1.0+0.01*float64(i))
		s.Y = append(s.Y, -0.5+0.02*float64(i))
	}
	return s
}

// recordFor builds a record carrying every field its category's layout allows.
func recordFor(c Category) *Record {
	r := &Record{
		ID:                   "2000433",
		Name:                 "433 Eros (A898 PA)",
		Category:             c,
		TrailDurationSeconds: 86400 * 30,
		Samples:              sampleSeries(3),
	}
	v := c.Variant()
	if v.HasCenter() {
		r.Center = "10"
	}
	if v.HasDistanceRatio() {
		r.DistanceRatio = Float32(0.25)
	}
	if v.HasSmallBodyFlags() {
		r.NearEarth = true
		r.Hazardous = c == NEOAsteroids
	}
	if c.Index()%2 == 0 {
		r.RadiusRatio = Float32(0.75)
	}
	return r
}

func encodeAll(t *testing.T, header float64, recs ...*Record) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := WriteHeader(&buf, header); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	enc := NewEncoder(&buf)
	for _, r := range recs {
		if err := enc.Encode(r); err != nil {
			t.Fatalf("Encode(%s): %v", r.ID, err)
		}
	}
	return buf.Bytes()
}

// TestRoundTripEveryDiscriminant verifies decode(encode(r)) == r for all
// eleven categories, including the k==6 and k==7 layout boundaries.
func TestRoundTripEveryDiscriminant(t *testing.T) {
	for _, c := range Categories() {
		t.Run(c.String(), func(t *testing.T) {
			want := recordFor(c)
			dec := NewDecoder(bytes.NewReader(encodeAll(t, 2460100.5, want)))

			got, err := dec.Next()
			if err != nil {
				t.Fatalf("Next: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, want)
			}
			if _, err := dec.Next(); !errors.Is(err, io.EOF) {
				t.Errorf("expected io.EOF after last record, got %v", err)
			}
		})
	}
}

// TestLayoutBoundaries checks the encoded size of the k==6 and k==7 records.
func TestLayoutBoundaries(t *testing.T) {
	const fixed = IDWidth + NameWidth + 1 + 1 + 4 + 4 // id, name, k, phy, trail, n

	spacecraft := &Record{ID: "-31", Name: "Voyager 1", Category: Spacecrafts, Center: "10", TrailDurationSeconds: 60}
	b, err := AppendRecord(nil, spacecraft)
	if err != nil {
		t.Fatalf("AppendRecord: %v", err)
	}
	if want := fixed + CenterWidth; len(b) != want {
		t.Errorf("spacecraft record: %d bytes, want %d (center, no distance ratio)", len(b), want)
	}

	comet := &Record{ID: "1000351", Name: "1P/Halley", Category: Comets, TrailDurationSeconds: 60}
	b, err = AppendRecord(nil, comet)
	if err != nil {
		t.Fatalf("AppendRecord: %v", err)
	}
	if want := fixed + 2; len(b) != want {
		t.Errorf("comet record: %d bytes, want %d (flags, no center)", len(b), want)
	}
}

// TestSatelliteRecordEndToEnd encodes a jovian moon without a radius ratio
// and checks every field, including the absent radius, survives decoding.
func TestSatelliteRecordEndToEnd(t *testing.T) {
	in := &Record{
		ID:                   "501",
		Name:                 "Io",
		Category:             JovianSatellites,
		Center:               "599",
		DistanceRatio:        Float32(0.3),
		TrailDurationSeconds: 86400,
		Samples: Samples{
			JD: []float64{2460000.5, 2460001.5},
			X:  []float64{0.0028, 0.0021},
			Y:  []float64{0.0001, -0.0018},
		},
	}
	dec := NewDecoder(bytes.NewReader(encodeAll(t, 2460007.5, in)))

	h, err := dec.Header()
	if err != nil {
		t.Fatalf("Header: %v", err)
	}
	if h != 2460007.5 {
		t.Errorf("header = %v, want 2460007.5", h)
	}

	out, err := dec.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if out.Category.Index() != 1 || out.Center != "599" {
		t.Errorf("category/center = %d/%q", out.Category.Index(), out.Center)
	}
	if out.DistanceRatio == nil || *out.DistanceRatio != float32(0.3) {
		t.Errorf("distance ratio = %v, want 0.3", out.DistanceRatio)
	}
	if out.RadiusRatio != nil {
		t.Errorf("radius ratio = %v, want absent", *out.RadiusRatio)
	}
	if out.TrailDurationSeconds != 86400 || out.Samples.Len() != 2 {
		t.Errorf("trail/len = %d/%d", out.TrailDurationSeconds, out.Samples.Len())
	}
	if !reflect.DeepEqual(out.Samples, in.Samples) {
		t.Errorf("samples = %+v, want %+v", out.Samples, in.Samples)
	}
}

// TestDecoderMultipleRecords verifies records are read until the stream ends.
func TestDecoderMultipleRecords(t *testing.T) {
	var recs []*Record
	for _, c := range Categories() {
		recs = append(recs, recordFor(c))
	}
	dec := NewDecoder(bytes.NewReader(encodeAll(t, 1, recs...)))

	var n int
	for {
		_, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("record %d: %v", n, err)
		}
		n++
	}
	if n != len(recs) {
		t.Errorf("decoded %d records, want %d", n, len(recs))
	}
}

// TestDecoderEmptyStream verifies an empty stream is a clean end, not corruption.
func TestDecoderEmptyStream(t *testing.T) {
	_, err := NewDecoder(bytes.NewReader(nil)).Next()
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}

	// Header only: no records.
	_, err = NewDecoder(bytes.NewReader(encodeAll(t, 1))).Next()
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF after header, got %v", err)
	}
}

// TestDecoderTruncated verifies every truncation point inside a record is
// reported as corruption rather than a clean end of stream.
func TestDecoderTruncated(t *testing.T) {
	full := encodeAll(t, 1, recordFor(Spacecrafts), recordFor(NEOAsteroids))
	first := len(encodeAll(t, 1, recordFor(Spacecrafts)))

	for cut := first + 1; cut < len(full); cut++ {
		dec := NewDecoder(bytes.NewReader(full[:cut]))
		if _, err := dec.Next(); err != nil {
			t.Fatalf("cut=%d: first record: %v", cut, err)
		}
		_, err := dec.Next()
		if !errors.Is(err, ErrCorrupt) {
			t.Fatalf("cut=%d: expected ErrCorrupt, got %v", cut, err)
		}
		if errors.Is(err, io.EOF) {
			t.Fatalf("cut=%d: corruption must not match io.EOF", cut)
		}
	}

	if _, err := NewDecoder(bytes.NewReader(full[:3])).Next(); !errors.Is(err, ErrCorrupt) {
		t.Errorf("short header: expected ErrCorrupt, got %v", err)
	}
}

// TestDecoderBadDiscriminant verifies an out-of-range category byte is corruption.
func TestDecoderBadDiscriminant(t *testing.T) {
	b := encodeAll(t, 1, recordFor(SunAndPlanets))
	b[HeaderSize+IDWidth+NameWidth] = 42

	if _, err := NewDecoder(bytes.NewReader(b)).Next(); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

// TestEncodeRejectsInvalid verifies records that cannot be encoded without
// loss are rejected.
func TestEncodeRejectsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *Record)
	}{
		{"long id", func(r *Record) { r.ID = "123456789" }},
		{"long name", func(r *Record) { r.Name = "C/2023 A3 (Tsuchinshan-ATLAS) fragment B" }},
		{"center on small body", func(r *Record) { r.Category = Comets; r.DistanceRatio = nil }},
		{"distance on spacecraft", func(r *Record) { r.Category = Spacecrafts }},
		{"flags on planet", func(r *Record) { r.NearEarth = true }},
		{"uneven series", func(r *Record) { r.Samples.Y = r.Samples.Y[:1] }},
		{"non-increasing epochs", func(r *Record) { r.Samples.JD[2] = r.Samples.JD[1] }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := recordFor(SunAndPlanets)
			tt.mutate(r)
			err := NewEncoder(io.Discard).Encode(r)
			if !errors.Is(err, ErrInvalidRecord) {
				t.Errorf("expected ErrInvalidRecord, got %v", err)
			}
		})
	}
}

// TestUnassignedDistanceRatioEncodesZero verifies a planet without a
// computed distance ratio still produces a well-formed record.
func TestUnassignedDistanceRatioEncodesZero(t *testing.T) {
	r := recordFor(SunAndPlanets)
	r.DistanceRatio = nil

	got, err := NewDecoder(bytes.NewReader(encodeAll(t, 1, r))).Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got.DistanceRatio == nil || *got.DistanceRatio != 0 {
		t.Errorf("distance ratio = %v, want 0", got.DistanceRatio)
	}
}

func TestTruncateString(t *testing.T) {
	if got := TruncateString("Io", 8); got != "Io" {
		t.Errorf("short string changed: %q", got)
	}
	if got := TruncateString("abcdefghij", 8); got != "abcdefgh" {
		t.Errorf("got %q", got)
	}
	// "é" is two bytes; cutting at 8 would split it.
	if got := TruncateString("abcdefgé", 8); got != "abcdefg" {
		t.Errorf("got %q, want split rune dropped", got)
	}
}
