package snapshot

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/DenizUgur/solarpaper/internal/orbit"
	"github.com/DenizUgur/solarpaper/internal/transform"
)

// Reader decodes a snapshot file.
type Reader struct {
	f   *os.File
	zr  *gzip.Reader
	dec *orbit.Decoder
}

// Open opens the snapshot at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("reading snapshot %s: %w", path, err)
	}
	return &Reader{f: f, zr: zr, dec: orbit.NewDecoder(zr)}, nil
}

// ValidUntil returns the header Julian date.
func (r *Reader) ValidUntil() (float64, error) { return r.dec.Header() }

// Next returns the next record, or io.EOF at the end of the file.
func (r *Reader) Next() (*orbit.Record, error) { return r.dec.Next() }

// Close releases the file.
func (r *Reader) Close() error {
	zerr := r.zr.Close()
	if err := r.f.Close(); err != nil {
		return err
	}
	return zerr
}

// Inventory describes the content of a snapshot.
type Inventory struct {
	ValidUntilJD float64
	ValidUntil   time.Time
	Records      int
	Samples      int
	PerCategory  [orbit.NumCategories]int
	Radius       int // records carrying a radius ratio
}

// Inspect reads the snapshot at path and counts its records.
func Inspect(path string) (Inventory, error) {
	r, err := Open(path)
	if err != nil {
		return Inventory{}, err
	}
	defer r.Close()

	var inv Inventory
	jd, err := r.ValidUntil()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return inv, fmt.Errorf("%w: empty snapshot", orbit.ErrCorrupt)
		}
		return inv, err
	}
	inv.ValidUntilJD = jd
	inv.ValidUntil = transform.TimeFromJD(jd)

	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return inv, nil
		}
		if err != nil {
			return inv, err
		}
		inv.Records++
		inv.Samples += rec.Samples.Len()
		inv.PerCategory[rec.Category.Index()]++
		if rec.RadiusRatio != nil {
			inv.Radius++
		}
	}
}
