package orbit

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"unicode/utf8"
)

// Record layout (little-endian):
//
//	id        [8]byte  null padded
//	name      [32]byte null padded
//	category  int8
//	neo, pha  uint8, uint8        small bodies (discriminant > 6)
//	distance  float32             major bodies, satellites (discriminant < 6)
//	center    [8]byte             all but small bodies (discriminant < 7)
//	phy       uint8               1 when a radius ratio follows
//	radius    float32             only if phy == 1
//	trail     uint32              seconds
//	n         uint32
//	jd        n x float64
//	x         n x float64
//	y         n x float64
//
// The file starts with a single float64 header: the Julian date the
// snapshot stays valid until.

// ErrCorrupt is returned when the stream ends or holds garbage in the middle
// of a record. It is distinct from io.EOF, which marks a clean end of stream.
var ErrCorrupt = errors.New("corrupt snapshot")

var le = binary.LittleEndian

// HeaderSize is the size in bytes of the snapshot header.
const HeaderSize = 8

// WriteHeader writes the snapshot header.
func WriteHeader(w io.Writer, validUntilJD float64) error {
	var b [HeaderSize]byte
	le.PutUint64(b[:], math.Float64bits(validUntilJD))
	_, err := w.Write(b[:])
	return err
}

// ReadHeader reads the snapshot header. An empty stream yields io.EOF.
func ReadHeader(r io.Reader) (float64, error) {
	var b [HeaderSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, fmt.Errorf("%w: short header: %w", ErrCorrupt, err)
		}
		return 0, err
	}
	return math.Float64frombits(le.Uint64(b[:])), nil
}

// AppendRecord appends the encoding of r to buf.
func AppendRecord(buf []byte, r *Record) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return buf, err
	}

	buf = appendFixed(buf, r.ID, IDWidth)
	buf = appendFixed(buf, r.Name, NameWidth)
	buf = append(buf, byte(r.Category))

	v := r.Variant()
	if v.HasSmallBodyFlags() {
		buf = append(buf, boolByte(r.NearEarth), boolByte(r.Hazardous))
	}
	if v.HasDistanceRatio() {
		// The column is mandatory for these variants; an unassigned ratio
		// is written as 0.
		var d float32
		if r.DistanceRatio != nil {
			d = *r.DistanceRatio
		}
		buf = le.AppendUint32(buf, math.Float32bits(d))
	}
	if v.HasCenter() {
		buf = appendFixed(buf, r.Center, CenterWidth)
	}

	if r.RadiusRatio != nil {
		buf = append(buf, 1)
		buf = le.AppendUint32(buf, math.Float32bits(*r.RadiusRatio))
	} else {
		buf = append(buf, 0)
	}

	buf = le.AppendUint32(buf, r.TrailDurationSeconds)
	buf = le.AppendUint32(buf, uint32(r.Samples.Len()))
	for _, series := range [][]float64{r.Samples.JD, r.Samples.X, r.Samples.Y} {
		for _, f := range series {
			buf = le.AppendUint64(buf, math.Float64bits(f))
		}
	}
	return buf, nil
}

// Encoder writes records to an output stream.
type Encoder struct {
	w   io.Writer
	buf []byte
	n   int64
}

// NewEncoder returns an Encoder writing to w. The caller writes the header.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes one record.
func (e *Encoder) Encode(r *Record) error {
	buf, err := AppendRecord(e.buf[:0], r)
	if err != nil {
		return err
	}
	e.buf = buf
	n, err := e.w.Write(buf)
	e.n += int64(n)
	if err != nil {
		return fmt.Errorf("writing record %s: %w", r.ID, err)
	}
	return nil
}

// BytesWritten returns the number of record bytes written so far.
func (e *Encoder) BytesWritten() int64 { return e.n }

// Decoder reads a snapshot stream: the header followed by records until
// the stream is exhausted.
type Decoder struct {
	r          *bufio.Reader
	headerDone bool
	header     float64
	scratch    [NameWidth]byte
}

// NewDecoder returns a Decoder for a stream positioned at its start.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Header returns the snapshot header, reading it if needed.
func (d *Decoder) Header() (float64, error) {
	if d.headerDone {
		return d.header, nil
	}
	h, err := ReadHeader(d.r)
	if err != nil {
		return 0, err
	}
	d.header, d.headerDone = h, true
	return h, nil
}

// Next decodes the next record. It returns io.EOF when the stream ends
// cleanly between records and an error wrapping ErrCorrupt when it ends
// inside one.
func (d *Decoder) Next() (*Record, error) {
	if _, err := d.Header(); err != nil {
		return nil, err
	}

	id, err := d.fixed(IDWidth)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, corrupt("id", "", err)
	}
	r := &Record{ID: id}

	if r.Name, err = d.fixed(NameWidth); err != nil {
		return nil, corrupt("name", id, err)
	}
	k, err := d.r.ReadByte()
	if err != nil {
		return nil, corrupt("category", id, err)
	}
	r.Category = Category(int8(k))
	if !r.Category.Valid() {
		return nil, fmt.Errorf("%w: record %q has category discriminant %d", ErrCorrupt, id, int8(k))
	}

	v := r.Variant()
	if v.HasSmallBodyFlags() {
		if r.NearEarth, err = d.flag(); err != nil {
			return nil, corrupt("near-earth flag", id, err)
		}
		if r.Hazardous, err = d.flag(); err != nil {
			return nil, corrupt("hazardous flag", id, err)
		}
	}
	if v.HasDistanceRatio() {
		f, err := d.float32()
		if err != nil {
			return nil, corrupt("distance ratio", id, err)
		}
		r.DistanceRatio = &f
	}
	if v.HasCenter() {
		if r.Center, err = d.fixed(CenterWidth); err != nil {
			return nil, corrupt("center", id, err)
		}
	}

	phy, err := d.flag()
	if err != nil {
		return nil, corrupt("radius flag", id, err)
	}
	if phy {
		f, err := d.float32()
		if err != nil {
			return nil, corrupt("radius ratio", id, err)
		}
		r.RadiusRatio = &f
	}

	if r.TrailDurationSeconds, err = d.uint32(); err != nil {
		return nil, corrupt("trail duration", id, err)
	}
	n, err := d.uint32()
	if err != nil {
		return nil, corrupt("sample count", id, err)
	}
	for _, s := range []struct {
		name string
		dst  *[]float64
	}{{"epochs", &r.Samples.JD}, {"x", &r.Samples.X}, {"y", &r.Samples.Y}} {
		if *s.dst, err = d.float64s(n); err != nil {
			return nil, corrupt(s.name, id, err)
		}
	}
	return r, nil
}

func corrupt(field, id string, err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("%w: reading %s of record %q: %w", ErrCorrupt, field, id, err)
}

func (d *Decoder) fixed(width int) (string, error) {
	b := d.scratch[:width]
	if _, err := io.ReadFull(d.r, b); err != nil {
		return "", err
	}
	return strings.Trim(string(b), "\x00"), nil
}

func (d *Decoder) flag() (bool, error) {
	b, err := d.r.ReadByte()
	return b == 1, err
}

func (d *Decoder) uint32() (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return 0, err
	}
	return le.Uint32(b[:]), nil
}

func (d *Decoder) float32() (float32, error) {
	u, err := d.uint32()
	return math.Float32frombits(u), err
}

func (d *Decoder) float64s(n uint32) ([]float64, error) {
	// Grow as data arrives so a corrupt count cannot force a huge allocation.
	out := make([]float64, 0, min(int(n), 1<<14))
	var b [8]byte
	for i := uint32(0); i < n; i++ {
		if _, err := io.ReadFull(d.r, b[:]); err != nil {
			return nil, err
		}
		out = append(out, math.Float64frombits(le.Uint64(b[:])))
	}
	return out, nil
}

func appendFixed(buf []byte, s string, width int) []byte {
	buf = append(buf, s...)
	for i := len(s); i < width; i++ {
		buf = append(buf, 0)
	}
	return buf
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// TruncateString shortens s to at most width bytes without splitting a
// UTF-8 sequence.
func TruncateString(s string, width int) string {
	if len(s) <= width {
		return s
	}
	s = s[:width]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
