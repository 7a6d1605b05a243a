package horizons

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/DenizUgur/solarpaper/internal/orbit"
)

const (
	markStart        = "$$SOE"
	markEnd          = "$$EOE"
	insufficientText = "Insufficient ephemeris data"
)

// ParseVectors extracts the JD, X and Y columns of a CSV vector table
// (VEC_TABLE=2). Rows are read between the $$SOE and $$EOE markers; each
// row ends with a trailing comma.
func ParseVectors(body []byte) (orbit.Samples, error) {
	if bytes.Contains(body, []byte(insufficientText)) {
		return orbit.Samples{}, ErrInsufficientData
	}

	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		s       orbit.Samples
		inTable bool
		closed  bool
		row     int
	)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r ")
		if !inTable {
			if strings.Contains(line, markStart) {
				inTable = true
			}
			continue
		}
		if strings.Contains(line, markEnd) {
			closed = true
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		row++

		fields := strings.Split(line, ",")
		fields = fields[:len(fields)-1]
		if len(fields) < 4 {
			return orbit.Samples{}, fmt.Errorf("row %d: %d columns, want at least 4", row, len(fields))
		}
		var v [3]float64
		for i, col := range [3]int{0, 2, 3} {
			f, err := strconv.ParseFloat(strings.TrimSpace(fields[col]), 64)
			if err != nil {
				return orbit.Samples{}, fmt.Errorf("row %d column %d: %w", row, col, err)
			}
			v[i] = f
		}
		if n := len(s.JD); n > 0 && !(v[0] > s.JD[n-1]) {
			return orbit.Samples{}, fmt.Errorf("row %d: epoch %.6f not after %.6f", row, v[0], s.JD[n-1])
		}
		s.JD = append(s.JD, v[0])
		s.X = append(s.X, v[1])
		s.Y = append(s.Y, v[2])
	}
	if err := scanner.Err(); err != nil {
		return orbit.Samples{}, fmt.Errorf("reading vector table: %w", err)
	}

	switch {
	case !inTable:
		return orbit.Samples{}, errors.New("no " + markStart + " marker")
	case !closed:
		return orbit.Samples{}, errors.New("no " + markEnd + " marker")
	case s.Len() == 0:
		return orbit.Samples{}, errors.New("empty vector table")
	}
	return s, nil
}
