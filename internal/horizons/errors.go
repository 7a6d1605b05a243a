package horizons

import (
	"errors"
	"fmt"
)

// ErrInsufficientData means Horizons has no ephemeris for the requested
// window. It is an omission, not a failure.
var ErrInsufficientData = errors.New("insufficient ephemeris data")

// TransportError is a failed or non-success exchange with the API.
type TransportError struct {
	ID     string
	Status int // 0 when no response was received
	Body   []byte
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("horizons %s: status %d", e.ID, e.Status)
	}
	return fmt.Sprintf("horizons %s: %v", e.ID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Payload returns the raw response body, if any.
func (e *TransportError) Payload() []byte { return e.Body }

// ParseError is a response body that could not be interpreted.
type ParseError struct {
	ID   string
	Body []byte
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing horizons response for %s: %v", e.ID, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Payload returns the raw response body.
func (e *ParseError) Payload() []byte { return e.Body }
