package query

import (
	"errors"
	"fmt"

	"github.com/star/tlepos/internal/propagation"
	"github.com/star/tlepos/internal/tle"
	"github.com/star/tlepos/internal/transform"
)

// Kind is the closed set of failure categories a query can report.
type Kind uint8

const (
	KindFormat      Kind = iota + 1 // malformed TLE field or calendar instant
	KindChecksum                    // TLE line checksum mismatch
	KindConvergence                 // Kepler or geodetic iteration hit its cap
	KindDecay                       // unphysical or decayed state; the catch-all
	KindNotFound                    // name absent from the catalog
)

func (k Kind) String() string {
	switch k {
	case KindFormat:
		return "FormatError"
	case KindChecksum:
		return "ChecksumError"
	case KindConvergence:
		return "ConvergenceError"
	case KindDecay:
		return "DecayError"
	case KindNotFound:
		return "NotFoundError"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrFormat      = errors.New("malformed input")
	ErrChecksum    = errors.New("checksum mismatch")
	ErrConvergence = errors.New("iteration did not converge")
	ErrDecay       = errors.New("could not compute position")
	ErrNotFound    = errors.New("satellite not found")
)

func (k Kind) sentinel() error {
	switch k {
	case KindFormat:
		return ErrFormat
	case KindChecksum:
		return ErrChecksum
	case KindConvergence:
		return ErrConvergence
	case KindDecay:
		return ErrDecay
	case KindNotFound:
		return ErrNotFound
	}
	return nil
}

// Error is the only error type returned by the facade.
type Error struct {
	Kind Kind
	Name string // catalog name, empty for ad hoc entries
	Err  error
}

func (e *Error) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %q: %v", e.Kind, e.Name, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf reports the category of err, or 0 for a nil error.
func KindOf(err error) Kind {
	if err == nil {
		return 0
	}
	var qerr *Error
	if errors.As(err, &qerr) {
		return qerr.Kind
	}
	return classify(err)
}

// classify maps an error from the lower layers onto a Kind. Anything not
// recognized is a decay: the generic "could not compute" bucket.
func classify(err error) Kind {
	switch {
	case errors.Is(err, tle.ErrChecksum):
		return KindChecksum
	case errors.Is(err, tle.ErrFormat), errors.Is(err, transform.ErrInvalidCalendar):
		return KindFormat
	case errors.Is(err, propagation.ErrKeplerNotConverged), errors.Is(err, transform.ErrGeodeticNotConverged):
		return KindConvergence
	case errors.Is(err, tle.ErrNotFound):
		return KindNotFound
	}
	// Every *propagation.Error code lands here too.
	return KindDecay
}

// wrap classifies err and attaches name. An *Error passes through.
func wrap(name string, err error) error {
	if err == nil {
		return nil
	}
	var qerr *Error
	if errors.As(err, &qerr) {
		return qerr
	}
	return &Error{Kind: classify(err), Name: name, Err: err}
}
