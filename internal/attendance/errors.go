package attendance

import (
	"errors"
	"fmt"
)

// ErrDuplicateRecord is returned by a Store when the unique
// (roll number, class name, subject, day) constraint rejects an insert.
var ErrDuplicateRecord = errors.New("attendance record already exists")

// ErrDeviceBound is returned when the roll number or the device is already bound elsewhere.
var ErrDeviceBound = errors.New("device binding conflict")

// Kind classifies a validation failure.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindOutOfRange
	KindMisconfigured
	KindBeaconMismatch
	KindCodeMismatch
	KindTooEarly
	KindWindowExpired
	KindAlreadyMarked
)

// Entities named by KindNotFound and KindMisconfigured.
const (
	EntityStudent  = "student"
	EntityClass    = "class"
	EntityLocation = "location"
	EntityBeacon   = "beacon"
)

// Error is a terminal, client-explainable failure. Only the fields relevant to
// Kind are set. Anything that is not an *Error is an internal fault.
type Error struct {
	Kind           Kind
	Entity         string
	Distance       float64
	Radius         float64
	ExpectedBeacon string
	ReceivedBeacon string
	ExpectedCode   string
	Minutes        int
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		return e.Entity + " not found"
	case KindOutOfRange:
		return fmt.Sprintf("outside classroom: %.0fm away, allowed %.0fm", e.Distance, e.Radius)
	case KindMisconfigured:
		return e.Entity + " not configured for this class"
	case KindBeaconMismatch:
		return "classroom beacon not detected"
	case KindCodeMismatch:
		return "class code does not match"
	case KindTooEarly:
		return fmt.Sprintf("class starts in %d minutes", e.Minutes)
	case KindWindowExpired:
		return fmt.Sprintf("attendance window closed %d minutes ago", e.Minutes)
	case KindAlreadyMarked:
		return "attendance already marked"
	default:
		return "attendance error"
	}
}

func notFound(entity string) *Error { return &Error{Kind: KindNotFound, Entity: entity} }

// AsError unwraps err into a validation failure, if it is one.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err is a validation failure of kind k.
func IsKind(err error, k Kind) bool {
	e, ok := AsError(err)
	return ok && e.Kind == k
}
