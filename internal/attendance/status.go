package attendance

import (
	"fmt"
	"math"
	"time"
)

const (
	// AttendanceWindow is how long after a class starts attendance may be marked.
	AttendanceWindow = 15 * time.Minute
	// StartingSoonLead is how close to its start a class counts as starting soon.
	StartingSoonLead = 5 * time.Minute
)

// Status is the display state of a scheduled class for one student.
type Status uint8

const (
	StatusUpcoming Status = iota
	StatusStartingSoon
	StatusActive
	StatusExpired
	StatusMarked
)

var statusNames = [...]string{
	StatusUpcoming:     "upcoming",
	StatusStartingSoon: "starting_soon",
	StatusActive:       "active",
	StatusExpired:      "expired",
	StatusMarked:       "marked",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", s)
}

func (s Status) MarshalText() ([]byte, error) {
	if int(s) >= len(statusNames) {
		return nil, fmt.Errorf("unknown status %d", s)
	}
	return []byte(statusNames[s]), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	for i, name := range statusNames {
		if name == string(b) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", b)
}

// DeriveStatus maps now against a class's start and end. First match wins:
// marked, ended, inside the attendance window, starting soon, upcoming.
func DeriveStatus(now, start, end time.Time, marked bool) Status {
	untilStart := start.Sub(now)
	fromStart := now.Sub(start)
	switch {
	case marked:
		return StatusMarked
	case now.After(end):
		return StatusExpired
	case fromStart >= 0 && fromStart <= AttendanceWindow:
		return StatusActive
	case untilStart > 0 && untilStart <= StartingSoonLead:
		return StatusStartingSoon
	case untilStart > StartingSoonLead:
		return StatusUpcoming
	default:
		return StatusExpired
	}
}

// minutesUntil rounds d up to whole minutes, clamped at zero.
func minutesUntil(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Minutes()))
}

// minutesRemaining is the whole minutes left in the attendance window after
// fromStart has elapsed, clamped at zero.
func minutesRemaining(fromStart time.Duration) int {
	left := int(AttendanceWindow/time.Minute) - int(math.Floor(fromStart.Minutes()))
	if left < 0 {
		return 0
	}
	return left
}
