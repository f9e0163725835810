// Package clock provides the single source of "now" for scheduling decisions.
package clock

import "time"

// Clock returns the current instant expressed in a fixed reference zone.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// Reference reads the wall clock and converts it into loc.
type Reference struct {
	loc *time.Location
}

// NewReference returns a wall clock pinned to loc (UTC when nil).
func NewReference(loc *time.Location) *Reference {
	if loc == nil {
		loc = time.UTC
	}
	return &Reference{loc: loc}
}

func (r *Reference) Now() time.Time { return time.Now().In(r.loc) }

func (r *Reference) Location() *time.Location { return r.loc }

// Fixed always reports the same instant. Used in tests.
type Fixed struct {
	At time.Time
}

func (f Fixed) Now() time.Time { return f.At }

func (f Fixed) Location() *time.Location { return f.At.Location() }

// Day returns midnight of t's calendar day in loc.
func Day(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// At combines the calendar day of day with an "HH:MM" or "HH:MM:SS" clock time in loc.
func At(day time.Time, clockTime string, loc *time.Location) (time.Time, error) {
	var parsed time.Time
	var err error
	for _, layout := range []string{"15:04:05", "15:04"} {
		parsed, err = time.Parse(layout, clockTime)
		if err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, err
	}
	d := day.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), parsed.Hour(), parsed.Minute(), parsed.Second(), 0, loc), nil
}
