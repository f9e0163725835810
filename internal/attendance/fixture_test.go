package attendance

import (
	"context"
	"errors"
	"time"

	"classattend/internal/clock"
)

var ist = time.FixedZone("IST", 5*3600+1800)

var (
	today       = time.Date(2026, 10, 18, 0, 0, 0, 0, ist)
	classStart  = time.Date(2026, 10, 18, 10, 0, 0, 0, ist)
	testStudent = Student{RollNumber: "21CS042", Name: "Asha", Year: 3, Branch: "CSE"}
	testClass   = ScheduledClass{
		ClassName:   "Room 301",
		Subject:     "DBMS",
		TeacherName: "Dr. Rao",
		Date:        today,
		Day:         "Sunday",
		StartTime:   "10:00",
		EndTime:     "11:00",
		ClassCode:   "DB42",
		Year:        3,
		Branch:      "CSE",
	}
	testLocation = ClassLocation{
		ClassName:    "ROOM 301",
		Latitude:     12.9716,
		Longitude:    77.5946,
		RadiusMeters: 50,
		BeaconID:     "abc123",
	}
)

func newFixture(now time.Time) (*Service, *Memory) {
	mem := NewMemory()
	mem.AddStudent(testStudent)
	mem.AddClass(testClass)
	mem.AddLocation(testLocation)
	return NewService(mem, clock.Fixed{At: now}), mem
}

func validSubmission() Submission {
	return Submission{
		RollNumber: testStudent.RollNumber,
		ClassName:  testClass.ClassName,
		ClassCode:  testClass.ClassCode,
		Latitude:   12.97161,
		Longitude:  77.59462,
		BeaconID:   " ABC123 ",
	}
}

// failingStore reports err from every call.
type failingStore struct {
	*Memory
	err error
}

func (f failingStore) StudentByRoll(context.Context, string) (*Student, error) { return nil, f.err }

var errStoreDown = errors.New("connection refused")

func fixedAt(t time.Time) clock.Fixed { return clock.Fixed{At: t} }
