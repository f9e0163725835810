package attendance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is a mutex-guarded Store for local development and tests.
type Memory struct {
	mu        sync.Mutex
	students  map[string]Student
	classes   []ScheduledClass
	locations map[string]ClassLocation
	records   []Record
	devices   map[string]string // roll number -> device id
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		students:  make(map[string]Student),
		locations: make(map[string]ClassLocation),
		devices:   make(map[string]string),
	}
}

type seedClass struct {
	ScheduledClass
	Date string `json:"date"`
}

// LoadSeed adds the students, classes and locations in r, a JSON object with
// "students", "classes" and "locations" arrays. Class dates are "2006-01-02"
// calendar days in loc.
func (m *Memory) LoadSeed(r io.Reader, loc *time.Location) error {
	var seed struct {
		Students  []Student       `json:"students"`
		Classes   []seedClass     `json:"classes"`
		Locations []ClassLocation `json:"locations"`
	}
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return fmt.Errorf("decode seed: %w", err)
	}
	for _, s := range seed.Students {
		m.AddStudent(s)
	}
	for _, c := range seed.Classes {
		day, err := time.ParseInLocation(dateLayout, c.Date, loc)
		if err != nil {
			return fmt.Errorf("class %s date %q: %w", c.ClassCode, c.Date, err)
		}
		c.ScheduledClass.Date = day
		m.AddClass(c.ScheduledClass)
	}
	for _, l := range seed.Locations {
		m.AddLocation(l)
	}
	return nil
}

func (m *Memory) AddStudent(s Student) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[s.RollNumber] = s
}

func (m *Memory) AddClass(c ScheduledClass) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	m.classes = append(m.classes, c)
}

func (m *Memory) AddLocation(l ClassLocation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[strings.ToLower(l.ClassName)] = l
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) StudentByRoll(_ context.Context, rollNumber string) (*Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[rollNumber]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *Memory) ClassesOn(_ context.Context, year int, branch string, day time.Time) ([]ScheduledClass, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []ScheduledClass
	for _, c := range m.classes {
		if c.Year == year && c.Branch == branch && sameDay(c.Date, day) {
			res = append(res, c)
		}
	}
	return res, nil
}

func (m *Memory) ClassByCode(_ context.Context, classCode string) (*ScheduledClass, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *ScheduledClass
	for i := range m.classes {
		c := m.classes[i]
		if c.ClassCode == classCode && (found == nil || c.Date.After(found.Date)) {
			found = &c
		}
	}
	return found, nil
}

func (m *Memory) LocationByClassName(_ context.Context, className string) (*ClassLocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locations[strings.ToLower(className)]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (m *Memory) RecordFor(_ context.Context, rollNumber, className, subject string, day time.Time) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexOf(rollNumber, className, subject, day); i >= 0 {
		rec := m.records[i]
		return &rec, nil
	}
	return nil, nil
}

func (m *Memory) RecordsByRoll(_ context.Context, rollNumber string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []Record
	for _, rec := range m.records {
		if rec.RollNumber == rollNumber {
			res = append(res, rec)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].MarkedAt.After(res[j].MarkedAt) })
	return res, nil
}

// InsertRecord checks and appends under one lock, so it is atomic like the
// unique index in Postgres.
func (m *Memory) InsertRecord(_ context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexOf(rec.RollNumber, rec.ClassName, rec.Subject, rec.Day) >= 0 {
		return Record{}, ErrDuplicateRecord
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	m.records = append(m.records, rec)
	return rec, nil
}

func (m *Memory) BindDevice(_ context.Context, rollNumber, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bound, ok := m.devices[rollNumber]; ok {
		if bound != deviceID {
			return ErrDeviceBound
		}
		return nil
	}
	for _, d := range m.devices {
		if d == deviceID {
			return ErrDeviceBound
		}
	}
	m.devices[rollNumber] = deviceID
	return nil
}

// Records returns a copy of every stored record.
func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...)
}

func (m *Memory) indexOf(rollNumber, className, subject string, day time.Time) int {
	for i, rec := range m.records {
		if rec.RollNumber == rollNumber && rec.ClassName == className && rec.Subject == subject && sameDay(rec.Day, day) {
			return i
		}
	}
	return -1
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
