package attendance

import (
	"context"
	"strings"
	"testing"
)

const seedJSON = `{
  "students": [{"rollNumber": "21CS001", "name": "Ravi", "year": 3, "branch": "CSE"}],
  "classes": [
    {"className": "Room 301", "subject": "DBMS", "date": "2026-10-18", "startTime": "10:00", "endTime": "11:00", "classCode": "DB42", "year": 3, "branch": "CSE"},
    {"className": "Room 301", "subject": "DBMS", "date": "2026-10-11", "startTime": "10:00", "endTime": "11:00", "classCode": "DB42", "year": 3, "branch": "CSE"}
  ],
  "locations": [{"className": "Room 301", "latitude": 12.97, "longitude": 77.59, "radiusMeters": 40, "beaconId": "B-1"}]
}`

func TestMemoryLoadSeed(t *testing.T) {
	mem := NewMemory()
	if err := mem.LoadSeed(strings.NewReader(seedJSON), ist); err != nil {
		t.Fatalf("load seed: %v", err)
	}
	ctx := context.Background()

	s, _ := mem.StudentByRoll(ctx, "21CS001")
	if s == nil || s.Branch != "CSE" {
		t.Fatalf("expected seeded student, got %+v", s)
	}
	c, _ := mem.ClassByCode(ctx, "DB42")
	if c == nil || !c.Date.Equal(today) {
		t.Fatalf("expected the most recent class, got %+v", c)
	}
	l, _ := mem.LocationByClassName(ctx, "room 301")
	if l == nil || l.RadiusMeters != 40 {
		t.Fatalf("expected case-insensitive location match, got %+v", l)
	}
	classes, _ := mem.ClassesOn(ctx, 3, "CSE", today)
	if len(classes) != 1 {
		t.Fatalf("expected 1 class today, got %d", len(classes))
	}
}

func TestMemoryLoadSeedBadDate(t *testing.T) {
	bad := `{"classes": [{"classCode": "X", "date": "18-10-2026"}]}`
	if err := NewMemory().LoadSeed(strings.NewReader(bad), ist); err == nil {
		t.Fatalf("expected error for bad date")
	}
}

func TestMemoryBindDevice(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	if err := mem.BindDevice(ctx, "a", "dev-1"); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := mem.BindDevice(ctx, "b", "dev-1"); err != ErrDeviceBound {
		t.Fatalf("expected shared device to be rejected, got %v", err)
	}
}
