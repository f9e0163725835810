package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"classattend/internal/clock"
	"classattend/internal/geo"
)

// Service validates and records attendance and derives class notifications.
type Service struct {
	store Store
	clock clock.Clock
}

// NewService creates a service backed by store, reading "now" from clk.
func NewService(store Store, clk clock.Clock) *Service {
	return &Service{store: store, clock: clk}
}

// Submit runs the validation gates in order and writes one Present record when
// all of them pass. No gate writes anything.
func (s *Service) Submit(ctx context.Context, sub Submission) (Receipt, error) {
	now := s.clock.Now()
	loc := s.clock.Location()

	student, err := s.store.StudentByRoll(ctx, sub.RollNumber)
	if err != nil {
		return Receipt{}, fmt.Errorf("lookup student: %w", err)
	}
	if student == nil {
		return Receipt{}, notFound(EntityStudent)
	}

	class, err := s.store.ClassByCode(ctx, sub.ClassCode)
	if err != nil {
		return Receipt{}, fmt.Errorf("lookup class: %w", err)
	}
	if class == nil {
		return Receipt{}, notFound(EntityClass)
	}

	location, err := s.store.LocationByClassName(ctx, class.ClassName)
	if err != nil {
		return Receipt{}, fmt.Errorf("lookup location: %w", err)
	}
	if location == nil {
		return Receipt{}, notFound(EntityLocation)
	}

	distance := geo.Distance(
		geo.Point{Lat: sub.Latitude, Lng: sub.Longitude},
		geo.Point{Lat: location.Latitude, Lng: location.Longitude},
	)
	if distance > location.RadiusMeters {
		return Receipt{}, &Error{Kind: KindOutOfRange, Distance: distance, Radius: location.RadiusMeters}
	}

	if err := checkBeacon(location.BeaconID, sub.BeaconID); err != nil {
		return Receipt{}, err
	}

	if sub.ClassCode != class.ClassCode {
		return Receipt{}, &Error{Kind: KindCodeMismatch, ExpectedCode: class.ClassCode}
	}

	today := clock.Day(now, loc)
	start, err := clock.At(today, class.StartTime, loc)
	if err != nil {
		return Receipt{}, fmt.Errorf("class %s start time %q: %w", class.ClassCode, class.StartTime, err)
	}
	if now.Before(start) {
		return Receipt{}, &Error{Kind: KindTooEarly, Minutes: minutesUntil(start.Sub(now))}
	}
	if closes := start.Add(AttendanceWindow); now.After(closes) {
		return Receipt{}, &Error{Kind: KindWindowExpired, Minutes: minutesUntil(now.Sub(closes))}
	}

	rec, err := s.store.InsertRecord(ctx, Record{
		RollNumber: student.RollNumber,
		ClassName:  class.ClassName,
		Subject:    class.Subject,
		ClassCode:  class.ClassCode,
		Status:     StatusPresent,
		MarkedAt:   now,
		Day:        today,
	})
	if errors.Is(err, ErrDuplicateRecord) {
		return Receipt{}, &Error{Kind: KindAlreadyMarked}
	}
	if err != nil {
		return Receipt{}, fmt.Errorf("insert record: %w", err)
	}

	marked := rec.MarkedAt.In(loc)
	return Receipt{
		ID:        rec.ID,
		ClassName: rec.ClassName,
		Subject:   rec.Subject,
		Date:      marked.Format(dateLayout),
		Time:      marked.Format("15:04:05"),
		MarkedAt:  rec.MarkedAt,
	}, nil
}

// NormalizeBeaconID trims whitespace and lower-cases a beacon identifier.
func NormalizeBeaconID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func checkBeacon(expected, received string) error {
	want := NormalizeBeaconID(expected)
	if want == "" {
		return &Error{Kind: KindMisconfigured, Entity: EntityBeacon}
	}
	got := NormalizeBeaconID(received)
	if got == "" || got != want {
		return &Error{Kind: KindBeaconMismatch, ExpectedBeacon: want, ReceivedBeacon: got}
	}
	return nil
}

// RegisterDevice binds a device to an existing student.
func (s *Service) RegisterDevice(ctx context.Context, rollNumber, deviceID string) error {
	if strings.TrimSpace(deviceID) == "" {
		return errors.New("device id required")
	}
	student, err := s.store.StudentByRoll(ctx, rollNumber)
	if err != nil {
		return fmt.Errorf("lookup student: %w", err)
	}
	if student == nil {
		return notFound(EntityStudent)
	}
	return s.store.BindDevice(ctx, rollNumber, deviceID)
}
