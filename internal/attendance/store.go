package attendance

import (
	"context"
	"time"
)

// Store is the data access the service needs. Lookups return (nil, nil) when
// nothing matches. Days are midnight in the reference zone.
type Store interface {
	StudentByRoll(ctx context.Context, rollNumber string) (*Student, error)
	ClassesOn(ctx context.Context, year int, branch string, day time.Time) ([]ScheduledClass, error)
	ClassByCode(ctx context.Context, classCode string) (*ScheduledClass, error)
	LocationByClassName(ctx context.Context, className string) (*ClassLocation, error)
	RecordFor(ctx context.Context, rollNumber, className, subject string, day time.Time) (*Record, error)
	RecordsByRoll(ctx context.Context, rollNumber string) ([]Record, error)

	// InsertRecord must be atomic with respect to the uniqueness of
	// (roll number, class name, subject, day) and return ErrDuplicateRecord
	// when a record already exists.
	InsertRecord(ctx context.Context, rec Record) (Record, error)

	// BindDevice binds deviceID to rollNumber. Re-binding the same device is a
	// no-op; a different device yields ErrDeviceBound.
	BindDevice(ctx context.Context, rollNumber, deviceID string) error

	Ping(ctx context.Context) error
}
