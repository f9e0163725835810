package store

import (
	"context"
	"fmt"
)

// schema is idempotent. The unique constraint on attendance_records is what
// keeps a student to one mark per class, subject and day.
const schema = `
CREATE TABLE IF NOT EXISTS students (
	roll_number TEXT PRIMARY KEY,
	name        TEXT NOT NULL DEFAULT '',
	year        INTEGER NOT NULL,
	branch      TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS scheduled_classes (
	id           TEXT PRIMARY KEY,
	class_name   TEXT NOT NULL,
	subject      TEXT NOT NULL,
	teacher_name TEXT NOT NULL DEFAULT '',
	class_date   DATE NOT NULL,
	day          TEXT NOT NULL DEFAULT '',
	start_time   TEXT NOT NULL,
	end_time     TEXT NOT NULL,
	class_code   TEXT NOT NULL,
	year         INTEGER NOT NULL,
	branch       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_classes_cohort_date ON scheduled_classes (year, branch, class_date);
CREATE INDEX IF NOT EXISTS idx_classes_code ON scheduled_classes (class_code);

CREATE TABLE IF NOT EXISTS class_locations (
	class_name    TEXT NOT NULL,
	latitude      DOUBLE PRECISION NOT NULL,
	longitude     DOUBLE PRECISION NOT NULL,
	radius_meters DOUBLE PRECISION NOT NULL,
	beacon_id     TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_class_locations_name ON class_locations (LOWER(class_name));

CREATE TABLE IF NOT EXISTS attendance_records (
	id              TEXT PRIMARY KEY,
	roll_number     TEXT NOT NULL REFERENCES students(roll_number),
	class_name      TEXT NOT NULL,
	subject         TEXT NOT NULL,
	class_code      TEXT NOT NULL,
	status          TEXT NOT NULL,
	marked_at       TIMESTAMPTZ NOT NULL,
	attendance_date DATE NOT NULL,
	CONSTRAINT uq_attendance_once_per_day UNIQUE (roll_number, class_name, subject, attendance_date)
);
CREATE INDEX IF NOT EXISTS idx_attendance_roll_time ON attendance_records (roll_number, marked_at DESC);

CREATE TABLE IF NOT EXISTS devices (
	device_id   TEXT PRIMARY KEY,
	roll_number TEXT NOT NULL UNIQUE REFERENCES students(roll_number),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Migrate creates the tables the service reads and writes.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.Client.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
