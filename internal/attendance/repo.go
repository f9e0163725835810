package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// Repository persists attendance data in Postgres. DATE columns are read back
// as midnight in loc.
type Repository struct {
	db  *sql.DB
	loc *time.Location
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB, loc *time.Location) *Repository {
	if loc == nil {
		loc = time.UTC
	}
	return &Repository{db: db, loc: loc}
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// StudentByRoll returns nil when the roll number is unknown.
func (r *Repository) StudentByRoll(ctx context.Context, rollNumber string) (*Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT roll_number, name, year, branch
		FROM students WHERE roll_number = $1
	`, rollNumber)
	var s Student
	if err := row.Scan(&s.RollNumber, &s.Name, &s.Year, &s.Branch); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

const classColumns = `id, class_name, subject, teacher_name, class_date, day, start_time, end_time, class_code, year, branch`

func (r *Repository) scanClass(row interface{ Scan(...any) error }) (ScheduledClass, error) {
	var c ScheduledClass
	var date time.Time
	if err := row.Scan(&c.ID, &c.ClassName, &c.Subject, &c.TeacherName, &date, &c.Day, &c.StartTime, &c.EndTime, &c.ClassCode, &c.Year, &c.Branch); err != nil {
		return ScheduledClass{}, err
	}
	c.Date = r.civil(date)
	return c, nil
}

// ClassesOn lists the classes for a year and branch on day, earliest first.
func (r *Repository) ClassesOn(ctx context.Context, year int, branch string, day time.Time) ([]ScheduledClass, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+classColumns+`
		FROM scheduled_classes
		WHERE year = $1 AND branch = $2 AND class_date = $3::date
		ORDER BY start_time ASC
	`, year, branch, day.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []ScheduledClass
	for rows.Next() {
		c, err := r.scanClass(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// ClassByCode returns the most recently dated class with the code, or nil.
func (r *Repository) ClassByCode(ctx context.Context, classCode string) (*ScheduledClass, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+classColumns+`
		FROM scheduled_classes
		WHERE class_code = $1
		ORDER BY class_date DESC
		LIMIT 1
	`, classCode)
	c, err := r.scanClass(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// LocationByClassName matches the class name case-insensitively.
func (r *Repository) LocationByClassName(ctx context.Context, className string) (*ClassLocation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT class_name, latitude, longitude, radius_meters, COALESCE(beacon_id, '')
		FROM class_locations
		WHERE LOWER(class_name) = LOWER($1)
		LIMIT 1
	`, className)
	var l ClassLocation
	if err := row.Scan(&l.ClassName, &l.Latitude, &l.Longitude, &l.RadiusMeters, &l.BeaconID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

const recordColumns = `id, roll_number, class_name, subject, class_code, status, marked_at, attendance_date`

func (r *Repository) scanRecord(row interface{ Scan(...any) error }) (Record, error) {
	var rec Record
	var day time.Time
	if err := row.Scan(&rec.ID, &rec.RollNumber, &rec.ClassName, &rec.Subject, &rec.ClassCode, &rec.Status, &rec.MarkedAt, &day); err != nil {
		return Record{}, err
	}
	rec.Day = r.civil(day)
	return rec, nil
}

// RecordFor returns the record for a student, class and subject on day, or nil.
func (r *Repository) RecordFor(ctx context.Context, rollNumber, className, subject string, day time.Time) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records
		WHERE roll_number = $1 AND class_name = $2 AND subject = $3 AND attendance_date = $4::date
	`, rollNumber, className, subject, day.Format(dateLayout))
	rec, err := r.scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// RecordsByRoll returns all of a student's records, newest first.
func (r *Repository) RecordsByRoll(ctx context.Context, rollNumber string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records
		WHERE roll_number = $1
		ORDER BY marked_at DESC
	`, rollNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// InsertRecord writes a record unless one already exists for the same
// student, class, subject and day. The unique index decides; there is no
// separate existence check, so concurrent submissions cannot both succeed.
func (r *Repository) InsertRecord(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, roll_number, class_name, subject, class_code, status, marked_at, attendance_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8::date)
		ON CONFLICT (roll_number, class_name, subject, attendance_date) DO NOTHING
		RETURNING id
	`, rec.ID, rec.RollNumber, rec.ClassName, rec.Subject, rec.ClassCode, rec.Status, rec.MarkedAt, rec.Day.Format(dateLayout))
	if err := row.Scan(&rec.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
			return Record{}, ErrDuplicateRecord
		}
		return Record{}, err
	}
	return rec, nil
}

// BindDevice records the first device a student enrolls. Both roll number and
// device id are unique, so a device cannot serve two students.
func (r *Repository) BindDevice(ctx context.Context, rollNumber, deviceID string) error {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (device_id, roll_number)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, deviceID, rollNumber); err != nil {
		return err
	}
	var bound string
	err := r.db.QueryRowContext(ctx, `SELECT device_id FROM devices WHERE roll_number = $1`, rollNumber).Scan(&bound)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrDeviceBound
	}
	if err != nil {
		return err
	}
	if bound != deviceID {
		return ErrDeviceBound
	}
	return nil
}

func (r *Repository) civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, r.loc)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
