package attendance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"classattend/internal/clock"
)

type timedClass struct {
	ScheduledClass
	day, start, end time.Time
}

// Notifications returns today's classes for the student with their display
// status, ordered by start time. Classes whose status is expired are left out.
func (s *Service) Notifications(ctx context.Context, rollNumber string) (Notifications, error) {
	now := s.clock.Now()
	loc := s.clock.Location()

	student, err := s.store.StudentByRoll(ctx, rollNumber)
	if err != nil {
		return Notifications{}, fmt.Errorf("lookup student: %w", err)
	}
	if student == nil {
		return Notifications{}, notFound(EntityStudent)
	}

	classes, err := s.store.ClassesOn(ctx, student.Year, student.Branch, clock.Day(now, loc))
	if err != nil {
		return Notifications{}, fmt.Errorf("list classes: %w", err)
	}

	timed := make([]timedClass, 0, len(classes))
	for _, class := range classes {
		tc := timedClass{ScheduledClass: class, day: clock.Day(class.Date, loc)}
		if tc.start, err = clock.At(tc.day, class.StartTime, loc); err != nil {
			return Notifications{}, fmt.Errorf("class %s start time %q: %w", class.ClassCode, class.StartTime, err)
		}
		if tc.end, err = clock.At(tc.day, class.EndTime, loc); err != nil {
			return Notifications{}, fmt.Errorf("class %s end time %q: %w", class.ClassCode, class.EndTime, err)
		}
		timed = append(timed, tc)
	}
	sort.SliceStable(timed, func(i, j int) bool { return timed[i].start.Before(timed[j].start) })

	items := make([]Notification, 0, len(timed))
	for _, tc := range timed {
		rec, err := s.store.RecordFor(ctx, student.RollNumber, tc.ClassName, tc.Subject, tc.day)
		if err != nil {
			return Notifications{}, fmt.Errorf("lookup record: %w", err)
		}

		status := DeriveStatus(now, tc.start, tc.end, rec != nil)
		if status == StatusExpired {
			continue
		}
		n := Notification{
			ClassName:         tc.ClassName,
			Subject:           tc.Subject,
			TeacherName:       tc.TeacherName,
			Date:              tc.day.Format(dateLayout),
			StartTime:         tc.StartTime,
			EndTime:           tc.EndTime,
			Day:               tc.Day,
			Status:            status,
			MinutesUntilStart: minutesUntil(tc.start.Sub(now)),
		}
		if status == StatusActive {
			n.MinutesRemaining = minutesRemaining(now.Sub(tc.start))
		}
		if rec != nil {
			n.AttendanceID = rec.ID
		}
		items = append(items, n)
	}

	return Notifications{Items: items, ServerTime: now}, nil
}
