package attendance

import (
	"context"
	"fmt"
	"sort"
)

// History returns the student's attendance records newest first, formatted in
// the reference zone.
func (s *Service) History(ctx context.Context, rollNumber string) ([]HistoryEntry, error) {
	student, err := s.store.StudentByRoll(ctx, rollNumber)
	if err != nil {
		return nil, fmt.Errorf("lookup student: %w", err)
	}
	if student == nil {
		return nil, notFound(EntityStudent)
	}

	records, err := s.store.RecordsByRoll(ctx, rollNumber)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].MarkedAt.After(records[j].MarkedAt) })

	loc := s.clock.Location()
	out := make([]HistoryEntry, 0, len(records))
	for _, rec := range records {
		at := rec.MarkedAt.In(loc)
		out = append(out, HistoryEntry{
			ClassName: rec.ClassName,
			Subject:   rec.Subject,
			Status:    rec.Status,
			Date:      at.Format(historyDateLayout),
			Time:      at.Format(historyTimeLayout),
			MarkedAt:  rec.MarkedAt,
		})
	}
	return out, nil
}
