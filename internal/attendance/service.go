package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"schoolhub/internal/events"
	"schoolhub/internal/metrics"
)

// Mark is one student's status within a bulk submission.
type Mark struct {
	StudentID string `json:"student_id" binding:"required"`
	Status    Status `json:"status" binding:"required"`
}

// Service owns the ledger invariants and publishes domain events for statuses
// that warrant a parent notification.
type Service struct {
	store   Store
	bus     *events.Bus
	metrics *metrics.Metrics
}

// NewService creates a service backed by store, publishing on bus.
func NewService(store Store, bus *events.Bus, m *metrics.Metrics) *Service {
	return &Service{store: store, bus: bus, metrics: m}
}

// MarkSingle records attendance for one student. The existence check is a
// fast path for the common conflict; the storage unique constraint remains
// authoritative, so a concurrent double-mark still comes back as
// ErrAlreadyMarked.
func (s *Service) MarkSingle(ctx context.Context, studentID, classID string, date time.Time, shift Shift, status Status, recordedBy string) (Record, error) {
	rec := Record{
		ID:         uuid.NewString(),
		StudentID:  studentID,
		ClassID:    classID,
		Date:       DateOnly(date),
		Shift:      shift,
		Status:     status,
		RecordedBy: recordedBy,
	}
	if err := validate(rec); err != nil {
		return Record{}, err
	}

	if existing, err := s.store.Find(ctx, studentID, classID, date, shift); err != nil {
		return Record{}, err
	} else if existing != nil {
		s.metrics.IncMarkConflicts()
		return Record{}, ErrAlreadyMarked
	}

	saved, err := s.store.Insert(ctx, rec)
	if err != nil {
		if errors.Is(err, ErrAlreadyMarked) {
			s.metrics.IncMarkConflicts()
		}
		return Record{}, err
	}
	s.metrics.IncAttendanceMarked()
	s.publishIfNotable(ctx, saved)
	return saved, nil
}

// BulkUpsert syncs a batch of marks for one class/date/shift context, as
// submitted by an offline client. Duplicate keys within the batch collapse to
// the last occurrence, and resubmitting a batch replaces statuses instead of
// duplicating rows, so retransmission is safe.
func (s *Service) BulkUpsert(ctx context.Context, classID string, date time.Time, shift Shift, recordedBy string, marks []Mark) ([]Record, error) {
	if classID == "" || !validShift(shift) || date.IsZero() {
		return nil, fmt.Errorf("%w: class, date and shift required", ErrInvalidRecord)
	}

	day := DateOnly(date)
	byStudent := make(map[string]int, len(marks))
	recs := make([]Record, 0, len(marks))
	for _, m := range marks {
		rec := Record{
			ID:         uuid.NewString(),
			StudentID:  m.StudentID,
			ClassID:    classID,
			Date:       day,
			Shift:      shift,
			Status:     m.Status,
			RecordedBy: recordedBy,
		}
		if err := validate(rec); err != nil {
			return nil, err
		}
		if i, ok := byStudent[m.StudentID]; ok {
			// last occurrence wins within one batch
			recs[i] = rec
			continue
		}
		byStudent[m.StudentID] = len(recs)
		recs = append(recs, rec)
	}

	saved, err := s.store.Upsert(ctx, recs)
	if err != nil {
		return nil, err
	}
	s.metrics.AddAttendanceUpserts(len(saved))
	for _, rec := range saved {
		s.publishIfNotable(ctx, rec)
	}
	return saved, nil
}

// ListByClassDate returns the records for one class/date/shift context.
func (s *Service) ListByClassDate(ctx context.Context, classID string, date time.Time, shift Shift) ([]Record, error) {
	if classID == "" || !validShift(shift) {
		return nil, fmt.Errorf("%w: class and shift required", ErrInvalidRecord)
	}
	return s.store.ListByClassDate(ctx, classID, date, shift)
}

// publishIfNotable raises attendance.marked for absent and late statuses.
// Present and excused marks trigger no notification.
func (s *Service) publishIfNotable(ctx context.Context, rec Record) {
	if rec.Status != StatusAbsent && rec.Status != StatusLate {
		return
	}
	s.metrics.IncEventsPublished()
	s.bus.Publish(ctx, events.Event{
		Name: events.AttendanceMarked,
		Payload: events.AttendanceMarkedPayload{
			StudentID: rec.StudentID,
			ClassID:   rec.ClassID,
			Date:      rec.Date,
			Shift:     string(rec.Shift),
			Status:    string(rec.Status),
			MarkedBy:  rec.RecordedBy,
		},
	})
}

func validate(rec Record) error {
	if rec.StudentID == "" || rec.ClassID == "" {
		return fmt.Errorf("%w: student and class required", ErrInvalidRecord)
	}
	if rec.Date.IsZero() {
		return fmt.Errorf("%w: date required", ErrInvalidRecord)
	}
	if !validShift(rec.Shift) {
		return fmt.Errorf("%w: unknown shift %q", ErrInvalidRecord, rec.Shift)
	}
	if !validStatus(rec.Status) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidRecord, rec.Status)
	}
	return nil
}
