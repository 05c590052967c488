package exam

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"schoolhub/internal/events"
	"schoolhub/internal/metrics"
	"schoolhub/internal/store"
)

// ErrInvalidResult means the submission failed validation. Surfaced as a 400.
var ErrInvalidResult = errors.New("invalid exam result")

// Result is one student's marks for a subject exam.
type Result struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"student_id"`
	Subject    string    `json:"subject"`
	Marks      int       `json:"marks"`
	RecordedBy string    `json:"recorded_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store persists exam results.
type Store interface {
	Insert(ctx context.Context, res Result) (Result, error)
	ListByStudent(ctx context.Context, studentID string) ([]Result, error)
}

// Service records results and publishes exam.submitted for each.
type Service struct {
	store   Store
	bus     *events.Bus
	metrics *metrics.Metrics
}

// NewService creates a service backed by store, publishing on bus.
func NewService(store Store, bus *events.Bus, m *metrics.Metrics) *Service {
	return &Service{store: store, bus: bus, metrics: m}
}

// Submit validates and persists a result, then publishes the event. The
// publish never affects the write's outcome.
func (s *Service) Submit(ctx context.Context, studentID, subject string, marks int, recordedBy string) (Result, error) {
	if studentID == "" || subject == "" {
		return Result{}, fmt.Errorf("%w: student and subject required", ErrInvalidResult)
	}
	if marks < 0 {
		return Result{}, fmt.Errorf("%w: negative marks", ErrInvalidResult)
	}

	saved, err := s.store.Insert(ctx, Result{
		ID:         uuid.NewString(),
		StudentID:  studentID,
		Subject:    subject,
		Marks:      marks,
		RecordedBy: recordedBy,
	})
	if err != nil {
		return Result{}, err
	}

	s.metrics.IncEventsPublished()
	s.bus.Publish(ctx, events.Event{
		Name: events.ExamSubmitted,
		Payload: events.ExamSubmittedPayload{
			StudentID:  saved.StudentID,
			Subject:    saved.Subject,
			Marks:      saved.Marks,
			RecordedBy: saved.RecordedBy,
		},
	})
	return saved, nil
}

// ListByStudent returns a student's results, newest first.
func (s *Service) ListByStudent(ctx context.Context, studentID string) ([]Result, error) {
	return s.store.ListByStudent(ctx, studentID)
}

// PostgresStore persists results through the resilient store layer.
type PostgresStore struct {
	db *store.DB
}

// NewPostgresStore creates a store backed by db.
func NewPostgresStore(db *store.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Insert writes a new result.
func (s *PostgresStore) Insert(ctx context.Context, res Result) (Result, error) {
	err := s.db.Do(ctx, func() error {
		row := s.db.Client.QueryRowContext(ctx, `
			INSERT INTO exam_results (id, student_id, subject, marks, recorded_by)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at
		`, res.ID, res.StudentID, res.Subject, res.Marks, res.RecordedBy)
		return row.Scan(&res.CreatedAt)
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// ListByStudent returns a student's results, newest first.
func (s *PostgresStore) ListByStudent(ctx context.Context, studentID string) ([]Result, error) {
	var out []Result
	err := s.db.Do(ctx, func() error {
		rows, err := s.db.Client.QueryContext(ctx, `
			SELECT id, student_id, subject, marks, recorded_by, created_at
			FROM exam_results
			WHERE student_id = $1
			ORDER BY created_at DESC
		`, studentID)
		if err != nil {
			return err
		}
		defer rows.Close()
		out = out[:0]
		for rows.Next() {
			var res Result
			if err := rows.Scan(&res.ID, &res.StudentID, &res.Subject, &res.Marks, &res.RecordedBy, &res.CreatedAt); err != nil {
				return err
			}
			out = append(out, res)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MemoryStore keeps results in memory for tests and dev runs.
type MemoryStore struct {
	mu    sync.RWMutex
	items []Result
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Insert writes a new result.
func (s *MemoryStore) Insert(ctx context.Context, res Result) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	res.CreatedAt = time.Now().UTC()
	s.items = append(s.items, res)
	return res, nil
}

// ListByStudent returns a student's results, newest first.
func (s *MemoryStore) ListByStudent(ctx context.Context, studentID string) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Result
	for i := len(s.items) - 1; i >= 0; i-- {
		if s.items[i].StudentID == studentID {
			out = append(out, s.items[i])
		}
	}
	return out, nil
}
