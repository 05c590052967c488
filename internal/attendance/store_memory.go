package attendance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore mirrors the postgres semantics in memory, including the
// composite-key uniqueness. Used in tests and for dependency-free dev runs.
type MemoryStore struct {
	mu   sync.RWMutex
	recs map[string]Record
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[string]Record)}
}

func memKey(studentID, classID string, date time.Time, shift Shift) string {
	return studentID + "|" + classID + "|" + DateOnly(date).Format("2006-01-02") + "|" + string(shift)
}

// Find returns the record for the key, or nil when none exists.
func (s *MemoryStore) Find(ctx context.Context, studentID, classID string, date time.Time, shift Shift) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.recs[memKey(studentID, classID, date, shift)]; ok {
		return &rec, nil
	}
	return nil, nil
}

// Insert writes a new record, failing with ErrAlreadyMarked on a taken key.
func (s *MemoryStore) Insert(ctx context.Context, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memKey(rec.StudentID, rec.ClassID, rec.Date, rec.Shift)
	if _, ok := s.recs[key]; ok {
		return Record{}, ErrAlreadyMarked
	}
	now := time.Now().UTC()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.Date = DateOnly(rec.Date)
	rec.CreatedAt = now
	rec.UpdatedAt = now
	s.recs[key] = rec
	return rec, nil
}

// Upsert inserts or replaces status/recorder/updated_at per key.
func (s *MemoryStore) Upsert(ctx context.Context, recs []Record) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	out := make([]Record, 0, len(recs))
	for _, rec := range recs {
		key := memKey(rec.StudentID, rec.ClassID, rec.Date, rec.Shift)
		if existing, ok := s.recs[key]; ok {
			existing.Status = rec.Status
			existing.RecordedBy = rec.RecordedBy
			existing.UpdatedAt = now
			s.recs[key] = existing
			out = append(out, existing)
			continue
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		rec.Date = DateOnly(rec.Date)
		rec.CreatedAt = now
		rec.UpdatedAt = now
		s.recs[key] = rec
		out = append(out, rec)
	}
	return out, nil
}

// ListByClassDate returns the records for one class/date/shift context.
func (s *MemoryStore) ListByClassDate(ctx context.Context, classID string, date time.Time, shift Shift) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	day := DateOnly(date)
	var out []Record
	for _, rec := range s.recs {
		if rec.ClassID == classID && rec.Date.Equal(day) && rec.Shift == shift {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}
