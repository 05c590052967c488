package attendance

import (
	"context"
	"errors"
	"time"
)

// Shift identifies the session within a school day.
type Shift string

const (
	ShiftMorning   Shift = "morning"
	ShiftAfternoon Shift = "afternoon"
)

// Status is the recorded attendance outcome.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
	StatusExcused Status = "excused"
)

var (
	// ErrAlreadyMarked means a record already exists for the
	// (student, class, date, shift) key. Surfaced as a 409.
	ErrAlreadyMarked = errors.New("attendance already marked")
	// ErrInvalidRecord means the record failed ledger validation. Upstream
	// binding should have caught it; surfaced as a 400 when it slips through.
	ErrInvalidRecord = errors.New("invalid attendance record")
)

// Record is one attendance entry. At most one record exists per
// (student, class, date, shift).
type Record struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"student_id"`
	ClassID    string    `json:"class_id"`
	Date       time.Time `json:"date"`
	Shift      Shift     `json:"shift"`
	Status     Status    `json:"status"`
	RecordedBy string    `json:"recorded_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Store persists attendance records. The postgres implementation is backed by
// a composite unique index; the memory implementation mirrors its semantics
// for tests.
type Store interface {
	// Find returns the record for the key, or nil when none exists.
	Find(ctx context.Context, studentID, classID string, date time.Time, shift Shift) (*Record, error)
	// Insert writes a new record and returns ErrAlreadyMarked when the key
	// is taken.
	Insert(ctx context.Context, rec Record) (Record, error)
	// Upsert writes the batch in one statement; rows whose key exists get
	// their status, recorder and updated_at replaced.
	Upsert(ctx context.Context, recs []Record) ([]Record, error)
	// ListByClassDate returns the records for one class/date/shift context.
	ListByClassDate(ctx context.Context, classID string, date time.Time, shift Shift) ([]Record, error)
}

// DateOnly truncates t to a UTC calendar date, the granularity the uniqueness
// key is defined on.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func validShift(s Shift) bool {
	return s == ShiftMorning || s == ShiftAfternoon
}

func validStatus(s Status) bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusExcused:
		return true
	}
	return false
}
