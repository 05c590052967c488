package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"schoolhub/internal/store"
)

// PostgresStore persists attendance records in Postgres through the resilient
// store layer.
type PostgresStore struct {
	db *store.DB
}

// NewPostgresStore creates a store backed by db.
func NewPostgresStore(db *store.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const recordColumns = `id, student_id, class_id, att_date, shift, status, recorded_by, created_at, updated_at`

// Find returns the record for the key, or nil when none exists.
func (s *PostgresStore) Find(ctx context.Context, studentID, classID string, date time.Time, shift Shift) (*Record, error) {
	var rec Record
	err := s.db.Do(ctx, func() error {
		row := s.db.Client.QueryRowContext(ctx, `
			SELECT `+recordColumns+`
			FROM attendance_records
			WHERE student_id = $1 AND class_id = $2 AND att_date = $3 AND shift = $4
		`, studentID, classID, DateOnly(date), shift)
		return scanRecord(row, &rec)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Insert writes a new record. A unique violation on the composite key is the
// authoritative conflict signal and maps to ErrAlreadyMarked.
func (s *PostgresStore) Insert(ctx context.Context, rec Record) (Record, error) {
	err := s.db.Do(ctx, func() error {
		row := s.db.Client.QueryRowContext(ctx, `
			INSERT INTO attendance_records (id, student_id, class_id, att_date, shift, status, recorded_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at, updated_at
		`, rec.ID, rec.StudentID, rec.ClassID, DateOnly(rec.Date), rec.Shift, rec.Status, rec.RecordedBy)
		return row.Scan(&rec.CreatedAt, &rec.UpdatedAt)
	})
	if store.IsUniqueViolation(err) {
		return Record{}, ErrAlreadyMarked
	}
	if err != nil {
		return Record{}, err
	}
	rec.Date = DateOnly(rec.Date)
	return rec, nil
}

// Upsert writes the batch as one multi-row INSERT ... ON CONFLICT. Callers
// must de-duplicate keys within the batch first; Postgres rejects a statement
// that touches the same row twice.
func (s *PostgresStore) Upsert(ctx context.Context, recs []Record) ([]Record, error) {
	if len(recs) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	args := make([]any, 0, len(recs)*7)
	for i, rec := range recs {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 7
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7)
		args = append(args, rec.ID, rec.StudentID, rec.ClassID, DateOnly(rec.Date), rec.Shift, rec.Status, rec.RecordedBy)
	}
	query := `
		INSERT INTO attendance_records (id, student_id, class_id, att_date, shift, status, recorded_by)
		VALUES ` + sb.String() + `
		ON CONFLICT (student_id, class_id, att_date, shift) DO UPDATE SET
			status = EXCLUDED.status,
			recorded_by = EXCLUDED.recorded_by,
			updated_at = NOW()
		RETURNING ` + recordColumns

	var out []Record
	err := s.db.Do(ctx, func() error {
		rows, err := s.db.Client.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out = out[:0]
		for rows.Next() {
			var rec Record
			if err := scanRecord(rows, &rec); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListByClassDate returns the records for one class/date/shift context.
func (s *PostgresStore) ListByClassDate(ctx context.Context, classID string, date time.Time, shift Shift) ([]Record, error) {
	var out []Record
	err := s.db.Do(ctx, func() error {
		rows, err := s.db.Client.QueryContext(ctx, `
			SELECT `+recordColumns+`
			FROM attendance_records
			WHERE class_id = $1 AND att_date = $2 AND shift = $3
			ORDER BY student_id
		`, classID, DateOnly(date), shift)
		if err != nil {
			return err
		}
		defer rows.Close()
		out = out[:0]
		for rows.Next() {
			var rec Record
			if err := scanRecord(rows, &rec); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner, rec *Record) error {
	return row.Scan(&rec.ID, &rec.StudentID, &rec.ClassID, &rec.Date, &rec.Shift, &rec.Status, &rec.RecordedBy, &rec.CreatedAt, &rec.UpdatedAt)
}
