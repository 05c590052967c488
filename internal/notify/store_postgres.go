package notify

import (
	"context"
	"database/sql"
	"errors"

	"schoolhub/internal/store"
)

// PostgresStore persists notifications through the resilient store layer.
type PostgresStore struct {
	db *store.DB
}

// NewPostgresStore creates a store backed by db.
func NewPostgresStore(db *store.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create writes a new notification.
func (s *PostgresStore) Create(ctx context.Context, n Notification) (Notification, error) {
	err := s.db.Do(ctx, func() error {
		row := s.db.Client.QueryRowContext(ctx, `
			INSERT INTO notifications (id, recipient_id, origin_id, ntype, message)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at
		`, n.ID, n.RecipientID, n.OriginID, n.Type, n.Message)
		return row.Scan(&n.CreatedAt)
	})
	if err != nil {
		return Notification{}, err
	}
	return n, nil
}

// Get returns a notification by id, or nil when none exists.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Notification, error) {
	var n Notification
	err := s.db.Do(ctx, func() error {
		row := s.db.Client.QueryRowContext(ctx, `
			SELECT id, recipient_id, origin_id, ntype, message, created_at, read
			FROM notifications WHERE id = $1
		`, id)
		return row.Scan(&n.ID, &n.RecipientID, &n.OriginID, &n.Type, &n.Message, &n.CreatedAt, &n.Read)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// ListByRecipient returns the newest notifications for a recipient.
func (s *PostgresStore) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []Notification
	err := s.db.Do(ctx, func() error {
		rows, err := s.db.Client.QueryContext(ctx, `
			SELECT id, recipient_id, origin_id, ntype, message, created_at, read
			FROM notifications
			WHERE recipient_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		`, recipientID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		out = out[:0]
		for rows.Next() {
			var n Notification
			if err := rows.Scan(&n.ID, &n.RecipientID, &n.OriginID, &n.Type, &n.Message, &n.CreatedAt, &n.Read); err != nil {
				return err
			}
			out = append(out, n)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkRead flips the read flag.
func (s *PostgresStore) MarkRead(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1`, id)
	return err
}

// PostgresDirectory resolves guardians from the guardians table.
type PostgresDirectory struct {
	db *store.DB
}

// NewPostgresDirectory creates a directory backed by db.
func NewPostgresDirectory(db *store.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

// GuardianOf returns the guardian linked to a student, or nil when none is
// recorded.
func (d *PostgresDirectory) GuardianOf(ctx context.Context, studentID string) (*Guardian, error) {
	var g Guardian
	err := d.db.Do(ctx, func() error {
		row := d.db.Client.QueryRowContext(ctx, `
			SELECT id, student_id, name, email
			FROM guardians WHERE student_id = $1
			LIMIT 1
		`, studentID)
		return row.Scan(&g.ID, &g.StudentID, &g.Name, &g.Email)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// Guardian returns a guardian by id, or nil when none exists.
func (d *PostgresDirectory) Guardian(ctx context.Context, id string) (*Guardian, error) {
	var g Guardian
	err := d.db.Do(ctx, func() error {
		row := d.db.Client.QueryRowContext(ctx, `
			SELECT id, student_id, name, email
			FROM guardians WHERE id = $1
		`, id)
		return row.Scan(&g.ID, &g.StudentID, &g.Name, &g.Email)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}
