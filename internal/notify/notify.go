package notify

import (
	"context"
	"time"
)

// Notification types. The type picks the email subject line.
const (
	TypeAttendanceAlert = "attendance_alert"
	TypeExamResult      = "exam_result"
)

// Notification is the persisted side effect of a domain event. It is never
// required for correctness of the primary write.
type Notification struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	OriginID    string    `json:"origin_id"`
	Type        string    `json:"type"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
	Read        bool      `json:"read"`
}

// Guardian is a parent or caretaker linked to a student.
type Guardian struct {
	ID        string `json:"id"`
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
}

// Store persists notifications.
type Store interface {
	Create(ctx context.Context, n Notification) (Notification, error)
	Get(ctx context.Context, id string) (*Notification, error)
	ListByRecipient(ctx context.Context, recipientID string, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, id string) error
}

// Directory resolves guardians. A student without a guardian resolves to nil,
// which the dispatcher treats as "nothing to do".
type Directory interface {
	GuardianOf(ctx context.Context, studentID string) (*Guardian, error)
	Guardian(ctx context.Context, id string) (*Guardian, error)
}

// Subject returns the email subject for a notification type.
func Subject(ntype string) string {
	switch ntype {
	case TypeAttendanceAlert:
		return "Attendance alert"
	case TypeExamResult:
		return "Exam result published"
	}
	return "Notification"
}
