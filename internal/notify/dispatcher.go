package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"

	"schoolhub/internal/events"
	"schoolhub/internal/metrics"
	"schoolhub/internal/queue"
)

// JobTypeEmail is the queue job type carrying a delivery request.
const JobTypeEmail = "notify.email"

// DeliveryJob is the queue payload. The worker loads the notification and the
// recipient's address from the store, following the id.
type DeliveryJob struct {
	NotificationID string `json:"notification_id"`
}

// Dispatcher is the canonical event-bus subscriber: it turns a domain event
// into a persisted notification plus a queued delivery attempt. Everything
// here is a side effect of the primary write; failures are logged and never
// reach the publisher.
type Dispatcher struct {
	store   Store
	dir     Directory
	queue   queue.Queue
	metrics *metrics.Metrics
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(store Store, dir Directory, q queue.Queue, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{store: store, dir: dir, queue: q, metrics: m}
}

// Register subscribes the dispatcher on the bus. Call once at startup.
func (d *Dispatcher) Register(bus *events.Bus) {
	bus.Subscribe(events.AttendanceMarked, d.handleAttendanceMarked)
	bus.Subscribe(events.ExamSubmitted, d.handleExamSubmitted)
}

func (d *Dispatcher) handleAttendanceMarked(ctx context.Context, evt events.Event) error {
	p, ok := evt.Payload.(events.AttendanceMarkedPayload)
	if !ok {
		return fmt.Errorf("notify: unexpected payload %T for %s", evt.Payload, evt.Name)
	}
	msg := fmt.Sprintf("Your child was marked %s in class %s on %s (%s shift).",
		p.Status, p.ClassID, p.Date.Format("2006-01-02"), p.Shift)
	return d.notify(ctx, p.StudentID, p.MarkedBy, TypeAttendanceAlert, msg)
}

func (d *Dispatcher) handleExamSubmitted(ctx context.Context, evt events.Event) error {
	p, ok := evt.Payload.(events.ExamSubmittedPayload)
	if !ok {
		return fmt.Errorf("notify: unexpected payload %T for %s", evt.Payload, evt.Name)
	}
	msg := fmt.Sprintf("An exam result was published for %s: %d marks.", p.Subject, p.Marks)
	return d.notify(ctx, p.StudentID, p.RecordedBy, TypeExamResult, msg)
}

// notify resolves the student's guardian, persists the notification and
// enqueues delivery. A student without a recorded guardian is not an error.
func (d *Dispatcher) notify(ctx context.Context, studentID, originID, ntype, message string) error {
	g, err := d.dir.GuardianOf(ctx, studentID)
	if err != nil {
		return fmt.Errorf("notify: resolving guardian for %s: %w", studentID, err)
	}
	if g == nil {
		return nil
	}

	n, err := d.store.Create(ctx, Notification{
		ID:          uuid.NewString(),
		RecipientID: g.ID,
		OriginID:    originID,
		Type:        ntype,
		Message:     message,
	})
	if err != nil {
		return fmt.Errorf("notify: persisting notification for %s: %w", g.ID, err)
	}
	d.metrics.IncNotificationsMade()

	body, _ := json.Marshal(DeliveryJob{NotificationID: n.ID})
	if err := d.queue.Publish(ctx, queue.Job{Type: JobTypeEmail, Body: body}); err != nil {
		// The record is in place; delivery is best effort.
		log.Printf("notify: enqueue delivery for %s failed: %v", n.ID, err)
	}
	return nil
}
