package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus counters for the notification core. A nil
// *Metrics is valid and counts nothing, which keeps unit tests free of
// registry collisions.
type Metrics struct {
	AttendanceMarked  prometheus.Counter
	AttendanceUpserts prometheus.Counter
	MarkConflicts     prometheus.Counter
	EventsPublished   prometheus.Counter
	NotificationsMade prometheus.Counter
	DeliveriesSent    prometheus.Counter
	DeliveriesFailed  prometheus.Counter
}

// New creates and registers all counters on the default registry.
func New() *Metrics {
	return NewFor(prometheus.DefaultRegisterer)
}

// NewFor registers the counters on reg. Tests pass a fresh registry so suites
// never collide on the default one.
func NewFor(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AttendanceMarked: factory.NewCounter(prometheus.CounterOpts{
			Name: "schoolhub_attendance_marked_total",
			Help: "Attendance records created via single marks.",
		}),
		AttendanceUpserts: factory.NewCounter(prometheus.CounterOpts{
			Name: "schoolhub_attendance_upserted_rows_total",
			Help: "Attendance rows written via bulk upsert.",
		}),
		MarkConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "schoolhub_attendance_conflicts_total",
			Help: "Single marks rejected because the key was already marked.",
		}),
		EventsPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "schoolhub_events_published_total",
			Help: "Domain events handed to the bus.",
		}),
		NotificationsMade: factory.NewCounter(prometheus.CounterOpts{
			Name: "schoolhub_notifications_created_total",
			Help: "Notification records persisted by the dispatcher.",
		}),
		DeliveriesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "schoolhub_notification_deliveries_total",
			Help: "Outward deliveries that the mailer accepted.",
		}),
		DeliveriesFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "schoolhub_notification_delivery_failures_total",
			Help: "Outward deliveries that failed; failures are logged, not retried.",
		}),
	}
}

func (m *Metrics) IncAttendanceMarked() {
	if m != nil {
		m.AttendanceMarked.Inc()
	}
}

func (m *Metrics) AddAttendanceUpserts(n int) {
	if m != nil {
		m.AttendanceUpserts.Add(float64(n))
	}
}

func (m *Metrics) IncMarkConflicts() {
	if m != nil {
		m.MarkConflicts.Inc()
	}
}

func (m *Metrics) IncEventsPublished() {
	if m != nil {
		m.EventsPublished.Inc()
	}
}

func (m *Metrics) IncNotificationsMade() {
	if m != nil {
		m.NotificationsMade.Inc()
	}
}

func (m *Metrics) IncDeliveriesSent() {
	if m != nil {
		m.DeliveriesSent.Inc()
	}
}

func (m *Metrics) IncDeliveriesFailed() {
	if m != nil {
		m.DeliveriesFailed.Inc()
	}
}
