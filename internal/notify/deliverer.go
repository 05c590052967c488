package notify

import (
	"context"
	"encoding/json"
	"log"

	"schoolhub/internal/mailer"
	"schoolhub/internal/metrics"
	"schoolhub/internal/queue"
)

// Deliverer handles queued delivery jobs: it loads the notification, resolves
// the recipient's address and sends the email. Delivery is best effort; every
// failure is logged and the job dropped, nothing escapes to the caller.
type Deliverer struct {
	store   Store
	dir     Directory
	mail    mailer.Mailer
	metrics *metrics.Metrics
}

// NewDeliverer creates a deliverer.
func NewDeliverer(store Store, dir Directory, mail mailer.Mailer, m *metrics.Metrics) *Deliverer {
	return &Deliverer{store: store, dir: dir, mail: mail, metrics: m}
}

// Deliver handles one job. Jobs of other types are ignored.
func (d *Deliverer) Deliver(ctx context.Context, job queue.Job) {
	if job.Type != JobTypeEmail {
		return
	}

	var dj DeliveryJob
	if err := json.Unmarshal(job.Body, &dj); err != nil {
		log.Printf("bad delivery job: %v", err)
		return
	}

	n, err := d.store.Get(ctx, dj.NotificationID)
	if err != nil {
		log.Printf("fetch notification %s failed: %v", dj.NotificationID, err)
		return
	}
	if n == nil {
		log.Printf("notification %s no longer exists, dropping", dj.NotificationID)
		return
	}

	g, err := d.dir.Guardian(ctx, n.RecipientID)
	if err != nil || g == nil {
		log.Printf("recipient %s unresolved for %s: %v", n.RecipientID, n.ID, err)
		return
	}

	msg := mailer.Message{To: g.Email, Subject: Subject(n.Type), Body: n.Message}
	if err := d.mail.Send(ctx, msg); err != nil {
		d.metrics.IncDeliveriesFailed()
		log.Printf("delivery for %s failed: %v", n.ID, err)
		return
	}
	d.metrics.IncDeliveriesSent()
	log.Printf("notification %s delivered to %s", n.ID, g.Email)
}
