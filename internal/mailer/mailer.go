package mailer

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Message is one outward email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers a message to a recipient. Delivery is best effort; callers
// log failures and move on.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Sendgrid delivers through the SendGrid v3 API.
type Sendgrid struct {
	client  *sendgrid.Client
	from    *sgmail.Email
	subjTag string
}

// NewSendgrid creates a mailer sending from the given address.
func NewSendgrid(apiKey, fromName, fromAddr, appName string) *Sendgrid {
	return &Sendgrid{
		client:  sendgrid.NewSendClient(apiKey),
		from:    sgmail.NewEmail(fromName, fromAddr),
		subjTag: "[" + appName + "] ",
	}
}

// Send posts the message to SendGrid.
func (m *Sendgrid) Send(ctx context.Context, msg Message) error {
	mail := sgmail.NewSingleEmail(m.from, m.subjTag+msg.Subject, sgmail.NewEmail("", msg.To), msg.Body, "")
	res, err := m.client.SendWithContext(ctx, mail)
	if err != nil {
		return err
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

// Console writes messages to the log and keeps them for inspection. Used in
// dev and tests when no SendGrid key is configured.
type Console struct {
	mu     sync.Mutex
	sent   []Message
	Silent bool
}

// NewConsole creates an empty console mailer.
func NewConsole() *Console {
	return &Console{}
}

// Send logs the message and records it.
func (m *Console) Send(ctx context.Context, msg Message) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	if !m.Silent {
		log.Printf("mail to=%s subject=%q\n%s", msg.To, msg.Subject, msg.Body)
	}
	return nil
}

// Sent returns a copy of everything sent so far.
func (m *Console) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.sent))
	copy(out, m.sent)
	return out
}
