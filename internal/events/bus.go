package events

import (
	"context"
	"log"
	"sync"
	"time"
)

// Event names published by the domain services.
const (
	AttendanceMarked = "attendance.marked"
	ExamSubmitted    = "exam.submitted"
)

// AttendanceMarkedPayload is published when a student is marked absent or late.
type AttendanceMarkedPayload struct {
	StudentID string
	ClassID   string
	Date      time.Time
	Shift     string
	Status    string
	MarkedBy  string
}

// ExamSubmittedPayload is published when a teacher records an exam result.
type ExamSubmittedPayload struct {
	StudentID  string
	Subject    string
	Marks      int
	RecordedBy string
}

// Event is an in-memory fact handed to subscribers. It lives only for the
// duration of dispatch.
type Event struct {
	Name    string
	Payload any
}

// Handler reacts to one event. Handlers run outside the publisher's control
// flow; returned errors are logged, never propagated.
type Handler func(ctx context.Context, evt Event) error

// Bus is an in-process publish/subscribe registry. Construct one at startup and
// inject it; subscriptions happen during initialization, dispatch happens
// concurrently from request workers.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]Handler
	wg   sync.WaitGroup
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]Handler)}
}

// Subscribe registers h for name for the lifetime of the process.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[name] = append(b.subs[name], h)
}

// Publish schedules every subscriber of evt.Name and returns without waiting.
// Subscribers of one event name run sequentially in registration order; a
// panicking or failing subscriber is logged and does not affect its peers or
// the publisher.
func (b *Bus) Publish(ctx context.Context, evt Event) {
	b.mu.RLock()
	handlers := b.subs[evt.Name]
	b.mu.RUnlock()
	if len(handlers) == 0 {
		return
	}
	// Subscribers outlive the triggering request: its context is cancelled the
	// moment the response is written, so dispatch must not inherit that.
	ctx = context.WithoutCancel(ctx)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for _, h := range handlers {
			b.invoke(ctx, h, evt)
		}
	}()
}

func (b *Bus) invoke(ctx context.Context, h Handler, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("events: subscriber panic on %s: %v", evt.Name, r)
		}
	}()
	if err := h(ctx, evt); err != nil {
		log.Printf("events: subscriber failed on %s: %v", evt.Name, err)
	}
}

// Wait blocks until all in-flight dispatches finish. Used on shutdown and in
// tests; request paths never call it.
func (b *Bus) Wait() {
	b.wg.Wait()
}
