package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps notifications in memory for tests and dev runs.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Notification
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Notification)}
}

// Create writes a new notification.
func (s *MemoryStore) Create(ctx context.Context, n Notification) (Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = time.Now().UTC()
	s.items[n.ID] = n
	return n, nil
}

// Get returns a notification by id, or nil when none exists.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n, ok := s.items[id]; ok {
		return &n, nil
	}
	return nil, nil
}

// ListByRecipient returns the newest notifications for a recipient.
func (s *MemoryStore) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Notification
	for _, n := range s.items {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkRead flips the read flag.
func (s *MemoryStore) MarkRead(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.items[id]; ok {
		n.Read = true
		s.items[id] = n
	}
	return nil
}

// All returns every stored notification, newest last. Test helper.
func (s *MemoryStore) All() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Notification, 0, len(s.items))
	for _, n := range s.items {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// MemoryDirectory resolves guardians from an in-memory table.
type MemoryDirectory struct {
	mu        sync.RWMutex
	byStudent map[string]Guardian
	byID      map[string]Guardian
}

// NewMemoryDirectory creates an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		byStudent: make(map[string]Guardian),
		byID:      make(map[string]Guardian),
	}
}

// Add links a guardian to a student.
func (d *MemoryDirectory) Add(g Guardian) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	d.byStudent[g.StudentID] = g
	d.byID[g.ID] = g
}

// GuardianOf returns the guardian linked to a student, or nil.
func (d *MemoryDirectory) GuardianOf(ctx context.Context, studentID string) (*Guardian, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if g, ok := d.byStudent[studentID]; ok {
		return &g, nil
	}
	return nil, nil
}

// Guardian returns a guardian by id, or nil.
func (d *MemoryDirectory) Guardian(ctx context.Context, id string) (*Guardian, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if g, ok := d.byID[id]; ok {
		return &g, nil
	}
	return nil, nil
}
