package attendance

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"schoolhub/internal/events"
)

type ServiceSuite struct {
	suite.Suite
	store   *MemoryStore
	bus     *events.Bus
	service *Service

	mu        sync.Mutex
	published []events.Event
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = NewMemoryStore()
	s.bus = events.NewBus()
	s.published = nil
	s.bus.Subscribe(events.AttendanceMarked, func(ctx context.Context, evt events.Event) error {
		s.mu.Lock()
		s.published = append(s.published, evt)
		s.mu.Unlock()
		return nil
	})
	s.service = NewService(s.store, s.bus, nil)
}

func (s *ServiceSuite) TearDownTest() {
	// Drain in-flight async dispatches so handlers from this test cannot
	// append to s.published after the next test's SetupTest resets it.
	s.bus.Wait()
}

func (s *ServiceSuite) publishedEvents() []events.Event {
	s.bus.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]events.Event, len(s.published))
	copy(out, s.published)
	return out
}

func (s *ServiceSuite) day() time.Time {
	return time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
}

func (s *ServiceSuite) TestMarkSingle() {
	ctx := context.Background()

	s.Run("first mark succeeds", func() {
		rec, err := s.service.MarkSingle(ctx, "s1", "c1", s.day(), ShiftMorning, StatusPresent, "t1")
		s.Require().NoError(err)
		s.NotEmpty(rec.ID)
		s.Equal(StatusPresent, rec.Status)
		s.Equal(s.day(), rec.Date)
	})

	s.Run("second mark conflicts regardless of status", func() {
		_, err := s.service.MarkSingle(ctx, "s1", "c1", s.day(), ShiftMorning, StatusAbsent, "t1")
		s.ErrorIs(err, ErrAlreadyMarked)
	})

	s.Run("same student, other shift is a new key", func() {
		_, err := s.service.MarkSingle(ctx, "s1", "c1", s.day(), ShiftAfternoon, StatusPresent, "t1")
		s.NoError(err)
	})
}

func (s *ServiceSuite) TestMarkSingleValidation() {
	ctx := context.Background()

	_, err := s.service.MarkSingle(ctx, "", "c1", s.day(), ShiftMorning, StatusPresent, "t1")
	s.ErrorIs(err, ErrInvalidRecord)

	_, err = s.service.MarkSingle(ctx, "s1", "c1", s.day(), Shift("evening"), StatusPresent, "t1")
	s.ErrorIs(err, ErrInvalidRecord)

	_, err = s.service.MarkSingle(ctx, "s1", "c1", s.day(), ShiftMorning, Status("asleep"), "t1")
	s.ErrorIs(err, ErrInvalidRecord)

	_, err = s.service.MarkSingle(ctx, "s1", "c1", time.Time{}, ShiftMorning, StatusPresent, "t1")
	s.ErrorIs(err, ErrInvalidRecord)
}

func (s *ServiceSuite) TestMarkSingleConcurrentSameKey() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	var ok, conflict atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.MarkSingle(ctx, "s9", "c1", s.day(), ShiftMorning, StatusLate, "t1")
			if err == nil {
				ok.Add(1)
			} else if errors.Is(err, ErrAlreadyMarked) {
				conflict.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), ok.Load(), "exactly one mark should win")
	s.Equal(int32(goroutines-1), conflict.Load())
}

func (s *ServiceSuite) TestBulkUpsertIdempotent() {
	ctx := context.Background()

	first := []Mark{
		{StudentID: "s1", Status: StatusPresent},
		{StudentID: "s2", Status: StatusAbsent},
		{StudentID: "s3", Status: StatusLate},
	}
	recs, err := s.service.BulkUpsert(ctx, "c1", s.day(), ShiftMorning, "t1", first)
	s.Require().NoError(err)
	s.Len(recs, 3)

	// Retransmission with changed statuses: last write wins, no duplicates.
	second := []Mark{
		{StudentID: "s1", Status: StatusAbsent},
		{StudentID: "s2", Status: StatusPresent},
		{StudentID: "s3", Status: StatusLate},
	}
	recs, err = s.service.BulkUpsert(ctx, "c1", s.day(), ShiftMorning, "t1", second)
	s.Require().NoError(err)
	s.Len(recs, 3)

	all, err := s.service.ListByClassDate(ctx, "c1", s.day(), ShiftMorning)
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal(StatusAbsent, all[0].Status)
	s.Equal(StatusPresent, all[1].Status)
	s.Equal(StatusLate, all[2].Status)
}

func (s *ServiceSuite) TestBulkUpsertDuplicateKeyInBatch() {
	ctx := context.Background()

	recs, err := s.service.BulkUpsert(ctx, "c1", s.day(), ShiftMorning, "t1", []Mark{
		{StudentID: "s1", Status: StatusPresent},
		{StudentID: "s1", Status: StatusAbsent},
	})
	s.Require().NoError(err)
	s.Require().Len(recs, 1, "duplicate keys within one batch collapse to one row")
	s.Equal(StatusAbsent, recs[0].Status, "last occurrence wins")

	all, err := s.service.ListByClassDate(ctx, "c1", s.day(), ShiftMorning)
	s.Require().NoError(err)
	s.Len(all, 1)
}

func (s *ServiceSuite) TestEventsPublishedOnlyForNotableStatuses() {
	ctx := context.Background()

	_, err := s.service.MarkSingle(ctx, "s1", "c1", s.day(), ShiftMorning, StatusPresent, "t1")
	s.Require().NoError(err)
	_, err = s.service.MarkSingle(ctx, "s2", "c1", s.day(), ShiftMorning, StatusAbsent, "t1")
	s.Require().NoError(err)
	_, err = s.service.MarkSingle(ctx, "s3", "c1", s.day(), ShiftMorning, StatusExcused, "t1")
	s.Require().NoError(err)
	_, err = s.service.MarkSingle(ctx, "s4", "c1", s.day(), ShiftMorning, StatusLate, "t1")
	s.Require().NoError(err)

	evts := s.publishedEvents()
	s.Require().Len(evts, 2, "only absent and late publish events")

	statuses := map[string]bool{}
	for _, evt := range evts {
		p, ok := evt.Payload.(events.AttendanceMarkedPayload)
		s.Require().True(ok)
		statuses[p.Status] = true
	}
	s.True(statuses["absent"])
	s.True(statuses["late"])
}

func (s *ServiceSuite) TestBulkUpsertPublishesForNotableRows() {
	ctx := context.Background()

	_, err := s.service.BulkUpsert(ctx, "c1", s.day(), ShiftMorning, "t1", []Mark{
		{StudentID: "s1", Status: StatusPresent},
		{StudentID: "s2", Status: StatusAbsent},
		{StudentID: "s3", Status: StatusLate},
		{StudentID: "s4", Status: StatusPresent},
	})
	s.Require().NoError(err)

	s.Len(s.publishedEvents(), 2)
}

func (s *ServiceSuite) TestConflictDoesNotPublish() {
	ctx := context.Background()

	_, err := s.service.MarkSingle(ctx, "s1", "c1", s.day(), ShiftMorning, StatusAbsent, "t1")
	s.Require().NoError(err)
	_, err = s.service.MarkSingle(ctx, "s1", "c1", s.day(), ShiftMorning, StatusAbsent, "t1")
	s.ErrorIs(err, ErrAlreadyMarked)

	s.Len(s.publishedEvents(), 1, "the rejected mark must not publish")
}
