package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishWithoutSubscribers(t *testing.T) {
	bus := NewBus()
	start := time.Now()
	bus.Publish(context.Background(), Event{Name: "nobody.listens"})
	bus.Wait()
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestSubscribersRunInRegistrationOrder(t *testing.T) {
	bus := NewBus()
	var mu sync.Mutex
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		bus.Subscribe("ordered", func(ctx context.Context, evt Event) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
	}

	bus.Publish(context.Background(), Event{Name: "ordered"})
	bus.Wait()

	require.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestFailingSubscriberDoesNotStopPeers(t *testing.T) {
	bus := NewBus()
	var mu sync.Mutex
	var reached []string

	bus.Subscribe("flaky", func(ctx context.Context, evt Event) error {
		panic("subscriber blew up")
	})
	bus.Subscribe("flaky", func(ctx context.Context, evt Event) error {
		return errors.New("subscriber failed politely")
	})
	bus.Subscribe("flaky", func(ctx context.Context, evt Event) error {
		mu.Lock()
		reached = append(reached, "third")
		mu.Unlock()
		return nil
	})
	bus.Subscribe("other", func(ctx context.Context, evt Event) error {
		mu.Lock()
		reached = append(reached, "other")
		mu.Unlock()
		return nil
	})

	// Must not panic the publisher.
	bus.Publish(context.Background(), Event{Name: "flaky"})
	bus.Publish(context.Background(), Event{Name: "other"})
	bus.Wait()

	assert.Contains(t, reached, "third")
	assert.Contains(t, reached, "other")
}

func TestPublisherNotBlockedBySlowSubscriber(t *testing.T) {
	bus := NewBus()
	release := make(chan struct{})
	bus.Subscribe("slow", func(ctx context.Context, evt Event) error {
		<-release
		return nil
	})

	start := time.Now()
	bus.Publish(context.Background(), Event{Name: "slow"})
	elapsed := time.Since(start)
	close(release)
	bus.Wait()

	assert.Less(t, elapsed, 50*time.Millisecond, "Publish must not wait on subscribers")
}

func TestSubscribersOutliveCallerContext(t *testing.T) {
	bus := NewBus()
	release := make(chan struct{})
	errCh := make(chan error, 1)
	bus.Subscribe("detached", func(ctx context.Context, evt Event) error {
		<-release
		errCh <- ctx.Err()
		return nil
	})

	// Publish from a request-scoped context, then cancel it as net/http does
	// once the handler returns. The subscriber must still see a live context.
	ctx, cancel := context.WithCancel(context.Background())
	bus.Publish(ctx, Event{Name: "detached"})
	cancel()
	close(release)
	bus.Wait()

	require.NoError(t, <-errCh, "dispatch must not die with the request context")
}

func TestConcurrentPublishes(t *testing.T) {
	bus := NewBus()
	var count sync.Map
	bus.Subscribe("burst", func(ctx context.Context, evt Event) error {
		count.Store(evt.Payload, true)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bus.Publish(context.Background(), Event{Name: "burst", Payload: i})
		}(i)
	}
	wg.Wait()
	bus.Wait()

	seen := 0
	count.Range(func(_, _ any) bool { seen++; return true })
	assert.Equal(t, 50, seen)
}
