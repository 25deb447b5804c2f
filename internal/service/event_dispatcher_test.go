package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusched/edusched-api/internal/models"
	"github.com/edusched/edusched-api/pkg/jobs"
)

type capturingNotifier struct {
	mu      sync.Mutex
	events  []models.SessionLifecycleEvent
	failing int
}

func (n *capturingNotifier) Notify(_ context.Context, event models.SessionLifecycleEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failing > 0 {
		n.failing--
		return errors.New("delivery failed")
	}
	n.events = append(n.events, event)
	return nil
}

func (n *capturingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

func TestEventDispatcherDeliversAsync(t *testing.T) {
	notifier := &capturingNotifier{}
	dispatcher := NewEventDispatcher(notifier, jobs.QueueConfig{Workers: 2}, nil)
	dispatcher.Start(context.Background())
	defer dispatcher.Stop()

	dispatcher.Dispatch(models.SessionLifecycleEvent{
		SessionID: "sess-1",
		NewStatus: models.SessionScheduled,
	})

	require.Eventually(t, func() bool { return notifier.count() == 1 }, time.Second, 10*time.Millisecond)
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.Equal(t, "sess-1", notifier.events[0].SessionID)
}

func TestEventDispatcherRetriesFailures(t *testing.T) {
	notifier := &capturingNotifier{failing: 1}
	dispatcher := NewEventDispatcher(notifier, jobs.QueueConfig{Workers: 1, RetryDelay: 5 * time.Millisecond}, nil)
	dispatcher.Start(context.Background())
	defer dispatcher.Stop()

	dispatcher.Dispatch(models.SessionLifecycleEvent{SessionID: "sess-1", NewStatus: models.SessionConfirmed})

	require.Eventually(t, func() bool { return notifier.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestEventDispatcherBeforeStart(t *testing.T) {
	notifier := &capturingNotifier{}
	dispatcher := NewEventDispatcher(notifier, jobs.QueueConfig{}, nil)

	// not started: the event is dropped with a warning, never a panic
	dispatcher.Dispatch(models.SessionLifecycleEvent{SessionID: "sess-1"})
	assert.Zero(t, notifier.count())
}
