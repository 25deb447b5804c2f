package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edusched/edusched-api/internal/models"
	"github.com/edusched/edusched-api/pkg/jobs"
)

// Notifier consumes lifecycle events. Delivery (email, push, webhooks) lives
// behind this boundary and never blocks booking.
type Notifier interface {
	Notify(ctx context.Context, event models.SessionLifecycleEvent) error
}

// LoggingNotifier is the default Notifier, it only records the event.
type LoggingNotifier struct {
	logger *zap.Logger
}

// NewLoggingNotifier builds the default notifier.
func NewLoggingNotifier(logger *zap.Logger) *LoggingNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingNotifier{logger: logger}
}

// Notify logs the lifecycle event.
func (n *LoggingNotifier) Notify(_ context.Context, event models.SessionLifecycleEvent) error {
	n.logger.Info("session lifecycle event",
		zap.String("session_id", event.SessionID),
		zap.String("school_id", event.SchoolID),
		zap.String("old_status", string(event.OldStatus)),
		zap.String("new_status", string(event.NewStatus)),
		zap.String("actor_id", event.ActorID),
		zap.Int("participants", len(event.Participants)))
	return nil
}

// EventDispatcher fans lifecycle events out to the notifier through an
// in-memory worker queue so transitions return without waiting on delivery.
type EventDispatcher struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewEventDispatcher builds the dispatcher around a notifier.
func NewEventDispatcher(notifier Notifier, cfg jobs.QueueConfig, logger *zap.Logger) *EventDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
	d := &EventDispatcher{logger: logger}
	d.queue = jobs.NewQueue("session-lifecycle", func(ctx context.Context, job jobs.Job) error {
		event, ok := job.Payload.(models.SessionLifecycleEvent)
		if !ok {
			d.logger.Error("dropping job with unexpected payload", zap.String("job_id", job.ID))
			return nil
		}
		return notifier.Notify(ctx, event)
	}, cfg)
	return d
}

// Start launches the workers.
func (d *EventDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop drains the workers.
func (d *EventDispatcher) Stop() {
	d.queue.Stop()
}

// Dispatch enqueues an event. Failures are logged, never surfaced: a missed
// notification must not fail a booking.
func (d *EventDispatcher) Dispatch(event models.SessionLifecycleEvent) {
	err := d.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "session.lifecycle",
		Payload: event,
	})
	if err != nil {
		d.logger.Warn("failed to enqueue lifecycle event",
			zap.String("session_id", event.SessionID), zap.Error(err))
	}
}
