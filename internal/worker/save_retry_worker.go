package worker

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/events"
	"github.com/spec-kit/ticket-triage/internal/observability"
	"github.com/spec-kit/ticket-triage/internal/queue"
	"github.com/spec-kit/ticket-triage/internal/repository"
)

const maxRetryDelay = 5 * time.Minute

// SaveRetryWorker drains the pending-save queue into the row store.
type SaveRetryWorker struct {
	queue      queue.SaveQueue
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	interval   time.Duration
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

// SaveRetryDependencies bundles collaborators for the worker.
type SaveRetryDependencies struct {
	Queue      queue.SaveQueue
	TicketRepo repository.TicketRepository
	Dispatcher events.Dispatcher
	Interval   time.Duration
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// NewSaveRetryWorker constructs the worker.
func NewSaveRetryWorker(deps SaveRetryDependencies) *SaveRetryWorker {
	if deps.Interval <= 0 {
		deps.Interval = 5 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &SaveRetryWorker{
		queue:      deps.Queue,
		tickets:    deps.TicketRepo,
		dispatcher: deps.Dispatcher,
		interval:   deps.Interval,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		now:        time.Now,
	}
}

// Run drains the queue every interval until ctx is done. After a failed
// drain the next attempt backs off exponentially, capped at five minutes.
func (w *SaveRetryWorker) Run(ctx context.Context) {
	backoff := w.newBackoff()
	delay := w.interval
	for {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if _, err := w.Drain(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			next, _ := backoff.Next()
			delay = next
			w.logger.Warn("pending saves still failing", zap.Duration("retry_in", delay), zap.Error(err))
			continue
		}
		backoff = w.newBackoff()
		delay = w.interval
	}
}

func (w *SaveRetryWorker) newBackoff() retry.Backoff {
	return retry.WithCappedDuration(maxRetryDelay, retry.NewExponential(w.interval))
}

// Drain saves queued tickets in order. An item is removed only after its
// save succeeds; on failure it stays at the head with its attempt recorded
// and draining stops.
func (w *SaveRetryWorker) Drain(ctx context.Context) (int, error) {
	saved := 0
	for {
		item, err := w.queue.Peek(ctx)
		if err != nil {
			return saved, err
		}
		if item == nil {
			return saved, nil
		}

		ticket := item.Ticket
		if err := w.tickets.Save(ctx, &ticket); err != nil {
			item.Attempts++
			item.LastError = err.Error()
			if uerr := w.queue.UpdateHead(context.WithoutCancel(ctx), *item); uerr != nil {
				w.logger.Warn("could not record failed attempt",
					zap.String("ticket_id", ticket.ID), zap.Error(uerr))
			}
			if !errors.Is(err, domain.ErrStoreUnavailable) {
				w.logger.Error("pending save rejected", zap.String("ticket_id", ticket.ID), zap.Error(err))
			}
			return saved, err
		}

		if err := w.queue.Ack(context.WithoutCancel(ctx)); err != nil {
			// The ticket is stored; the next drain saves it again, which the
			// upsert makes harmless.
			w.logger.Warn("could not remove saved ticket from queue",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
			return saved, err
		}

		saved++
		w.metrics.RecordSave("recovered")
		w.logger.Info("pending save recovered",
			zap.String("ticket_id", ticket.ID),
			zap.Int("attempts", item.Attempts+1))
		w.publish(ctx, events.NewEvent(events.EventTicketSaveRecovered, ticket.ID,
			events.TicketSaveRecoveredPayload{
				Attempts: item.Attempts + 1,
				Delay:    w.now().Sub(item.EnqueuedAt),
			}))
	}
}

func (w *SaveRetryWorker) publish(ctx context.Context, event events.Event) {
	if w.dispatcher == nil {
		return
	}
	if err := w.dispatcher.Publish(ctx, event); err != nil {
		w.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
