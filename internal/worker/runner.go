// Package worker runs the background jobs of the service.
package worker

import (
	"context"
	"sync"

	"github.com/spec-kit/ticket-triage/internal/service"
)

// Runner owns the background goroutines started by Start.
type Runner struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Start registers notification handlers and launches the save-retry worker.
// Either argument may be nil.
func Start(ctx context.Context, notifications *service.NotificationService, saveRetry *SaveRetryWorker) *Runner {
	ctx, cancel := context.WithCancel(ctx)
	r := &Runner{cancel: cancel}

	if notifications != nil {
		notifications.RegisterHandlers()
	}
	if saveRetry != nil {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			saveRetry.Run(ctx)
		}()
	}
	return r
}

// Stop cancels the workers and waits for them to return.
func (r *Runner) Stop() {
	r.cancel()
	r.wg.Wait()
}
