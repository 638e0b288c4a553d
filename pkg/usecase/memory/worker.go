package memory

import (
	"context"
	"sync"

	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/utils/logging"
)

// Dispatcher runs memory updates in the background so chat latency does
// not pay for extraction and reconciliation. Failures are logged and
// swallowed; a lost memory update must never break the conversation.
type Dispatcher struct {
	uc *UseCase
	wg sync.WaitGroup
}

func NewDispatcher(uc *UseCase) *Dispatcher {
	return &Dispatcher{uc: uc}
}

// Dispatch schedules extraction and reconciliation of the given
// conversation window and returns immediately. The work survives
// cancellation of the calling context; use Wait to drain it.
func (d *Dispatcher) Dispatch(ctx context.Context, userID string, messages []model.Message) {
	window := make([]model.Message, len(messages))
	copy(window, messages)

	// Detach from the request lifetime but keep context values (logger).
	bgCtx := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.process(bgCtx, userID, window)
	}()
}

func (d *Dispatcher) process(ctx context.Context, userID string, messages []model.Message) {
	logger := logging.From(ctx)

	facts, err := d.uc.extractor.Extract(ctx, messages)
	if err != nil {
		logger.Warn("fact extraction failed", "user_id", userID, "error", err)
		return
	}

	for _, fact := range facts {
		result, err := d.uc.Reconcile(ctx, userID, fact)
		if err != nil {
			logger.Warn("memory reconciliation failed",
				"user_id", userID,
				"fact", fact.Text,
				"error", err)
			continue
		}
		logger.Debug("memory reconciled",
			"user_id", userID,
			"action", result.Action,
			"fact", fact.Text)
	}
}

// Wait blocks until all dispatched updates finish or ctx expires.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
