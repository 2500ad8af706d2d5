package syncer

import (
	"context"
	"time"
)

// Run drives cycles until ctx is cancelled: periodically, on Trigger and
// when the server becomes reachable again. Cycle errors are logged and
// recorded, they do not stop the loop.
func (e *Engine) Run(ctx context.Context) error {
	go e.WatchOnline(ctx)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.Trigger()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-e.trigger:
		}
		if _, err := e.RunCycle(ctx); err != nil && ctx.Err() == nil && IsOffline(err) {
			e.SetOnline(ctx, false)
		}
	}
}

// WatchOnline probes the server every OnlineCheckInterval and updates the
// connectivity state.
func (e *Engine) WatchOnline(ctx context.Context) {
	ticker := time.NewTicker(e.probe)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := e.client.Ping(pctx)
			cancel()
			if ctx.Err() != nil {
				return
			}
			e.SetOnline(ctx, err == nil)

		case <-ctx.Done():
			return
		}
	}
}
