package ticklog

import (
	"context"

	"github.com/kilianp07/trafficgrid/core/coupling"
	"github.com/kilianp07/trafficgrid/core/logger"
	"github.com/kilianp07/trafficgrid/internal/eventbus"
)

// StartWriter appends every report published on bus to store until ctx is
// canceled or the bus is closed. The returned channel is closed on exit.
func StartWriter(ctx context.Context, bus *eventbus.TypedBus[coupling.TickReport], store Store, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || store == nil {
		close(done)
		return done
	}
	log = logger.OrNop(log)
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case rep, ok := <-sub:
				if !ok {
					return
				}
				if err := store.Append(ctx, FromReport(rep)); err != nil {
					log.Errorf("tick log append %d: %v", rep.Tick, err)
				}
			}
		}
	}()
	return done
}
