package metrics

import (
	"context"

	"github.com/kilianp07/trafficgrid/core/coupling"
	coremetrics "github.com/kilianp07/trafficgrid/core/metrics"
	"github.com/kilianp07/trafficgrid/infra/logger"
	"github.com/kilianp07/trafficgrid/internal/eventbus"
)

// StartEventCollector subscribes to the tick bus and records every report
// on sink. It stops when the context is canceled or the bus is closed. The
// returned channel is closed once the collector has exited.
func StartEventCollector(ctx context.Context, bus *eventbus.TypedBus[coupling.TickReport], sink coremetrics.MetricsSink, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	if log == nil {
		log = logger.NopLogger{}
	}
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
				if err := coremetrics.RecordTick(sink, rep); err != nil {
					log.Warnf("record tick %d: %v", rep.Tick, err)
				}
			}
		}
	}()
	return done
}
