package mqtt

import (
	"context"
	"encoding/json"

	"github.com/kilianp07/trafficgrid/core/coupling"
	"github.com/kilianp07/trafficgrid/core/dispatch"
	"github.com/kilianp07/trafficgrid/infra/logger"
	"github.com/kilianp07/trafficgrid/internal/eventbus"
)

// StatusPublisher mirrors each tick's status to MQTT.
type StatusPublisher struct {
	conn   Conn
	topics Topics
	log    logger.Logger
}

// NewStatusPublisher creates a publisher writing under prefix.
func NewStatusPublisher(conn Conn, prefix string, log logger.Logger) *StatusPublisher {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &StatusPublisher{conn: conn, topics: Topics{Prefix: prefix}, log: log}
}

// Publish sends the retained status and, when present, the violations of
// the tick.
func (p *StatusPublisher) Publish(rep coupling.TickReport) error {
	payload, err := json.Marshal(rep.Status)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(p.topics.Status(), "status", true, payload); err != nil {
		return err
	}
	v := rep.Dispatch.Violations
	if len(v.Thermal)+len(v.Voltage) == 0 {
		return nil
	}
	payload, err = json.Marshal(struct {
		Tick    int64                `json:"tick"`
		Thermal []dispatch.Violation `json:"thermal"`
		Voltage []dispatch.Violation `json:"voltage"`
	}{rep.Tick, v.Thermal, v.Voltage})
	if err != nil {
		return err
	}
	return p.conn.Publish(p.topics.Violations(), "violations", false, payload)
}

// Start publishes every report from bus until ctx is canceled or the bus
// is closed. The returned channel is closed on exit.
func (p *StatusPublisher) Start(ctx context.Context, bus *eventbus.TypedBus[coupling.TickReport]) <-chan struct{} {
	done := make(chan struct{})
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
				if err := p.Publish(rep); err != nil {
					p.log.Errorf("publish status %d: %v", rep.Tick, err)
				}
			}
		}
	}()
	return done
}
