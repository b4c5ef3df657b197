package simulator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/paulmach/orb"

	"github.com/kilianp07/trafficgrid/infra/logger"
	infmqtt "github.com/kilianp07/trafficgrid/infra/mqtt"
)

// Bridge exposes a Source over MQTT using the topic layout read by
// infra/mqtt.TrafficSource. It lets the engine run against the synthetic
// generator in a separate process.
type Bridge struct {
	src    *Source
	conn   infmqtt.Conn
	topics infmqtt.Topics
	log    logger.Logger
}

// NewBridge wires src to conn under prefix.
func NewBridge(src *Source, conn infmqtt.Conn, prefix string, log logger.Logger) *Bridge {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Bridge{src: src, conn: conn, topics: infmqtt.Topics{Prefix: prefix}, log: log}
}

// Start publishes the retained inventory and subscribes to state and route
// commands.
func (b *Bridge) Start(ctx context.Context) error {
	sigs, err := b.src.Signals(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(sigs)
	if err != nil {
		return err
	}
	if err := b.conn.Publish(b.topics.Signals(), "signals", true, payload); err != nil {
		return err
	}
	if err := b.conn.Subscribe(b.topics.SignalStates(), "signal_state", b.onState(ctx)); err != nil {
		return err
	}
	return b.conn.Subscribe(b.topics.Routes(), "route", b.onRoute(ctx))
}

func (b *Bridge) onState(ctx context.Context) infmqtt.Handler {
	return func(topic string, payload []byte) {
		id := infmqtt.Segment(topic, 1)
		if err := b.src.SetSignalState(ctx, id, string(payload)); err != nil {
			b.log.Warnf("apply state: %v", err)
		}
	}
}

func (b *Bridge) onRoute(ctx context.Context) infmqtt.Handler {
	return func(topic string, payload []byte) {
		var req struct {
			VehicleID string    `json:"vehicle_id"`
			StationID string    `json:"station_id"`
			Target    orb.Point `json:"target"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			b.log.Errorf("decode route on %s: %v", topic, err)
			return
		}
		_ = b.src.RequestRoute(ctx, req.VehicleID, req.StationID, req.Target)
	}
}

// Step publishes one snapshot.
func (b *Bridge) Step(ctx context.Context) error {
	snap, err := b.src.Snapshot(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return b.conn.Publish(b.topics.Snapshot(), "snapshot", false, payload)
}

// Run calls Start and then publishes a snapshot every interval until ctx
// is canceled.
func (b *Bridge) Run(ctx context.Context, interval time.Duration) error {
	if err := b.Start(ctx); err != nil {
		return err
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := b.Step(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				b.log.Errorf("publish snapshot: %v", err)
			}
		}
	}
}
