package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/paulmach/orb"

	"github.com/kilianp07/trafficgrid/core/coupling"
	"github.com/kilianp07/trafficgrid/core/factory"
	"github.com/kilianp07/trafficgrid/core/model"
	"github.com/kilianp07/trafficgrid/infra/logger"
)

// ErrNoSnapshot is returned when no data arrived before the context ended.
var ErrNoSnapshot = errors.New("mqtt: no traffic data received")

// Conn is the subset of PahoClient used by the traffic source and the
// status publisher.
type Conn interface {
	Publish(topic, kind string, retained bool, payload []byte) error
	Subscribe(topic, kind string, h Handler) error
}

// TrafficSource receives snapshots and the signal inventory from an
// external simulator over MQTT and publishes signal states and route
// requests back.
type TrafficSource struct {
	conn   Conn
	topics Topics
	log    logger.Logger

	snapshots chan model.TrafficSnapshot

	mu        sync.Mutex
	inventory []model.SignalDescriptor
	ready     chan struct{}
}

// NewTrafficSource subscribes to the snapshot and inventory topics.
func NewTrafficSource(conn Conn, prefix string, log logger.Logger) (*TrafficSource, error) {
	if log == nil {
		log = logger.NopLogger{}
	}
	s := &TrafficSource{
		conn:      conn,
		topics:    Topics{Prefix: prefix},
		log:       log,
		snapshots: make(chan model.TrafficSnapshot, 1),
		ready:     make(chan struct{}),
	}
	if err := conn.Subscribe(s.topics.Signals(), "signals", s.onSignals); err != nil {
		return nil, fmt.Errorf("subscribe inventory: %w", err)
	}
	if err := conn.Subscribe(s.topics.Snapshot(), "snapshot", s.onSnapshot); err != nil {
		return nil, fmt.Errorf("subscribe snapshot: %w", err)
	}
	return s, nil
}

func (s *TrafficSource) onSignals(topic string, payload []byte) {
	var inv []model.SignalDescriptor
	if err := json.Unmarshal(payload, &inv); err != nil {
		s.log.Errorf("decode inventory on %s: %v", topic, err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inventory = inv
	select {
	case <-s.ready:
	default:
		close(s.ready)
	}
}

// onSnapshot keeps only the newest undelivered snapshot.
func (s *TrafficSource) onSnapshot(topic string, payload []byte) {
	var snap model.TrafficSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		s.log.Errorf("decode snapshot on %s: %v", topic, err)
		return
	}
	for {
		select {
		case s.snapshots <- snap:
			return
		default:
		}
		select {
		case <-s.snapshots:
		default:
		}
	}
}

// Signals waits for the retained inventory.
func (s *TrafficSource) Signals(ctx context.Context) ([]model.SignalDescriptor, error) {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrNoSnapshot, ctx.Err())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.SignalDescriptor(nil), s.inventory...), nil
}

// Snapshot blocks until a snapshot newer than the previous call arrives.
func (s *TrafficSource) Snapshot(ctx context.Context) (model.TrafficSnapshot, error) {
	select {
	case snap := <-s.snapshots:
		return snap, nil
	case <-ctx.Done():
		return model.TrafficSnapshot{}, fmt.Errorf("%w: %w", ErrNoSnapshot, ctx.Err())
	}
}

// SetSignalState publishes the raw state string of one light.
func (s *TrafficSource) SetSignalState(_ context.Context, id, state string) error {
	return s.conn.Publish(s.topics.SignalState(id), "signal_state", false, []byte(state))
}

type routeRequest struct {
	VehicleID string    `json:"vehicle_id"`
	StationID string    `json:"station_id"`
	Target    orb.Point `json:"target"`
}

// RequestRoute asks the simulator to send a vehicle to a station.
func (s *TrafficSource) RequestRoute(_ context.Context, vehicleID, stationID string, target orb.Point) error {
	payload, err := json.Marshal(routeRequest{VehicleID: vehicleID, StationID: stationID, Target: target})
	if err != nil {
		return err
	}
	return s.conn.Publish(s.topics.Route(vehicleID), "route", false, payload)
}

var _ coupling.Router = (*TrafficSource)(nil)

func init() {
	coupling.Sources.MustRegister("mqtt", func(conf map[string]any) (coupling.TrafficSource, error) {
		var cfg Config
		if err := factory.Decode(conf, &cfg); err != nil {
			return nil, err
		}
		cli, err := NewPahoClient(cfg)
		if err != nil {
			return nil, err
		}
		cfg.SetDefaults()
		return NewTrafficSource(cli, cfg.TopicPrefix, logger.New("mqtt_source"))
	})
}

// Close disconnects the underlying client when it supports it.
func (s *TrafficSource) Close() error {
	if d, ok := s.conn.(interface{ Disconnect() }); ok {
		d.Disconnect()
	}
	return nil
}
