package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kilianp07/trafficgrid/api/stations"
	"github.com/kilianp07/trafficgrid/api/status"
	"github.com/kilianp07/trafficgrid/api/ticks"
	"github.com/kilianp07/trafficgrid/config"
	"github.com/kilianp07/trafficgrid/core/coupling"
	coremetrics "github.com/kilianp07/trafficgrid/core/metrics"
	coremon "github.com/kilianp07/trafficgrid/core/monitoring"
	"github.com/kilianp07/trafficgrid/core/ticklog"
	"github.com/kilianp07/trafficgrid/infra/logger"
	"github.com/kilianp07/trafficgrid/infra/metrics"
	"github.com/kilianp07/trafficgrid/infra/monitoring"
	"github.com/kilianp07/trafficgrid/infra/mqtt"
	"github.com/kilianp07/trafficgrid/infra/tracing"
	"github.com/kilianp07/trafficgrid/internal/eventbus"
)

// reportBuffer is the per-consumer backlog of tick reports.
const reportBuffer = 64

// Service runs the coupling engine and fans every tick out to the
// configured outputs.
type Service struct {
	Engine *Engine

	cfg       *config.Config
	log       logger.Logger
	bus       *eventbus.TypedBus[coupling.TickReport]
	sink      coremetrics.MetricsSink
	eco       *metrics.EcoSink
	ticks     ticklog.Store
	client    *mqtt.PahoClient
	publisher *mqtt.StatusPublisher
	tracing   func(context.Context) error
}

// New creates a Service from the configuration.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	s := &Service{cfg: cfg, log: logger.New("service"), bus: eventbus.NewTypedBuffered[coupling.TickReport](reportBuffer)}

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	if s.tracing, err = tracing.Init(ctx, cfg.Tracing, logger.New("tracing")); err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	if err := s.build(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) build(ctx context.Context) error {
	var err error
	if s.Engine, err = NewEngine(s.cfg); err != nil {
		return err
	}
	if s.sink, err = coremetrics.NewMetricsSink(s.cfg.Metrics.Sinks); err != nil {
		return fmt.Errorf("metrics sink: %w", err)
	}
	s.eco, _ = metrics.FindEcoSink(s.sink)
	if s.ticks, err = ticklog.Open(ctx, s.cfg.TickLog); err != nil {
		return fmt.Errorf("tick log: %w", err)
	}
	if s.cfg.MQTT.Broker != "" {
		if s.client, err = mqtt.NewPahoClient(s.cfg.MQTT); err != nil {
			return fmt.Errorf("mqtt client: %w", err)
		}
		s.publisher = mqtt.NewStatusPublisher(s.client, s.cfg.MQTT.TopicPrefix, logger.New("mqtt_publisher"))
	}
	return nil
}

// Handler returns the status API.
func (s *Service) Handler() http.Handler {
	store := s.Engine.Orchestrator.Store()
	mux := http.NewServeMux()
	mux.Handle("/api/status", status.NewStatusHandler(store))
	mux.Handle("/api/network", status.NewNetworkHandler(store))

	station := status.NewStationHandler(store)
	kpis := http.NotFoundHandler()
	if s.eco != nil {
		kpis = stations.NewKPIHandler(s.eco.Store(), s.eco.Factor())
	}
	mux.Handle("/api/stations/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/kpis") {
			kpis.ServeHTTP(w, r)
			return
		}
		station.ServeHTTP(w, r)
	}))
	if s.ticks != nil {
		mux.Handle("/api/ticks", ticks.NewLogHandler(s.ticks, s.cfg.HTTP.Token))
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

// Run initializes the engine and ticks until ctx is cancelled, the tick
// budget is spent or the traffic source fails. Outputs are drained before
// it returns.
func (s *Service) Run(ctx context.Context) error {
	defer coremon.Recover()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := []<-chan struct{}{
		metrics.StartEventCollector(ctx, s.bus, s.sink, logger.New("metrics")),
		ticklog.StartWriter(ctx, s.bus, s.ticks, logger.New("ticklog")),
	}
	if s.publisher != nil {
		done = append(done, s.publisher.Start(ctx, s.bus))
	}
	if s.cfg.HTTP.Enabled() {
		go func() {
			if err := serve(ctx, s.cfg.HTTP.Addr, s.Handler(), logger.New("http")); err != nil {
				s.log.Errorf("http server: %v", err)
				coremon.CaptureException(err, map[string]string{"module": "http"})
			}
		}()
	}
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	orch := s.Engine.Orchestrator
	if _, err := orch.Initialize(ctx); err != nil {
		coremon.CaptureException(err, map[string]string{"module": "coupling", "stage": "initialize"})
		return err
	}
	s.log.Infof("run %s started: interval=%s max_ticks=%d", orch.Context().RunID, s.cfg.Simulation.TickInterval(), s.cfg.Simulation.MaxTicks)
	err := orch.Run(ctx, s.cfg.Simulation.TickInterval(), s.cfg.Simulation.MaxTicks, s.bus.Publish)

	s.bus.Close()
	for _, d := range done {
		<-d
	}
	if n := s.bus.Dropped(); n > 0 {
		s.log.Warnf("%d tick reports dropped by slow consumers", n)
	}
	if err != nil {
		coremon.CaptureException(err, map[string]string{"module": "coupling", "stage": "tick"})
		return err
	}
	s.log.Infof("run %s finished after %d ticks", orch.Context().RunID, orch.Context().Tick)
	return nil
}

// Close releases every resource held by the service.
func (s *Service) Close() error {
	var errs []error
	if s.Engine != nil {
		errs = append(errs, s.Engine.Close())
	}
	if s.ticks != nil {
		errs = append(errs, s.ticks.Close())
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	if s.client != nil {
		s.client.Disconnect()
	}
	tracing.ShutdownWithTimeout(context.Background(), s.tracing, s.log)
	coremon.Flush(2 * time.Second)
	return errors.Join(errs...)
}
