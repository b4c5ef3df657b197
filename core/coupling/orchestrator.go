package coupling

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kilianp07/trafficgrid/core/charging"
	"github.com/kilianp07/trafficgrid/core/dispatch"
	"github.com/kilianp07/trafficgrid/core/grid"
	"github.com/kilianp07/trafficgrid/core/logger"
	"github.com/kilianp07/trafficgrid/core/model"
	"github.com/kilianp07/trafficgrid/core/monitoring"
	"github.com/kilianp07/trafficgrid/core/signal"
)

const tracerName = "github.com/kilianp07/trafficgrid/core/coupling"

// Config gathers the settings of the components driven by the orchestrator.
type Config struct {
	Signals  signal.Config
	Charging charging.Config
	Dispatch dispatch.Config
	// Bounds restricts signals and vehicles to an area. Nil keeps everything.
	Bounds *orb.Bound
}

// TickReport is everything that happened during one tick.
type TickReport struct {
	RunID         string               `json:"run_id"`
	Tick          int64                `json:"tick"`
	Time          time.Time            `json:"time"`
	Duration      time.Duration        `json:"duration"`
	SignalChanges []signal.StateChange `json:"signal_changes,omitempty"`
	Degraded      []string             `json:"degraded,omitempty"`
	Restored      []string             `json:"restored,omitempty"`
	Charging      charging.Result      `json:"charging"`
	Breakdown     grid.Breakdown       `json:"breakdown"`
	Dispatch      dispatch.Result      `json:"dispatch"`
	Status        Status               `json:"status"`
	Errors        []EntityError        `json:"errors,omitempty"`
	// Network is the snapshot published for this tick. It is shared with
	// the store and must not be modified.
	Network *NetworkSnapshot `json:"-"`
}

// Orchestrator runs the coupling pipeline. Tick and Initialize must be
// called from a single goroutine; published snapshots may be read from
// anywhere through the store.
type Orchestrator struct {
	sim      *SimulationContext
	source   TrafficSource
	router   Router
	topo     *grid.Topology
	signals  *signal.Controller
	charging *charging.Coordinator
	engine   *dispatch.Engine
	store    *SnapshotStore
	bounds   *orb.Bound
	log      logger.Logger
	tracer   trace.Tracer

	lightBus    map[string]string
	lightIDs    []string
	initialized bool
}

// New wires the components of one run. The seeded RNG of sim drives the
// signal offsets and the EV battery draws.
func New(cfg Config, sim *SimulationContext, source TrafficSource, topo *grid.Topology, store *SnapshotStore, log logger.Logger) (*Orchestrator, error) {
	if sim == nil || source == nil || topo == nil {
		return nil, fmt.Errorf("coupling: simulation context, source and topology are required")
	}
	log = logger.OrNop(log)
	cfg.Signals.SetDefaults()
	if err := cfg.Signals.Validate(); err != nil {
		return nil, fmt.Errorf("signals: %w", err)
	}
	cfg.Charging.SetDefaults()
	if err := cfg.Charging.Validate(); err != nil {
		return nil, fmt.Errorf("charging: %w", err)
	}
	engine, err := dispatch.NewEngine(cfg.Dispatch, log)
	if err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}
	if store == nil {
		store = &SnapshotStore{}
	}
	o := &Orchestrator{
		sim:      sim,
		source:   source,
		topo:     topo,
		signals:  signal.NewController(cfg.Signals, sim.Rand, log),
		charging: charging.NewCoordinator(cfg.Charging, topo.Stations, sim.Seed, sim.Rand, log),
		engine:   engine,
		store:    store,
		bounds:   cfg.Bounds,
		log:      log,
		tracer:   otel.Tracer(tracerName),
		lightBus: make(map[string]string),
	}
	if r, ok := source.(Router); ok {
		o.router = r
	}
	if cfg.Bounds != nil {
		o.signals.SetBounds(*cfg.Bounds)
	}
	return o, nil
}

// Context returns the simulation context of the run.
func (o *Orchestrator) Context() *SimulationContext { return o.sim }

// Topology returns the network driven by the orchestrator.
func (o *Orchestrator) Topology() *grid.Topology { return o.topo }

// Charging exposes the coordinator for runtime knob changes.
func (o *Orchestrator) Charging() *charging.Coordinator { return o.charging }

// Signals exposes the signal controller for read access between ticks.
func (o *Orchestrator) Signals() *signal.Controller { return o.signals }

// Store returns the snapshot store the orchestrator publishes to.
func (o *Orchestrator) Store() *SnapshotStore { return o.store }

// Initialize loads the signal inventory, pushes the initial states and maps
// every light to its nearest secondary bus. Rejected signals are returned
// as entity errors.
func (o *Orchestrator) Initialize(ctx context.Context) ([]EntityError, error) {
	ctx, span := o.tracer.Start(ctx, "coupling.initialize")
	defer span.End()

	inventory, err := o.source.Signals(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "signal inventory")
		return nil, fmt.Errorf("%w: signal inventory: %w", ErrTrafficUnavailable, err)
	}

	changes, rejected := o.signals.Initialize(inventory)
	var errs []EntityError
	for _, r := range rejected {
		errs = append(errs, EntityError{Component: ComponentSignal, EntityID: r.ID, Err: r.Err})
	}
	errs = append(errs, o.push(ctx, changes)...)

	for _, v := range o.signals.Views() {
		bus, ok := o.topo.NearestBus(v.Position, model.Secondary)
		if !ok {
			errs = append(errs, EntityError{Component: ComponentGrid, EntityID: v.ID, Err: grid.ErrUnknownBus})
			continue
		}
		o.lightBus[v.ID] = bus.ID
		o.lightIDs = append(o.lightIDs, v.ID)
	}
	sort.Strings(o.lightIDs)
	o.initialized = true

	span.SetAttributes(
		attribute.Int("signals.inventory", len(inventory)),
		attribute.Int("signals.active", o.signals.Len()),
		attribute.Int("errors", len(errs)),
	)
	o.log.Infof("coupling initialized: run=%s signals=%d/%d stations=%d", o.sim.RunID, o.signals.Len(), len(inventory), len(o.topo.Stations))
	o.logErrors(errs)
	return errs, nil
}

// Tick advances the coupled system by one step. Only a traffic source
// failure is returned as an error; entity faults are collected in the
// report.
func (o *Orchestrator) Tick(ctx context.Context) (TickReport, error) {
	if !o.initialized {
		return TickReport{}, ErrNotInitialized
	}
	start := time.Now()
	o.sim.Tick++
	ctx, span := o.tracer.Start(ctx, "coupling.tick", trace.WithAttributes(
		attribute.String("run_id", o.sim.RunID),
		attribute.Int64("tick", o.sim.Tick),
	))
	defer span.End()

	now, elapsed := o.sim.Clock.Advance()
	rep := TickReport{RunID: o.sim.RunID, Tick: o.sim.Tick, Time: now}

	sctx, s := o.tracer.Start(ctx, "traffic.snapshot")
	snap, err := o.source.Snapshot(sctx)
	s.End()
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrTrafficUnavailable, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "traffic snapshot")
		monitoring.CaptureException(err, map[string]string{"component": ComponentTraffic, "run_id": o.sim.RunID})
		return rep, err
	}
	vehicles := o.inBounds(snap.Vehicles)

	sctx, s = o.tracer.Start(ctx, "signals.advance")
	rep.SignalChanges = o.signals.Advance()
	rep.Errors = append(rep.Errors, o.push(sctx, rep.SignalChanges)...)
	s.End()

	sctx, s = o.tracer.Start(ctx, "charging.process")
	rep.Charging = o.charging.Process(vehicles, now)
	rep.Errors = append(rep.Errors, o.route(sctx, rep.Charging.Routes)...)
	s.SetAttributes(attribute.Int("evs", rep.Charging.TotalEVs), attribute.Int("charging", rep.Charging.Charging))
	s.End()

	_, s = o.tracer.Start(ctx, "grid.apply_loads")
	rep.Breakdown = o.topo.ApplyLoads(grid.LoadInputs{
		VehicleCount: len(vehicles),
		SignalStates: o.signals.States(),
		Occupancy:    rep.Charging.Counts(),
		Time:         now,
	})
	s.SetAttributes(attribute.Float64("load_mw", rep.Breakdown.TotalMW))
	s.End()

	_, s = o.tracer.Start(ctx, "dispatch.run")
	rep.Dispatch = o.engine.Run(o.topo, now)
	s.SetAttributes(
		attribute.String("mode", rep.Dispatch.Dispatch.Mode),
		attribute.String("flow", rep.Dispatch.FlowModel),
		attribute.Float64("balance_mw", rep.Dispatch.Dispatch.BalanceMW),
	)
	s.End()

	sctx, s = o.tracer.Start(ctx, "signals.voltage_pushback")
	var pushErrs []EntityError
	rep.Degraded, rep.Restored, pushErrs = o.pushBack(sctx, rep.Dispatch.Violations)
	rep.Errors = append(rep.Errors, pushErrs...)
	s.End()

	o.sim.record(rep.Breakdown.TotalMW, elapsed)
	rep.Status = o.buildStatus(now, vehicles, rep.Charging, rep.Breakdown, rep.Dispatch)
	rep.Network = o.buildNetwork(now, rep.Dispatch)
	o.store.Publish(&Published{Status: rep.Status, Network: rep.Network})

	rep.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Int("vehicles", len(vehicles)),
		attribute.Int("errors", len(rep.Errors)),
		attribute.Int("violations.critical", rep.Status.Violations.Critical),
	)
	o.logErrors(rep.Errors)
	o.log.Debugw("tick", map[string]any{
		"tick":     rep.Tick,
		"load_mw":  rep.Status.LoadMW,
		"gen_mw":   rep.Status.GenerationMW,
		"vehicles": len(vehicles),
		"charging": rep.Charging.Charging,
		"degraded": len(rep.Degraded),
	})
	return rep, nil
}

// Run drives Tick until ctx is cancelled, maxTicks ticks have run or the
// traffic source fails. A zero interval runs ticks back to back; a
// non-positive maxTicks runs forever.
func (o *Orchestrator) Run(ctx context.Context, interval time.Duration, maxTicks int, onTick func(TickReport)) error {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for n := 0; maxTicks <= 0 || n < maxTicks; n++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return nil
		}
		rep, err := o.Tick(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if onTick != nil {
			onTick(rep)
		}
	}
	return nil
}

func (o *Orchestrator) inBounds(vs []model.Vehicle) []model.Vehicle {
	if o.bounds == nil {
		return vs
	}
	out := make([]model.Vehicle, 0, len(vs))
	for _, v := range vs {
		if o.bounds.Contains(v.Position) {
			out = append(out, v)
		}
	}
	return out
}

func (o *Orchestrator) push(ctx context.Context, changes []signal.StateChange) []EntityError {
	var errs []EntityError
	for _, c := range changes {
		if err := o.source.SetSignalState(ctx, c.ID, c.State); err != nil {
			errs = append(errs, EntityError{Component: ComponentSignal, EntityID: c.ID, Err: err})
		}
	}
	return errs
}

func (o *Orchestrator) route(ctx context.Context, routes []charging.RouteRequest) []EntityError {
	if o.router == nil {
		return nil
	}
	var errs []EntityError
	for _, r := range routes {
		if err := o.router.RequestRoute(ctx, r.VehicleID, r.StationID, r.Target); err != nil {
			errs = append(errs, EntityError{Component: ComponentCharging, EntityID: r.VehicleID, Err: err})
		}
	}
	return errs
}

// pushBack degrades the lights fed by undervoltaged buses to flashing
// yellow and restores those whose bus has recovered.
func (o *Orchestrator) pushBack(ctx context.Context, v dispatch.Violations) (degraded, restored []string, errs []EntityError) {
	low := make(map[string]bool)
	for _, id := range v.Undervoltage() {
		low[id] = true
	}
	var changes []signal.StateChange
	for _, id := range o.lightIDs {
		view, ok := o.signals.State(id)
		if !ok {
			continue
		}
		switch {
		case low[o.lightBus[id]] && !view.Degraded:
			c, err := o.signals.Degrade(id)
			if err != nil {
				errs = append(errs, EntityError{Component: ComponentSignal, EntityID: id, Err: err})
				continue
			}
			degraded = append(degraded, id)
			changes = append(changes, c)
		case !low[o.lightBus[id]] && view.Degraded:
			c, err := o.signals.Restore(id)
			if err != nil {
				errs = append(errs, EntityError{Component: ComponentSignal, EntityID: id, Err: err})
				continue
			}
			restored = append(restored, id)
			changes = append(changes, c)
		}
	}
	errs = append(errs, o.push(ctx, changes)...)
	if len(degraded) > 0 {
		o.log.Warnf("undervoltage: degraded %d traffic lights", len(degraded))
	}
	return degraded, restored, errs
}

func (o *Orchestrator) logErrors(errs []EntityError) {
	for _, e := range errs {
		o.log.Warnf("entity fault: %v", e)
	}
}
