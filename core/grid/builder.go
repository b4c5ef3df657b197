package grid

import (
	"fmt"
	"math/rand"

	"github.com/paulmach/orb"

	"github.com/kilianp07/trafficgrid/core/model"
)

// Build turns a description into a validated topology. The seed of the
// description drives every pseudo-random choice so that two builds of the
// same description are identical.
func Build(d *Description) (*Topology, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: nil description", ErrInvalidDescription)
	}
	b := &builder{desc: d, topo: newTopology(d.Name), rng: rand.New(rand.NewSource(d.Seed))}
	steps := []func() error{
		b.buses,
		b.explicitLines,
		b.feeds,
		b.feederRules,
		b.generators,
		b.baseLoads,
		b.trafficSignals,
		b.streetLights,
		b.evStations,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return b.topo, nil
}

type builder struct {
	desc *Description
	topo *Topology
	rng  *rand.Rand

	feederSeq int
	xfmrSeq   int
}

func point(lat, lon float64) orb.Point { return orb.Point{lon, lat} }

func (b *builder) addBus(bus model.Bus) error {
	if bus.ID == "" {
		return fmt.Errorf("%w: bus without id", ErrInvalidDescription)
	}
	if _, dup := b.topo.busIdx[bus.ID]; dup {
		return fmt.Errorf("%w: duplicate bus %s", ErrInvalidDescription, bus.ID)
	}
	b.topo.busIdx[bus.ID] = len(b.topo.Buses)
	b.topo.Buses = append(b.topo.Buses, bus)
	return nil
}

func (b *builder) addLine(l model.Line) error {
	from, ok := b.topo.Bus(l.From)
	if !ok {
		return fmt.Errorf("line %s: %w %s", l.ID, ErrUnknownBus, l.From)
	}
	if _, ok := b.topo.Bus(l.To); !ok {
		return fmt.Errorf("line %s: %w %s", l.ID, ErrUnknownBus, l.To)
	}
	if _, dup := b.topo.lineIdx[l.ID]; dup {
		return fmt.Errorf("%w: duplicate line %s", ErrInvalidDescription, l.ID)
	}
	l.Class = from.Class
	b.topo.lineIdx[l.ID] = len(b.topo.Lines)
	b.topo.Lines = append(b.topo.Lines, l)
	return nil
}

func (b *builder) addTransformer(format, high, low string, mva float64) {
	b.xfmrSeq++
	hb, _ := b.topo.Bus(high)
	lb, _ := b.topo.Bus(low)
	ratio := 0.0
	if lb.Class.KV() > 0 {
		ratio = hb.Class.KV() / lb.Class.KV()
	}
	b.topo.Transformers = append(b.topo.Transformers, model.Transformer{
		ID:        fmt.Sprintf(format, b.xfmrSeq),
		HighBus:   high,
		LowBus:    low,
		RatingMVA: mva,
		Ratio:     ratio,
		Tap:       1.0,
	})
}

func (b *builder) addLoad(l model.Load) error {
	if _, ok := b.topo.Bus(l.Bus); !ok {
		return fmt.Errorf("load %s: %w %s", l.ID, ErrUnknownBus, l.Bus)
	}
	if _, dup := b.topo.loadIdx[l.ID]; dup {
		return fmt.Errorf("%w: duplicate load %s", ErrInvalidDescription, l.ID)
	}
	b.topo.loadIdx[l.ID] = len(b.topo.Loads)
	b.topo.Loads = append(b.topo.Loads, l)
	return nil
}

func (b *builder) nearest(p orb.Point, class model.VoltageClass, what string) (string, error) {
	bus, ok := b.topo.NearestBus(p, class)
	if !ok {
		return "", fmt.Errorf("%w: no %s bus for %s", ErrInvalidDescription, class, what)
	}
	return bus.ID, nil
}

func (b *builder) buses() error {
	for _, s := range b.desc.Buses {
		name := s.Name
		if name == "" {
			name = s.ID
		}
		if err := b.addBus(model.Bus{
			ID:          s.ID,
			Name:        name,
			Position:    point(s.Lat, s.Lon),
			Class:       s.Class,
			CapacityMVA: s.MVA,
		}); err != nil {
			return err
		}
	}
	for _, g := range b.desc.BusGrids {
		seq := 0
		for _, lat := range g.Lat.Values() {
			for _, lon := range g.Lon.Values() {
				seq++
				id := fmt.Sprintf(g.Format, seq)
				if err := b.addBus(model.Bus{
					ID:          id,
					Name:        id,
					Position:    point(lat, lon),
					Class:       g.Class,
					CapacityMVA: g.MVA,
					District:    districtName(lat, lon),
				}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (b *builder) explicitLines() error {
	for _, s := range b.desc.Lines {
		if err := b.addLine(model.Line{
			ID:         s.ID,
			From:       s.From,
			To:         s.To,
			CapacityMW: s.CapacityMW,
			R:          s.R,
			X:          s.X,
			B:          s.B,
			LengthKM:   s.LengthKM,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) feeds() error {
	f := b.desc.Feeds
	for _, s := range b.desc.Buses {
		if s.FeedsFrom == "" {
			continue
		}
		if err := b.addLine(model.Line{
			ID:         fmt.Sprintf(f.LineFormat, trimBusPrefix(s.FeedsFrom), s.ID),
			From:       s.FeedsFrom,
			To:         s.ID,
			CapacityMW: f.CapacityMW,
			R:          f.R,
			X:          f.X,
			B:          f.B,
			LengthKM:   f.LengthKM,
		}); err != nil {
			return err
		}
		b.addTransformer(f.TransformerFormat, s.FeedsFrom, s.ID, s.MVA)
	}
	return nil
}

func (b *builder) feederRules() error {
	for _, r := range b.desc.FeederRules {
		var created []model.Line
		for _, from := range b.topo.BusesOfClass(r.From) {
			for _, to := range b.topo.BusesOfClass(r.To) {
				d := DistanceKM(from.Position, to.Position)
				if d >= r.MaxKM {
					continue
				}
				b.feederSeq++
				l := model.Line{
					ID:         fmt.Sprintf(r.LineFormat, b.feederSeq),
					From:       from.ID,
					To:         to.ID,
					CapacityMW: r.CapacityMW,
					R:          r.RPerKM * d,
					X:          r.XPerKM * d,
					B:          r.BPerKM * d,
					LengthKM:   d,
				}
				if err := b.addLine(l); err != nil {
					return err
				}
				created = append(created, l)
			}
		}
		for _, l := range created {
			b.addTransformer(r.TransformerFormat, l.From, l.To, r.TransformerMVA)
		}
	}
	return nil
}

func (b *builder) generators() error {
	for _, s := range b.desc.Generators {
		if _, ok := b.topo.Bus(s.Bus); !ok {
			return fmt.Errorf("generator %s: %w %s", s.ID, ErrUnknownBus, s.Bus)
		}
		if _, dup := b.topo.genIdx[s.ID]; dup {
			return fmt.Errorf("%w: duplicate generator %s", ErrInvalidDescription, s.ID)
		}
		g := model.Generator{
			ID:         s.ID,
			Bus:        s.Bus,
			Type:       s.Type,
			Technology: s.Technology,
			CapacityMW: s.CapacityMW,
			MinMW:      s.MinMW,
			CostPerMWh: s.CostPerMWh,
			MustRun:    s.MustRun,
		}
		if s.Type == model.Battery {
			g.MinMW = 0
			g.EnergyMWh = s.EnergyMWh
			g.Efficiency = s.Efficiency
			if g.Efficiency <= 0 {
				g.Efficiency = 1
			}
			g.SOC = clamp01(s.SOC)
		}
		b.topo.genIdx[g.ID] = len(b.topo.Generators)
		b.topo.Generators = append(b.topo.Generators, g)
	}
	return nil
}

func (b *builder) baseLoads() error {
	for _, s := range b.desc.Loads {
		bus, ok := b.topo.Bus(s.Bus)
		if !ok {
			return fmt.Errorf("load %s: %w %s", s.ID, ErrUnknownBus, s.Bus)
		}
		if err := b.addLoad(model.Load{
			ID:          s.ID,
			Bus:         s.Bus,
			Position:    bus.Position,
			Category:    s.Category,
			BaseMW:      s.BaseMW,
			PowerFactor: s.PowerFactor,
			Critical:    s.Critical,
			CurrentMW:   s.BaseMW,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) trafficSignals() error {
	spec := b.desc.TrafficSignals
	g := spec.Grid
	seq := 0
	for _, lat := range g.Lat.Values() {
		for _, lon := range g.Lon.Values() {
			seq++
			id := fmt.Sprintf(g.Format, seq)
			p := point(lat, lon)
			bus, err := b.nearest(p, spec.BusClass, id)
			if err != nil {
				return err
			}
			led := g.LEDEvery > 0 && seq%g.LEDEvery == 0
			kw := g.LegacyKW
			if led {
				kw = g.LEDKW
			}
			if err := b.addLoad(model.Load{
				ID:          id,
				Bus:         bus,
				Position:    p,
				Category:    model.TrafficSignal,
				BaseMW:      kw / 1000,
				PowerFactor: 1,
				SignalHeads: g.Heads,
				LED:         led,
			}); err != nil {
				return err
			}
		}
	}
	is := spec.Intersections
	for _, site := range is.Sites {
		id := fmt.Sprintf(is.Format, site.Name)
		p := point(site.Lat, site.Lon)
		bus, err := b.nearest(p, spec.BusClass, id)
		if err != nil {
			return err
		}
		perHead := is.LegacyKWPerHead
		if site.LED {
			perHead = is.LEDKWPerHead
		}
		if err := b.addLoad(model.Load{
			ID:          id,
			Bus:         bus,
			Position:    p,
			Category:    model.TrafficSignal,
			BaseMW:      float64(site.Heads) * perHead / 1000,
			PowerFactor: 1,
			SignalHeads: site.Heads,
			LED:         site.LED,
			Adaptive:    site.Heads > spec.AdaptiveHeads,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) streetLights() error {
	spec := b.desc.StreetLights
	if spec.Segments <= 0 {
		return nil
	}
	seq := 0
	for _, av := range spec.Avenues {
		span := av.LatEnd - av.LatStart
		count := int(av.PerKM * span * 111 / float64(spec.Segments))
		for i := 0; i < spec.Segments; i++ {
			seq++
			lat := av.LatStart + span*float64(i)/float64(spec.Segments)
			id := fmt.Sprintf(spec.Format, av.Name, i)
			p := point(lat, av.Lon)
			bus, err := b.nearest(p, spec.BusClass, id)
			if err != nil {
				return err
			}
			led := seq%2 == 0
			kw := spec.LegacyKW
			if led {
				kw = spec.LEDKW
			}
			if err := b.addLoad(model.Load{
				ID:          id,
				Bus:         bus,
				Position:    p,
				Category:    model.StreetLight,
				BaseMW:      kw * float64(count) / 1000,
				PowerFactor: 1,
				LED:         led,
				Dimmable:    led,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *builder) addStation(st model.ChargingStation) error {
	if _, dup := b.topo.stationIdx[st.ID]; dup {
		return fmt.Errorf("%w: duplicate station %s", ErrInvalidDescription, st.ID)
	}
	st.CapacityMW = float64(st.Chargers) * st.PowerKW / 1000
	b.topo.stationIdx[st.ID] = len(b.topo.Stations)
	b.topo.Stations = append(b.topo.Stations, st)
	return b.addLoad(model.Load{
		ID:          st.ID,
		Bus:         st.Bus,
		Position:    st.Position,
		Category:    model.EVCharging,
		BaseMW:      st.CapacityMW,
		PowerFactor: 0.95,
		StationID:   st.ID,
	})
}

func (b *builder) evStations() error {
	seq := 0
	hubs := b.desc.EVStations.Hubs
	for _, site := range hubs.Sites {
		seq++
		id := fmt.Sprintf(hubs.Format, site.Name)
		p := point(site.Lat, site.Lon)
		bus, err := b.nearest(p, hubs.BusClass, id)
		if err != nil {
			return err
		}
		if err := b.addStation(model.ChargingStation{
			ID:       id,
			Name:     site.Name,
			Bus:      bus,
			Position: p,
			Kind:     model.DCFast,
			Chargers: site.Chargers,
			PowerKW:  hubs.PowerKW,
		}); err != nil {
			return err
		}
	}
	l2 := b.desc.EVStations.Level2
	spread := l2.MaxChargers - l2.MinChargers + 1
	for _, lat := range l2.Lat.Values() {
		for _, lon := range l2.Lon.Values() {
			seq++
			id := fmt.Sprintf(l2.Format, seq)
			p := point(lat, lon)
			bus, err := b.nearest(p, l2.BusClass, id)
			if err != nil {
				return err
			}
			chargers := l2.MinChargers
			if spread > 1 {
				chargers += b.rng.Intn(spread)
			}
			if err := b.addStation(model.ChargingStation{
				ID:       id,
				Name:     id,
				Bus:      bus,
				Position: p,
				Kind:     model.Level2,
				Chargers: chargers,
				PowerKW:  l2.PowerKW,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func trimBusPrefix(id string) string {
	const prefix = "SUB_"
	if len(id) > len(prefix) && id[:len(prefix)] == prefix {
		return id[len(prefix):]
	}
	return id
}

// districtName maps a coordinate to a Manhattan neighbourhood.
func districtName(lat, lon float64) string {
	switch {
	case lat > 40.78:
		if lon < -73.97 {
			return "Upper_West_Side"
		}
		return "Upper_East_Side"
	case lat > 40.76:
		if lon < -73.98 {
			return "Hells_Kitchen"
		}
		return "Midtown_East"
	case lat > 40.74:
		if lon < -73.99 {
			return "Chelsea"
		}
		return "Murray_Hill"
	case lat > 40.72:
		if lon < -74.00 {
			return "Greenwich_Village"
		}
		return "Gramercy"
	default:
		if lon < -74.00 {
			return "Tribeca"
		}
		return "Financial_District"
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
