package simulator

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/kilianp07/trafficgrid/core/model"
)

const metersPerDegLat = 111_320.0

// street grid geometry shared by the signal inventory and vehicle motion.
type streetGrid struct {
	bounds  orb.Bound
	rows    int
	cols    int
	dLat    float64
	dLon    float64
	lonM    float64
	signals []model.SignalDescriptor
	at      map[[2]int]string
	ids     map[string]struct{}
}

func newStreetGrid(cfg Config) *streetGrid {
	g := &streetGrid{
		bounds: cfg.Bounds,
		rows:   cfg.Streets,
		cols:   cfg.Avenues,
		dLat:   (cfg.Bounds.Max.Lat() - cfg.Bounds.Min.Lat()) / float64(cfg.Streets),
		dLon:   (cfg.Bounds.Max.Lon() - cfg.Bounds.Min.Lon()) / float64(cfg.Avenues),
		at:     make(map[[2]int]string, cfg.Streets*cfg.Avenues),
		ids:    make(map[string]struct{}, cfg.Streets*cfg.Avenues),
	}
	g.lonM = metersPerDegLat * math.Cos(cfg.Bounds.Center().Lat()*math.Pi/180)
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			id := fmt.Sprintf("J%02d_%02d", r, c)
			pos := g.node(r, c)
			lanes := make([]orb.LineString, cfg.LanesPerSignal)
			for i := range lanes {
				// approaches from N, E, S and W in turn, ending on the node
				a := float64(i%4) * math.Pi / 2
				from := orb.Point{pos.Lon() + 0.3*g.dLon*math.Sin(a), pos.Lat() + 0.3*g.dLat*math.Cos(a)}
				lanes[i] = orb.LineString{from, pos}
			}
			g.signals = append(g.signals, model.SignalDescriptor{ID: id, Lanes: lanes})
			g.at[[2]int{r, c}] = id
			g.ids[id] = struct{}{}
		}
	}
	return g
}

func (g *streetGrid) node(r, c int) orb.Point {
	return orb.Point{
		g.bounds.Min.Lon() + (float64(c)+0.5)*g.dLon,
		g.bounds.Min.Lat() + (float64(r)+0.5)*g.dLat,
	}
}

// nextSignal returns the id of the first intersection ahead of p when
// moving in direction (dr, dc), and the distance to it in meters.
func (g *streetGrid) nextSignal(p orb.Point, dr, dc int) (string, float64, bool) {
	fr := (p.Lat()-g.bounds.Min.Lat())/g.dLat - 0.5
	fc := (p.Lon()-g.bounds.Min.Lon())/g.dLon - 0.5
	var r, c int
	switch {
	case dr > 0:
		r, c = int(math.Floor(fr))+1, int(math.Round(fc))
	case dr < 0:
		r, c = int(math.Ceil(fr))-1, int(math.Round(fc))
	case dc > 0:
		r, c = int(math.Round(fr)), int(math.Floor(fc))+1
	default:
		r, c = int(math.Round(fr)), int(math.Ceil(fc))-1
	}
	id, ok := g.at[[2]int{r, c}]
	if !ok {
		return "", 0, false
	}
	n := g.node(r, c)
	return id, math.Abs(n.Lat()-p.Lat())*metersPerDegLat + math.Abs(n.Lon()-p.Lon())*g.lonM, true
}
