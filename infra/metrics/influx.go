package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/trafficgrid/core/charging"
	"github.com/kilianp07/trafficgrid/core/coupling"
	coremetrics "github.com/kilianp07/trafficgrid/core/metrics"
	"github.com/kilianp07/trafficgrid/infra/logger"
)

// InfluxSink writes tick status, violations and charging data to InfluxDB
// using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

// RecordStatus writes one grid_status point.
func (s *InfluxSink) RecordStatus(st coupling.Status) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("grid_status").
		AddTag("run_id", st.RunID).
		AddTag("dispatch_mode", st.DispatchMode).
		AddTag("flow_model", st.FlowModel).
		AddField("tick", st.Tick).
		AddField("generation_mw", round3(st.GenerationMW)).
		AddField("load_mw", round3(st.LoadMW)).
		AddField("balance_mw", round3(st.BalanceMW)).
		AddField("solar_mw", round3(st.SolarMW)).
		AddField("battery_mw", round3(st.BatteryMW)).
		AddField("renewable_percent", round3(st.RenewablePercent)).
		AddField("ev_charging_mw", round3(st.Breakdown.EVChargingMW)).
		AddField("traffic_signals_mw", round3(st.Breakdown.TrafficSignalsMW)).
		AddField("street_lights_mw", round3(st.Breakdown.StreetLightsMW)).
		AddField("max_line_utilization", round3(st.MaxLineUtilization)).
		AddField("vehicles", st.Vehicles.Total).
		AddField("evs_charging", st.Vehicles.Charging).
		AddField("violations_critical", st.Violations.Critical).
		SetTime(st.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordViolations writes one point per violation.
func (s *InfluxSink) RecordViolations(ev coremetrics.ViolationEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, v := range ev.Violations {
		p := write.NewPointWithMeasurement("violation").
			AddTag("kind", v.Kind).
			AddTag("element_id", v.ElementID).
			AddTag("severity", string(v.Severity)).
			AddField("value", round3(v.Value)).
			AddField("limit", round3(v.Limit)).
			AddField("tick", ev.Tick).
			SetTime(ev.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordStations writes the load of every station.
func (s *InfluxSink) RecordStations(ev coremetrics.StationEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, st := range ev.Stations {
		p := write.NewPointWithMeasurement("station_load").
			AddTag("station_id", st.ID).
			AddTag("bus", st.Bus).
			AddTag("status", st.Status).
			AddField("occupied", len(st.Occupants)).
			AddField("utilization", round3(st.Utilization)).
			AddField("power_mw", round3(st.PowerMW)).
			SetTime(ev.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordSessions persists closed charging sessions.
func (s *InfluxSink) RecordSessions(sessions []charging.Session) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, ss := range sessions {
		p := write.NewPointWithMeasurement("charging_session").
			AddTag("session_id", ss.ID).
			AddTag("station_id", ss.StationID).
			AddTag("vehicle_id", ss.VehicleID).
			AddField("energy_kwh", round3(ss.EnergyKWh)).
			AddField("duration_s", round3(ss.End.Sub(ss.Start).Seconds())).
			SetTime(ss.End)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
