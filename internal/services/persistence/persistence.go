// Package persistence consumes raw observations from the bus and writes
// them to InfluxDB, keeping an in-memory latest-per-zone cache as a
// fallback for readers when Influx is unreachable.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/fieldtoalert/field-to-alert/internal/model"
	"github.com/fieldtoalert/field-to-alert/pkg/mqttbus"
)

type InfluxConfig struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string
}

type Service struct {
	consumer    mqttbus.IConsumer[model.RawObservation]
	writeAPI    api.WriteAPIBlocking
	queryAPI    api.QueryAPI
	bucket      string
	measurement string

	cacheMu sync.RWMutex
	cache   map[string]model.RawObservation // zone_id -> latest accepted payload
}

func NewService(consumer mqttbus.IConsumer[model.RawObservation], client influxdb2.Client, cfg InfluxConfig) (*Service, error) {
	if cfg.URL == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("persistence: influx config incomplete")
	}
	s := &Service{
		consumer:    consumer,
		writeAPI:    client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		queryAPI:    client.QueryAPI(cfg.Org),
		bucket:      cfg.Bucket,
		measurement: sanitizeMeasurement(cfg.Measurement),
		cache:       make(map[string]model.RawObservation),
	}
	if s.measurement == "" {
		s.measurement = "soil_observation"
	}
	consumer.SetHandler(s.handleObservation)
	return s, nil
}

// Start runs the consume loop until the context is cancelled.
func (s *Service) Start(ctx context.Context) {
	s.consumer.Consume(ctx)
}

func (s *Service) handleObservation(topic string, msg mqtt.Message) error {
	var obs model.RawObservation
	if err := json.Unmarshal(msg.Payload(), &obs); err != nil {
		log.Printf("persistence: invalid JSON on %s: %v", topic, err)
		return nil // keep the stream moving
	}
	if obs.ZoneID == "" {
		log.Printf("persistence: observation without zone_id on %s dropped", topic)
		return nil
	}

	ts := obs.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	s.cacheMu.Lock()
	if prev, ok := s.cache[obs.ZoneID]; !ok || ts.After(prev.Timestamp) {
		s.cache[obs.ZoneID] = obs
	}
	s.cacheMu.Unlock()

	point := influxdb2.NewPoint(s.measurement,
		map[string]string{"zone_id": obs.ZoneID},
		observationFields(obs),
		ts)
	if err := s.writeAPI.WritePoint(context.Background(), point); err != nil {
		log.Printf("persistence: write error for zone %s: %v", obs.ZoneID, err)
		return err
	}
	return nil
}

// observationFields flattens an observation into Influx fields. Depth keys
// become vwc_<depth>in columns; absent optionals are omitted.
func observationFields(obs model.RawObservation) map[string]interface{} {
	fields := map[string]interface{}{
		"canopy_temp_c": obs.CanopyTempC,
		"air_temp_c":    obs.AirTempC,
	}
	for depth, v := range obs.Moisture {
		fields["vwc_"+depth+"in"] = v
	}
	if obs.RelHumidityPct != nil {
		fields["rel_humidity_pct"] = *obs.RelHumidityPct
	}
	if obs.VPDkPa != nil {
		fields["vpd_kpa"] = *obs.VPDkPa
	}
	if obs.RainMM != nil {
		fields["rain_mm"] = *obs.RainMM
	}
	return fields
}

// LatestCache returns the in-memory latest observation per zone.
func (s *Service) LatestCache() []model.RawObservation {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	out := make([]model.RawObservation, 0, len(s.cache))
	for _, obs := range s.cache {
		out = append(out, obs)
	}
	return out
}

// QueryLatestFromInflux reads the newest row per zone within the window.
func (s *Service) QueryLatestFromInflux(ctx context.Context, minutes int) ([]model.RawObservation, error) {
	flux := fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == %q)
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> group(columns: ["zone_id"])
  |> sort(columns: ["_time"])
  |> last(column: "_time")`, s.bucket, minutes, s.measurement)

	result, err := s.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("persistence: latest query: %w", err)
	}
	defer result.Close()

	var out []model.RawObservation
	for result.Next() {
		rec := result.Record()
		zoneID, _ := rec.ValueByKey("zone_id").(string)
		if zoneID == "" {
			continue
		}
		obs := model.RawObservation{
			ZoneID:    zoneID,
			Timestamp: rec.Time(),
			Moisture:  make(map[string]float64),
		}
		for key, val := range rec.Values() {
			f, ok := val.(float64)
			if !ok {
				continue
			}
			switch {
			case strings.HasPrefix(key, "vwc_") && strings.HasSuffix(key, "in"):
				obs.Moisture[strings.TrimSuffix(strings.TrimPrefix(key, "vwc_"), "in")] = f
			case key == "canopy_temp_c":
				obs.CanopyTempC = f
			case key == "air_temp_c":
				obs.AirTempC = f
			case key == "rel_humidity_pct":
				v := f
				obs.RelHumidityPct = &v
			case key == "vpd_kpa":
				v := f
				obs.VPDkPa = &v
			case key == "rain_mm":
				v := f
				obs.RainMM = &v
			}
		}
		out = append(out, obs)
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("persistence: latest query: %w", result.Err())
	}
	return out, nil
}

func sanitizeMeasurement(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '_', r == ':', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
