package event

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
)

// Decision is the read-side payload served to the gateway.
type Decision struct {
	ZoneID    string  `json:"zone_id,omitempty"`
	SMDmm     float64 `json:"smd_mm"`
	SMDFrac   float64 `json:"smd_frac"`
	CWSI      float64 `json:"cwsi"`
	Triggered bool    `json:"triggered"`
	Rationale string  `json:"rationale"`
	Time      string  `json:"time"` // RFC3339
}

// Irrigation is one applied-water event served to the gateway.
type Irrigation struct {
	ZoneID string  `json:"zone_id,omitempty"`
	Amount float64 `json:"amount"` // mm
	Time   string  `json:"time"`   // RFC3339
}

type queryParams struct {
	Minutes   int
	Limit     int
	TimeoutMS int
}

func parseParams(r *http.Request, defMin, defLim, defTOms int) queryParams {
	q := r.URL.Query()
	get := func(k string, def, min, max int) int {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				if n < min {
					return min
				}
				if max > 0 && n > max {
					return max
				}
				return n
			}
		}
		return def
	}
	return queryParams{
		Minutes:   get("minutes", defMin, 1, 7*24*60),
		Limit:     get("limit", defLim, 1, 500),
		TimeoutMS: get("timeout_ms", defTOms, 200, 5000),
	}
}

func decisionFlux(bucket string, minutes, limit int) string {
	return fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == "system_event" and r.event_type == "irrigation.decision")
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> keep(columns: ["_time","zone_id","smd_mm","smd_frac","cwsi","triggered","rationale"])
  |> sort(columns: ["_time"], desc: true)
  |> limit(n:%d)
`, bucket, minutes, limit)
}

func irrigationFlux(bucket string, minutes, limit int) string {
	return fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == "system_event" and r.event_type == "irrigation.result")
  |> filter(fn: (r) => r._field == "applied_mm")
  |> keep(columns: ["_time","_value","zone_id"])
  |> sort(columns: ["_time"], desc: true)
  |> limit(n:%d)
`, bucket, minutes, limit)
}

// NewDecisionLatestHandler serves the most recent decisions.
//
// GET /events/decisions/latest?limit=20[&minutes=1440]
func NewDecisionLatestHandler(influx influxdb2.Client, org, bucket string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := parseParams(r, 1440, 20, 2000)
		ctx, cancel := context.WithTimeout(r.Context(), time.Duration(p.TimeoutMS)*time.Millisecond)
		defer cancel()

		res, err := influx.QueryAPI(org).Query(ctx, decisionFlux(bucket, p.Minutes, p.Limit))
		if err != nil {
			writeEmpty(w, "influx-query-error")
			return
		}
		defer res.Close()

		out := make([]Decision, 0, p.Limit)
		for res.Next() {
			rec := res.Record()
			d := Decision{Time: rec.Time().UTC().Format(time.RFC3339)}
			d.ZoneID, _ = rec.ValueByKey("zone_id").(string)
			d.SMDmm = floatAt(rec.ValueByKey("smd_mm"))
			d.SMDFrac = floatAt(rec.ValueByKey("smd_frac"))
			d.CWSI = floatAt(rec.ValueByKey("cwsi"))
			d.Triggered, _ = rec.ValueByKey("triggered").(bool)
			d.Rationale, _ = rec.ValueByKey("rationale").(string)
			out = append(out, d)
		}
		if res.Err() != nil {
			w.Header().Set("X-Error", "influx-iter-error")
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})
}

// NewIrrigationLatestHandler serves the most recent applied-water events.
//
// GET /events/irrigation/latest?limit=20[&minutes=1440]
func NewIrrigationLatestHandler(influx influxdb2.Client, org, bucket string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := parseParams(r, 1440, 20, 2000)
		ctx, cancel := context.WithTimeout(r.Context(), time.Duration(p.TimeoutMS)*time.Millisecond)
		defer cancel()

		res, err := influx.QueryAPI(org).Query(ctx, irrigationFlux(bucket, p.Minutes, p.Limit))
		if err != nil {
			writeEmpty(w, "influx-query-error")
			return
		}
		defer res.Close()

		out := make([]Irrigation, 0, p.Limit)
		for res.Next() {
			rec := res.Record()
			zoneID, _ := rec.ValueByKey("zone_id").(string)
			out = append(out, Irrigation{
				ZoneID: zoneID,
				Amount: floatAt(rec.Value()),
				Time:   rec.Time().UTC().Format(time.RFC3339),
			})
		}
		if res.Err() != nil {
			w.Header().Set("X-Error", "influx-iter-error")
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})
}

func floatAt(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f
		}
	}
	return 0
}

func writeEmpty(w http.ResponseWriter, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error", reason)
	_, _ = w.Write([]byte("[]"))
}
