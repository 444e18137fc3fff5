package app

import (
	"time"

	"github.com/fieldtoalert/field-to-alert/internal/model"
)

// ZoneLatest is the dashboard view of a zone's newest observation.
type ZoneLatest struct {
	ZoneID      string  `json:"zone_id"`
	MeanVWC     float64 `json:"mean_vwc"`
	CanopyTempC float64 `json:"canopy_temp_c"`
	AirTempC    float64 `json:"air_temp_c"`
	Time        string  `json:"time"` // RFC3339
}

// Decision mirrors the event service's read payload.
type Decision struct {
	ZoneID    string  `json:"zone_id"`
	SMDmm     float64 `json:"smd_mm"`
	SMDFrac   float64 `json:"smd_frac"`
	CWSI      float64 `json:"cwsi"`
	Triggered bool    `json:"triggered"`
	Rationale string  `json:"rationale"`
	Time      string  `json:"time"`
}

// Irrigation mirrors the event service's applied-water payload.
type Irrigation struct {
	ZoneID string  `json:"zone_id"`
	Amount float64 `json:"amount"` // mm
	Time   string  `json:"time"`
}

// Stats summarizes moisture across zones for the dashboard header.
type Stats struct {
	MeanVWC float64 `json:"mean_vwc"`
	MinVWC  float64 `json:"min_vwc"`
	MaxVWC  float64 `json:"max_vwc"`
}

// DashboardData is the single aggregate the dashboard polls.
type DashboardData struct {
	Zones       []ZoneLatest `json:"zones"`
	Decisions   []Decision   `json:"decisions"`
	Irrigations []Irrigation `json:"irrigations"`
	Stats       Stats        `json:"stats"`
}

// zoneLatestFrom collapses a raw observation into the dashboard row.
func zoneLatestFrom(obs model.RawObservation) ZoneLatest {
	mean := 0.0
	if n := len(obs.Moisture); n > 0 {
		for _, v := range obs.Moisture {
			mean += v
		}
		mean /= float64(n)
	}
	return ZoneLatest{
		ZoneID:      obs.ZoneID,
		MeanVWC:     mean,
		CanopyTempC: obs.CanopyTempC,
		AirTempC:    obs.AirTempC,
		Time:        obs.Timestamp.UTC().Format(time.RFC3339),
	}
}
