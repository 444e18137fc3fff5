package messages

import "time"

// RawObservation is the wire schema published by sensor gateways (and the
// simulator). Fields are validated structurally here and physically by the
// ingest normalizer; unknown depths and out-of-range values are rejected,
// never clamped.
type RawObservation struct {
	ZoneID    string    `json:"zone_id" validate:"required"`
	Timestamp time.Time `json:"timestamp" validate:"required"`

	// Moisture maps depth in inches (as a string key, e.g. "6") to
	// volumetric water content in [0,1]. Partial depth sets are allowed;
	// the map may be empty when all probes are offline.
	Moisture map[string]float64 `json:"moisture,omitempty"`

	CanopyTempC float64 `json:"canopy_temp_c"`
	AirTempC    float64 `json:"air_temp_c"`

	// Optional ambient fields, resolved upstream by the weather collaborator.
	RelHumidityPct *float64 `json:"rel_humidity_pct,omitempty" validate:"omitempty,gte=0,lte=100"`
	VPDkPa         *float64 `json:"vpd_kpa,omitempty" validate:"omitempty,gte=0"`

	// RainMM is rainfall since the previous observation.
	RainMM *float64 `json:"rain_mm,omitempty" validate:"omitempty,gte=0"`
}
