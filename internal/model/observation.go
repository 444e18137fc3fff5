package model

import (
	"time"

	"github.com/fieldtoalert/field-to-alert/internal/model/entities"
)

// Observation is a validated, normalized sensor record. Produced only by
// the ingest normalizer; everything downstream trusts its ranges.
type Observation struct {
	ZoneID    string
	Timestamp time.Time // UTC, strictly increasing per zone

	// Moisture holds volumetric water content per probe depth, already
	// confirmed to lie in [0,1]. May be empty when all probes were offline.
	Moisture map[entities.Depth]float64

	CanopyTempC float64
	AirTempC    float64

	RelHumidityPct *float64
	VPDkPa         *float64
	RainMM         *float64
}

// Rain returns the rainfall since the previous observation, zero when the
// field was absent.
func (o Observation) Rain() float64 {
	if o.RainMM == nil {
		return 0
	}
	return *o.RainMM
}

// Depths lists the depths present in this observation.
func (o Observation) Depths() []entities.Depth {
	out := make([]entities.Depth, 0, len(o.Moisture))
	for d := range o.Moisture {
		out = append(out, d)
	}
	return out
}
