// Package ingest validates and normalizes raw sensor records into the
// engine's internal schema. It rejects out-of-range physical values instead
// of clamping them; only sub-epsilon rounding noise on volumetric readings
// is smoothed away.
package ingest

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/fieldtoalert/field-to-alert/internal/model"
	"github.com/fieldtoalert/field-to-alert/internal/model/entities"
)

// Limits bounds the physically plausible observation ranges.
type Limits struct {
	TempMinC   float64
	TempMaxC   float64
	VWCEpsilon float64 // rounding-noise tolerance around [0,1]
}

// DefaultLimits matches typical field conditions.
func DefaultLimits() Limits {
	return Limits{TempMinC: -10, TempMaxC: 60, VWCEpsilon: 0.005}
}

// Normalizer turns RawObservation payloads into validated Observations and
// enforces strictly increasing timestamps per zone.
//
// Validation and acceptance are split: Normalize never advances the zone's
// last-seen timestamp, so a caller can apply downstream state first and
// Commit only once the whole update succeeded. A rejected or resubmitted
// record therefore never poisons the zone's timestamp gate.
type Normalizer struct {
	limits   Limits
	validate *validator.Validate

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

func NewNormalizer(limits Limits) *Normalizer {
	return &Normalizer{
		limits:   limits,
		validate: validator.New(),
		lastSeen: make(map[string]time.Time),
	}
}

// Normalize validates a raw record against the physical limits and the
// zone's last accepted timestamp. Zone state is never mutated here.
func (n *Normalizer) Normalize(raw model.RawObservation) (model.Observation, error) {
	if err := n.validate.Struct(raw); err != nil {
		return model.Observation{}, &entities.ValidationError{Reason: err.Error()}
	}

	ts := raw.Timestamp.UTC()
	n.mu.Lock()
	last, seen := n.lastSeen[raw.ZoneID]
	n.mu.Unlock()
	if seen && !ts.After(last) {
		return model.Observation{}, &entities.TemporalOrderError{ZoneID: raw.ZoneID, Last: last, Got: ts}
	}

	moisture, err := n.normalizeMoisture(raw.Moisture)
	if err != nil {
		return model.Observation{}, err
	}
	if err := n.checkTemp("canopy_temp_c", raw.CanopyTempC); err != nil {
		return model.Observation{}, err
	}
	if err := n.checkTemp("air_temp_c", raw.AirTempC); err != nil {
		return model.Observation{}, err
	}

	return model.Observation{
		ZoneID:         raw.ZoneID,
		Timestamp:      ts,
		Moisture:       moisture,
		CanopyTempC:    raw.CanopyTempC,
		AirTempC:       raw.AirTempC,
		RelHumidityPct: raw.RelHumidityPct,
		VPDkPa:         raw.VPDkPa,
		RainMM:         raw.RainMM,
	}, nil
}

// Commit records the timestamp of a fully applied observation. Call only
// after every downstream update for it succeeded.
func (n *Normalizer) Commit(zoneID string, ts time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if last, ok := n.lastSeen[zoneID]; !ok || ts.After(last) {
		n.lastSeen[zoneID] = ts.UTC()
	}
}

// LastAccepted returns the zone's last committed timestamp.
func (n *Normalizer) LastAccepted(zoneID string) (time.Time, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	t, ok := n.lastSeen[zoneID]
	return t, ok
}

// Reset forgets a zone's timestamp gate. Used when a zone's configuration
// is reloaded and its state re-initialized.
func (n *Normalizer) Reset(zoneID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.lastSeen, zoneID)
}

func (n *Normalizer) normalizeMoisture(raw map[string]float64) (map[entities.Depth]float64, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[entities.Depth]float64, len(raw))
	for key, vwc := range raw {
		inches, err := strconv.Atoi(key)
		if err != nil || inches <= 0 {
			return nil, &entities.ValidationError{Field: "moisture", Reason: fmt.Sprintf("bad depth key %q", key)}
		}
		switch {
		case vwc < -n.limits.VWCEpsilon || vwc > 1+n.limits.VWCEpsilon:
			return nil, &entities.ValidationError{
				Field:  "moisture",
				Reason: fmt.Sprintf("depth %d\": volumetric content %.4f outside [0,1]", inches, vwc),
			}
		case vwc < 0:
			vwc = 0 // cosmetic rounding noise
		case vwc > 1:
			vwc = 1
		}
		out[entities.Depth(inches)] = vwc
	}
	return out, nil
}

func (n *Normalizer) checkTemp(field string, v float64) error {
	if v < n.limits.TempMinC || v > n.limits.TempMaxC {
		return &entities.ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("%.1f°C outside plausible range [%.1f, %.1f]", v, n.limits.TempMinC, n.limits.TempMaxC),
		}
	}
	return nil
}
