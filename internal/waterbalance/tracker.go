// Package waterbalance maintains the running soil-moisture-deficit bucket
// per zone. The model is deliberately lumped: ET and rainfall project the
// bucket between sensor readings, and a direct multi-depth measurement,
// when present, reconciles it back to ground truth.
package waterbalance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fieldtoalert/field-to-alert/internal/model"
	"github.com/fieldtoalert/field-to-alert/internal/model/entities"
)

// ETEstimator supplies an evapotranspiration rate for a zone over a time
// range. External collaborator; the tracker only consumes the rate.
type ETEstimator interface {
	EstimateET(ctx context.Context, zone entities.Zone, from, to time.Time) (mmPerDay float64, err error)
}

// Option tunes a Tracker.
type Option func(*Tracker)

// WithReconcileWeight sets how strongly a direct measurement overrides the
// projected bucket when both exist: 1 trusts the sensor entirely (default),
// 0 ignores it. The blend is a policy choice, not physics.
func WithReconcileWeight(w float64) Option {
	return func(t *Tracker) {
		if w < 0 {
			w = 0
		}
		if w > 1 {
			w = 1
		}
		t.reconcileWeight = w
	}
}

// Tracker owns every zone's WaterBalanceState. Callers receive copies;
// each update replaces a zone's state atomically after a fully successful
// computation.
type Tracker struct {
	et              ETEstimator
	reconcileWeight float64

	mu     sync.Mutex
	states map[string]*model.WaterBalanceState
}

func NewTracker(et ETEstimator, opts ...Option) *Tracker {
	t := &Tracker{
		et:              et,
		reconcileWeight: 1,
		states:          make(map[string]*model.WaterBalanceState),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Update applies one observation to the zone's bucket:
//
//	SMD' = clamp(SMD + ET·Δt − rain, 0, WHC)
//
// then reconciles against the measured profile deficit when any depth
// reading is present. The zone's first observation creates the state at
// field capacity (SMD = 0) before reconciliation.
func (t *Tracker) Update(ctx context.Context, zone entities.Zone, obs model.Observation) (model.WaterBalanceState, error) {
	whc, err := zone.Soil.EffectiveWHCmm(zone.Soil.AllDepths())
	if err != nil {
		return model.WaterBalanceState{}, err
	}

	t.mu.Lock()
	prev, exists := t.states[zone.ID]
	var cur model.WaterBalanceState
	if exists {
		cur = *prev
	}
	t.mu.Unlock()

	next := cur
	if !exists {
		next = model.WaterBalanceState{
			ZoneID:         zone.ID,
			SMDmm:          0,
			EffectiveWHCmm: whc,
			LastUpdate:     obs.Timestamp,
		}
	} else {
		dt := obs.Timestamp.Sub(cur.LastUpdate)
		if dt <= 0 {
			// Ingest already gates ordering; re-validate anyway.
			return model.WaterBalanceState{}, &entities.TemporalOrderError{ZoneID: zone.ID, Last: cur.LastUpdate, Got: obs.Timestamp}
		}
		rate, err := t.et.EstimateET(ctx, zone, cur.LastUpdate, obs.Timestamp)
		if err != nil {
			return model.WaterBalanceState{}, fmt.Errorf("estimate ET for zone %s: %w", zone.ID, err)
		}
		etMM := rate * dt.Hours() / 24
		rain := obs.Rain()

		next.EffectiveWHCmm = whc
		next.SMDmm = clamp(cur.SMDmm+etMM-rain, 0, whc)
		next.CumETmm += etMM
		next.CumRainMM += rain
		next.LastUpdate = obs.Timestamp
	}

	// Sensor readings are ground truth; the projection only fills the gaps
	// between them.
	if len(obs.Moisture) > 0 {
		measured, err := zone.Soil.MeasuredDeficitMM(obs.Moisture)
		if err != nil {
			return model.WaterBalanceState{}, err
		}
		w := t.reconcileWeight
		next.SMDmm = clamp(w*measured+(1-w)*next.SMDmm, 0, whc)
	}

	t.mu.Lock()
	t.states[zone.ID] = &next
	t.mu.Unlock()
	return next, nil
}

// RecordIrrigation resets the zone's deficit to zero (back to field
// capacity) and stamps the event, regardless of the prior value. The
// cumulative ET/rain counters restart.
func (t *Tracker) RecordIrrigation(zoneID string, ts time.Time) model.WaterBalanceState {
	ts = ts.UTC()
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.states[zoneID]
	if !ok {
		st = &model.WaterBalanceState{ZoneID: zoneID, LastUpdate: ts}
		t.states[zoneID] = st
	}
	st.SMDmm = 0
	st.CumETmm = 0
	st.CumRainMM = 0
	st.LastIrrigation = &ts
	if ts.After(st.LastUpdate) {
		st.LastUpdate = ts
	}
	return *st
}

// State returns a copy of the zone's current bucket, if one exists.
func (t *Tracker) State(zoneID string) (model.WaterBalanceState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.states[zoneID]
	if !ok {
		return model.WaterBalanceState{}, false
	}
	return *st, true
}

// Reset drops a zone's state, e.g. after a configuration reload.
func (t *Tracker) Reset(zoneID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.states, zoneID)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
