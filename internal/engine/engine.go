// Package engine composes ingest, water balance, CWSI, and decision policy
// into the per-zone pipeline. Each zone's state is owned by exactly one
// unit and updates to it are serialized; distinct zones evaluate in
// parallel with no shared mutable state.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/fieldtoalert/field-to-alert/internal/cwsi"
	"github.com/fieldtoalert/field-to-alert/internal/decision"
	"github.com/fieldtoalert/field-to-alert/internal/ingest"
	"github.com/fieldtoalert/field-to-alert/internal/model"
	"github.com/fieldtoalert/field-to-alert/internal/model/entities"
	"github.com/fieldtoalert/field-to-alert/internal/observability"
	"github.com/fieldtoalert/field-to-alert/internal/waterbalance"
)

// AlertDispatcher receives triggered decision records. Delivery transport
// lives outside the core.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, rec model.DecisionRecord) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithDispatcher sets the boundary that receives triggered decisions.
func WithDispatcher(d AlertDispatcher) Option { return func(e *Engine) { e.dispatcher = d } }

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *observability.Metrics) Option { return func(e *Engine) { e.metrics = m } }

// WithClock injects a time source for evaluation timestamps.
func WithClock(c clockwork.Clock) Option { return func(e *Engine) { e.clock = c } }

// WithLimits overrides the ingest physical limits.
func WithLimits(l ingest.Limits) Option { return func(e *Engine) { e.limits = l } }

// Engine is the in-process decision core.
type Engine struct {
	zones      map[string]entities.Zone
	norm       *ingest.Normalizer
	tracker    *waterbalance.Tracker
	dispatcher AlertDispatcher
	metrics    *observability.Metrics
	clock      clockwork.Clock
	limits     ingest.Limits

	units *unitMap
}

// New validates every zone fail-closed and builds the engine.
func New(zones map[string]entities.Zone, et waterbalance.ETEstimator, opts ...Option) (*Engine, error) {
	if et == nil {
		return nil, errors.New("engine: ET estimator is nil")
	}
	for _, z := range zones {
		if err := z.Validate(); err != nil {
			return nil, err
		}
	}
	if len(zones) == 0 {
		return nil, &entities.ConfigError{Reason: "no zones configured"}
	}

	e := &Engine{
		zones:  zones,
		clock:  clockwork.NewRealClock(),
		limits: ingest.DefaultLimits(),
		units:  newUnitMap(),
	}
	for _, o := range opts {
		o(e)
	}
	e.norm = ingest.NewNormalizer(e.limits)
	e.tracker = waterbalance.NewTracker(et)
	return e, nil
}

// Ingest validates a raw record and applies it to the zone's water balance.
// The zone's timestamp gate advances only after the whole update succeeded,
// so a rejected record can be corrected and resubmitted.
func (e *Engine) Ingest(ctx context.Context, raw model.RawObservation) (model.Observation, error) {
	zone, ok := e.zones[raw.ZoneID]
	if !ok {
		err := &entities.ValidationError{Field: "zone_id", Reason: fmt.Sprintf("unknown zone %q", raw.ZoneID)}
		e.countRejection(err)
		return model.Observation{}, err
	}

	u := e.units.get(zone.ID)
	u.mu.Lock()
	defer u.mu.Unlock()

	obs, err := e.norm.Normalize(raw)
	if err != nil {
		e.countRejection(err)
		return model.Observation{}, err
	}

	st, err := e.tracker.Update(ctx, zone, obs)
	if err != nil {
		e.countRejection(err)
		return model.Observation{}, err
	}
	e.norm.Commit(zone.ID, obs.Timestamp)
	u.lastObs = &obs

	if e.metrics != nil {
		e.metrics.ObservationsAccepted.Inc()
		e.metrics.SMDFraction.WithLabelValues(zone.ID).Set(st.DepletionFrac())
	}
	return obs, nil
}

// RecordIrrigationEvent informs the tracker that irrigation occurred,
// resetting the zone's deficit to field capacity.
func (e *Engine) RecordIrrigationEvent(zoneID string, ts time.Time) error {
	if _, ok := e.zones[zoneID]; !ok {
		return &entities.ValidationError{Field: "zone_id", Reason: fmt.Sprintf("unknown zone %q", zoneID)}
	}
	u := e.units.get(zoneID)
	u.mu.Lock()
	defer u.mu.Unlock()

	st := e.tracker.RecordIrrigation(zoneID, ts)
	log.Printf("engine: irrigation recorded for zone %s at %s (SMD reset)", zoneID, ts.UTC().Format(time.RFC3339))
	if e.metrics != nil {
		e.metrics.IrrigationEvents.Inc()
		e.metrics.SMDFraction.WithLabelValues(zoneID).Set(st.DepletionFrac())
	}
	return nil
}

// Evaluate runs the decision policy for the zone's latest accepted
// observation and appends the record to the zone's history.
func (e *Engine) Evaluate(ctx context.Context, zoneID string) (model.DecisionRecord, error) {
	zone, ok := e.zones[zoneID]
	if !ok {
		return model.DecisionRecord{}, &entities.ValidationError{Field: "zone_id", Reason: fmt.Sprintf("unknown zone %q", zoneID)}
	}

	u := e.units.get(zoneID)
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.lastObs == nil {
		return model.DecisionRecord{}, &entities.ComputationError{Op: "evaluate", Reason: fmt.Sprintf("zone %s has no accepted observation yet", zoneID)}
	}
	wb, ok := e.tracker.State(zoneID)
	if !ok {
		return model.DecisionRecord{}, &entities.ComputationError{Op: "evaluate", Reason: fmt.Sprintf("zone %s has no water balance state", zoneID)}
	}

	now := e.clock.Now().UTC()
	cw, err := cwsi.ComputeFromObservation(zone, *u.lastObs, now)
	if err != nil {
		// Prior state stays valid; only this evaluation is rejected.
		return model.DecisionRecord{}, err
	}
	u.lastCWSI = &cw

	rec := decision.Evaluate(zone, wb, cw, now)
	u.history = append(u.history, rec)

	if e.metrics != nil {
		e.metrics.Decisions.WithLabelValues(string(rec.Rationale)).Inc()
		e.metrics.CWSI.WithLabelValues(zoneID).Set(cw.Value)
	}
	if rec.Triggered {
		log.Printf("engine: zone %s triggered (%s) SMD=%.1fmm (%.0f%%) CWSI=%.2f",
			zoneID, rec.Rationale, rec.SMDmm, rec.SMDFrac*100, rec.CWSI)
		if e.dispatcher != nil {
			if err := e.dispatcher.Dispatch(ctx, rec); err != nil {
				log.Printf("engine: dispatch for zone %s: %v", zoneID, err)
			}
		}
	}
	return rec, nil
}

// History returns a copy of the zone's append-only decision sequence.
func (e *Engine) History(zoneID string) []model.DecisionRecord {
	u := e.units.get(zoneID)
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]model.DecisionRecord, len(u.history))
	copy(out, u.history)
	return out
}

// WaterBalance exposes a copy of the zone's current bucket for dashboards.
func (e *Engine) WaterBalance(zoneID string) (model.WaterBalanceState, bool) {
	return e.tracker.State(zoneID)
}

// LastCWSI exposes the zone's most recent stress computation.
func (e *Engine) LastCWSI(zoneID string) (model.CWSIState, bool) {
	u := e.units.get(zoneID)
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.lastCWSI == nil {
		return model.CWSIState{}, false
	}
	return *u.lastCWSI, true
}

// Zones lists the configured zones.
func (e *Engine) Zones() []entities.Zone {
	out := make([]entities.Zone, 0, len(e.zones))
	for _, z := range e.zones {
		out = append(out, z)
	}
	return out
}

func (e *Engine) countRejection(err error) {
	if e.metrics == nil {
		return
	}
	reason := "other"
	var (
		ve *entities.ValidationError
		te *entities.TemporalOrderError
		ce *entities.ConfigError
		me *entities.ComputationError
	)
	switch {
	case errors.As(err, &ve):
		reason = "validation"
	case errors.As(err, &te):
		reason = "temporal_order"
	case errors.As(err, &ce):
		reason = "config"
	case errors.As(err, &me):
		reason = "computation"
	}
	e.metrics.ObservationsRejected.WithLabelValues(reason).Inc()
}
