// Package controller is the MQTT edge of the decision core: it consumes raw
// observations and irrigation results, drives the engine, and republishes
// triggered decisions.
package controller

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/fieldtoalert/field-to-alert/internal/engine"
	"github.com/fieldtoalert/field-to-alert/internal/model"
	"github.com/fieldtoalert/field-to-alert/internal/model/entities"
	"github.com/fieldtoalert/field-to-alert/pkg/dedup"
	"github.com/fieldtoalert/field-to-alert/pkg/mqttbus"
)

type Controller struct {
	observations mqttbus.IConsumer[model.RawObservation]
	results      mqttbus.IConsumer[model.IrrigationEvent]
	eng          *engine.Engine

	// deduper drops QoS1 redeliveries of irrigation results by payload hash.
	deduper *dedup.Deduper
}

func NewController(
	observations mqttbus.IConsumer[model.RawObservation],
	results mqttbus.IConsumer[model.IrrigationEvent],
	eng *engine.Engine,
) (*Controller, error) {
	if eng == nil {
		return nil, errors.New("controller: engine is nil")
	}
	c := &Controller{
		observations: observations,
		results:      results,
		eng:          eng,
		deduper:      dedup.New(10*time.Minute, 20000),
	}
	if observations != nil {
		observations.SetHandler(c.handleObservation)
	}
	if results != nil {
		results.SetHandler(c.handleResult)
	}
	return c, nil
}

// Start runs both consumers until the context is cancelled.
func (c *Controller) Start(ctx context.Context) {
	if c.observations != nil {
		go c.observations.Consume(ctx)
	}
	if c.results != nil {
		go c.results.Consume(ctx)
	}
	<-ctx.Done()
}

// handleObservation feeds one raw record through ingest and evaluation.
// Rejections are logged and dropped; the zone's prior state stays valid and
// a corrected record can still be submitted.
func (c *Controller) handleObservation(_ string, msg mqtt.Message) error {
	var raw model.RawObservation
	if err := json.Unmarshal(msg.Payload(), &raw); err != nil {
		log.Printf("controller: bad observation payload: %v", err)
		return nil
	}

	ctx := context.Background()
	if _, err := c.eng.Ingest(ctx, raw); err != nil {
		var te *entities.TemporalOrderError
		if errors.As(err, &te) {
			log.Printf("controller: stale observation for zone %s dropped: %v", raw.ZoneID, err)
		} else {
			log.Printf("controller: observation for zone %s rejected: %v", raw.ZoneID, err)
		}
		return nil
	}

	if _, err := c.eng.Evaluate(ctx, raw.ZoneID); err != nil {
		log.Printf("controller: evaluate zone %s: %v", raw.ZoneID, err)
	}
	return nil
}

// handleResult applies an irrigation feedback event, resetting the zone's
// deficit. Results arrive at QoS 1, so identical redeliveries are dropped.
func (c *Controller) handleResult(_ string, msg mqtt.Message) error {
	h := sha256.Sum256(msg.Payload())
	if !c.deduper.ShouldProcess(hex.EncodeToString(h[:])) {
		return nil
	}

	var ev model.IrrigationEvent
	if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
		log.Printf("controller: bad irrigation result payload: %v", err)
		return nil
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if err := c.eng.RecordIrrigationEvent(ev.ZoneID, ev.Timestamp); err != nil {
		log.Printf("controller: irrigation result for zone %s: %v", ev.ZoneID, err)
		return nil
	}
	log.Printf("controller: irrigation result applied for zone %s (%.1fmm, %s)", ev.ZoneID, ev.AppliedMM, ev.Source)
	return nil
}
