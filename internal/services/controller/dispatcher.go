package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/fieldtoalert/field-to-alert/internal/model"
	"github.com/fieldtoalert/field-to-alert/internal/model/entities"
	"github.com/fieldtoalert/field-to-alert/internal/model/messages"
	"github.com/fieldtoalert/field-to-alert/pkg/mqttbus"
)

// MQTTDispatcher publishes triggered decisions as QoS 1 events on the
// decision topic for the zone's field.
type MQTTDispatcher struct {
	pub   mqttbus.IPublisher
	tmpl  string // e.g. event/irrigationDecision/{field}/{zone}
	zones map[string]entities.Zone
}

func NewMQTTDispatcher(pub mqttbus.IPublisher, tmpl string, zones map[string]entities.Zone) *MQTTDispatcher {
	return &MQTTDispatcher{pub: pub, tmpl: tmpl, zones: zones}
}

func (d *MQTTDispatcher) Dispatch(_ context.Context, rec model.DecisionRecord) error {
	zone, ok := d.zones[rec.ZoneID]
	if !ok {
		return fmt.Errorf("dispatch: unknown zone %q", rec.ZoneID)
	}

	ev := messages.DecisionEvent{
		DecisionID:   rec.ID,
		ZoneID:       rec.ZoneID,
		SMDmm:        rec.SMDmm,
		SMDFrac:      rec.SMDFrac,
		CWSI:         rec.CWSI,
		Triggered:    rec.Triggered,
		Rationale:    string(rec.Rationale),
		SMDTriggerMM: rec.Thresholds.SMDTriggerMM,
		CWSITrigger:  rec.Thresholds.CWSITrigger,
		Timestamp:    rec.Timestamp,
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("dispatch: marshal decision %s: %w", rec.ID, err)
	}

	topic := d.topicFor(zone)
	if err := d.pub.PublishToQoS(topic, 1, false, string(payload)); err != nil {
		return err
	}
	log.Printf("dispatch: decision %s for zone %s published to %s (%s)", rec.ID, rec.ZoneID, topic, rec.Rationale)
	return nil
}

func (d *MQTTDispatcher) topicFor(zone entities.Zone) string {
	t := strings.ReplaceAll(d.tmpl, "{field}", zone.FieldID)
	return strings.ReplaceAll(t, "{zone}", zone.ID)
}
