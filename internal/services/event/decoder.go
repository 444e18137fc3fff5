package event

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	msg "github.com/fieldtoalert/field-to-alert/internal/model/messages"
)

const (
	decisionPrefix = "event/irrigationDecision/"
	resultPrefix   = "event/irrigationResult/"
)

type CommonEvent struct {
	EventType     string // irrigation.decision | irrigation.result
	SourceService string
	FieldID       string
	ZoneID        string
	Severity      string // info | warning
	Fields        map[string]interface{}
	Timestamp     time.Time
}

// MQTTHandler turns bus messages into CommonEvents and hands them to sink.
type MQTTHandler struct{ sink func(CommonEvent) }

func NewMQTTHandler(sink func(CommonEvent)) *MQTTHandler { return &MQTTHandler{sink: sink} }

func (h *MQTTHandler) Handle(_ string, m mqtt.Message) error {
	topic := m.Topic()
	payload := m.Payload()

	var (
		evt CommonEvent
		err error
	)
	switch {
	case strings.HasPrefix(topic, decisionPrefix):
		evt, err = decodeDecision(topic, payload)
	case strings.HasPrefix(topic, resultPrefix):
		evt, err = decodeResult(topic, payload)
	default:
		return nil // other topics are not ours
	}
	if err != nil {
		return err
	}
	if h.sink != nil {
		h.sink(evt)
	}
	return nil
}

func decodeDecision(topic string, payload []byte) (CommonEvent, error) {
	var d msg.DecisionEvent
	if err := json.Unmarshal(payload, &d); err != nil {
		return CommonEvent{}, err
	}
	fieldID, zoneID := pickIDs(topic, d.ZoneID, decisionPrefix)
	if zoneID == "" {
		return CommonEvent{}, errors.New("decision: missing zone id")
	}
	sev := "info"
	if d.Triggered {
		sev = "warning"
	}
	return CommonEvent{
		EventType:     "irrigation.decision",
		SourceService: "controller",
		FieldID:       fieldID,
		ZoneID:        zoneID,
		Severity:      sev,
		Fields: map[string]interface{}{
			"decision_id":    d.DecisionID,
			"smd_mm":         d.SMDmm,
			"smd_frac":       d.SMDFrac,
			"cwsi":           d.CWSI,
			"triggered":      d.Triggered,
			"rationale":      d.Rationale,
			"smd_trigger_mm": d.SMDTriggerMM,
			"cwsi_trigger":   d.CWSITrigger,
		},
		Timestamp: d.Timestamp,
	}, nil
}

func decodeResult(topic string, payload []byte) (CommonEvent, error) {
	var r msg.IrrigationEvent
	if err := json.Unmarshal(payload, &r); err != nil {
		return CommonEvent{}, err
	}
	fieldID, zoneID := pickIDs(topic, r.ZoneID, resultPrefix)
	if zoneID == "" {
		return CommonEvent{}, errors.New("result: missing zone id")
	}
	return CommonEvent{
		EventType:     "irrigation.result",
		SourceService: "actuation",
		FieldID:       fieldID,
		ZoneID:        zoneID,
		Severity:      "info",
		Fields: map[string]interface{}{
			"applied_mm": r.AppliedMM,
			"source":     r.Source,
		},
		Timestamp: r.Timestamp,
	}, nil
}

// pickIDs takes the zone from the payload when present, falling back to the
// topic "prefix/{field}/{zone}". The field only ever comes from the topic.
func pickIDs(topic, zoneID, prefix string) (string, string) {
	suffix := strings.TrimPrefix(topic, prefix)
	parts := strings.Split(suffix, "/")
	fieldID := ""
	if len(parts) >= 2 {
		fieldID = parts[0]
		if strings.TrimSpace(zoneID) == "" {
			zoneID = parts[1]
		}
	}
	return fieldID, zoneID
}
