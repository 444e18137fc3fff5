package controller

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldtoalert/field-to-alert/internal/engine"
	"github.com/fieldtoalert/field-to-alert/internal/model"
	"github.com/fieldtoalert/field-to-alert/internal/model/entities"
	"github.com/fieldtoalert/field-to-alert/internal/model/messages"
	"github.com/fieldtoalert/field-to-alert/internal/observability"
	"github.com/fieldtoalert/field-to-alert/internal/weather"
)

type fakeMessage struct {
	payload []byte
}

func (fakeMessage) Duplicate() bool   { return false }
func (fakeMessage) Qos() byte         { return 1 }
func (fakeMessage) Retained() bool    { return false }
func (fakeMessage) Topic() string     { return "test" }
func (fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte { return m.payload }
func (fakeMessage) Ack()              {}

type fakePublisher struct {
	topics   []string
	qoss     []byte
	payloads []string
}

func (p *fakePublisher) Publish(payload string) error {
	return p.PublishToQoS("", 0, false, payload)
}

func (p *fakePublisher) PublishToQoS(topic string, qos byte, _ bool, payload string) error {
	p.topics = append(p.topics, topic)
	p.qoss = append(p.qoss, qos)
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *fakePublisher) Close() {}

func testZone(t *testing.T) entities.Zone {
	t.Helper()
	soil, err := entities.DefaultProfile(entities.TextureSiltLoam, 900)
	require.NoError(t, err)
	return entities.Zone{
		ID:      "zone-1",
		FieldID: "field-a",
		Crop:    "corn",
		Soil:    soil,
		Baseline: entities.CropBaseline{
			Crop:           "corn",
			LowerIntercept: 1.5,
			LowerSlope:     -2.0,
			UpperDeltaT:    5.0,
		},
		Thresholds: entities.Thresholds{SMDDepletionFrac: 0.5, CWSITrigger: 0.6},
	}
}

func testEngine(t *testing.T, m *observability.Metrics) *engine.Engine {
	t.Helper()
	zone := testZone(t)
	opts := []engine.Option{}
	if m != nil {
		opts = append(opts, engine.WithMetrics(m))
	}
	eng, err := engine.New(map[string]entities.Zone{zone.ID: zone}, weather.FixedRate{MMPerDay: 5}, opts...)
	require.NoError(t, err)
	return eng
}

func observationPayload(t *testing.T, ts time.Time) []byte {
	t.Helper()
	vpd := 2.0
	raw := model.RawObservation{
		ZoneID:      "zone-1",
		Timestamp:   ts,
		Moisture:    map[string]float64{"6": 0.25, "12": 0.28, "18": 0.30},
		CanopyTempC: 29,
		AirTempC:    30,
		VPDkPa:      &vpd,
	}
	payload, err := json.Marshal(raw)
	require.NoError(t, err)
	return payload
}

func TestHandleObservationIngestsAndEvaluates(t *testing.T) {
	eng := testEngine(t, nil)
	c, err := NewController(nil, nil, eng)
	require.NoError(t, err)

	ts := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	err = c.handleObservation("test", fakeMessage{payload: observationPayload(t, ts)})
	require.NoError(t, err)

	_, ok := eng.WaterBalance("zone-1")
	assert.True(t, ok, "water balance state should exist after ingest")
	assert.Len(t, eng.History("zone-1"), 1, "one decision per observation")
}

func TestHandleObservationDropsBadPayload(t *testing.T) {
	eng := testEngine(t, nil)
	c, err := NewController(nil, nil, eng)
	require.NoError(t, err)

	// Malformed and rejected payloads are dropped without error so the
	// consumer keeps running.
	assert.NoError(t, c.handleObservation("test", fakeMessage{payload: []byte("{not json")}))
	assert.NoError(t, c.handleObservation("test", fakeMessage{payload: []byte(`{"zone_id":"nope"}`)}))
	assert.Empty(t, eng.History("zone-1"))
}

func TestHandleResultDeduplicatesRedelivery(t *testing.T) {
	m := observability.NewMetricsWithRegistry(prometheus.NewRegistry())
	eng := testEngine(t, m)
	c, err := NewController(nil, nil, eng)
	require.NoError(t, err)

	ev := messages.IrrigationEvent{
		ZoneID:    "zone-1",
		AppliedMM: 20,
		Source:    "dispatch",
		Timestamp: time.Date(2026, 7, 1, 18, 0, 0, 0, time.UTC),
	}
	payload, err := json.Marshal(ev)
	require.NoError(t, err)

	require.NoError(t, c.handleResult("test", fakeMessage{payload: payload}))
	require.NoError(t, c.handleResult("test", fakeMessage{payload: payload})) // QoS1 redelivery

	assert.Equal(t, 1.0, testutil.ToFloat64(m.IrrigationEvents), "duplicate must be dropped")

	ev.Timestamp = ev.Timestamp.Add(time.Hour)
	payload, err = json.Marshal(ev)
	require.NoError(t, err)
	require.NoError(t, c.handleResult("test", fakeMessage{payload: payload}))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.IrrigationEvents))
}

func TestDispatcherPublishesDecisionEvent(t *testing.T) {
	zone := testZone(t)
	pub := &fakePublisher{}
	d := NewMQTTDispatcher(pub, "event/irrigationDecision/{field}/{zone}", map[string]entities.Zone{zone.ID: zone})

	rec := model.DecisionRecord{
		ID:        "dec-1",
		ZoneID:    "zone-1",
		Timestamp: time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC),
		SMDmm:     99,
		SMDFrac:   0.55,
		CWSI:      0.2,
		Triggered: true,
		Rationale: model.RationaleSMDExceeded,
		Thresholds: model.ThresholdSnapshot{
			SMDTriggerMM:     90,
			SMDDepletionFrac: 0.5,
			CWSITrigger:      0.6,
		},
	}
	require.NoError(t, d.Dispatch(context.Background(), rec))

	require.Len(t, pub.topics, 1)
	assert.Equal(t, "event/irrigationDecision/field-a/zone-1", pub.topics[0])
	assert.Equal(t, byte(1), pub.qoss[0])

	var ev messages.DecisionEvent
	require.NoError(t, json.Unmarshal([]byte(pub.payloads[0]), &ev))
	assert.Equal(t, "dec-1", ev.DecisionID)
	assert.Equal(t, "SMD_EXCEEDED", ev.Rationale)
	assert.Equal(t, 90.0, ev.SMDTriggerMM)
	assert.True(t, ev.Triggered)
}

func TestDispatcherRejectsUnknownZone(t *testing.T) {
	d := NewMQTTDispatcher(&fakePublisher{}, "event/irrigationDecision/{field}/{zone}", map[string]entities.Zone{})
	err := d.Dispatch(context.Background(), model.DecisionRecord{ZoneID: "ghost"})
	assert.Error(t, err)
}
