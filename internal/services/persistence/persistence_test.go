package persistence

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldtoalert/field-to-alert/internal/model"
)

type fakeMessage struct {
	payload []byte
}

func (fakeMessage) Duplicate() bool   { return false }
func (fakeMessage) Qos() byte         { return 0 }
func (fakeMessage) Retained() bool    { return false }
func (fakeMessage) Topic() string     { return "test" }
func (fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte { return m.payload }
func (fakeMessage) Ack()              {}

type fakeWriteAPI struct {
	points []*write.Point
}

func (f *fakeWriteAPI) WriteRecord(context.Context, ...string) error { return nil }
func (f *fakeWriteAPI) WritePoint(_ context.Context, points ...*write.Point) error {
	f.points = append(f.points, points...)
	return nil
}
func (f *fakeWriteAPI) EnableBatching()             {}
func (f *fakeWriteAPI) Flush(context.Context) error { return nil }

func testService(writeAPI *fakeWriteAPI) *Service {
	return &Service{
		writeAPI:    writeAPI,
		measurement: "soil_observation",
		cache:       make(map[string]model.RawObservation),
	}
}

func observationPayload(t *testing.T, zoneID string, ts time.Time) []byte {
	t.Helper()
	rain := 3.5
	obs := model.RawObservation{
		ZoneID:      zoneID,
		Timestamp:   ts,
		Moisture:    map[string]float64{"6": 0.25, "12": 0.28},
		CanopyTempC: 29,
		AirTempC:    30,
		RainMM:      &rain,
	}
	payload, err := json.Marshal(obs)
	require.NoError(t, err)
	return payload
}

func TestHandleObservationWritesPointAndCaches(t *testing.T) {
	writeAPI := &fakeWriteAPI{}
	svc := testService(writeAPI)

	ts := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	err := svc.handleObservation("sensor/observation/field-a/zone-1", fakeMessage{payload: observationPayload(t, "zone-1", ts)})
	require.NoError(t, err)

	require.Len(t, writeAPI.points, 1)
	line := write.PointToLineProtocol(writeAPI.points[0], time.Nanosecond)
	assert.Contains(t, line, "soil_observation")
	assert.Contains(t, line, "zone_id=zone-1")
	assert.Contains(t, line, "vwc_6in=0.25")
	assert.Contains(t, line, "rain_mm=3.5")

	cached := svc.LatestCache()
	require.Len(t, cached, 1)
	assert.Equal(t, "zone-1", cached[0].ZoneID)
}

func TestCacheKeepsNewestPerZone(t *testing.T) {
	svc := testService(&fakeWriteAPI{})

	newer := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	older := newer.Add(-time.Hour)

	require.NoError(t, svc.handleObservation("t", fakeMessage{payload: observationPayload(t, "zone-1", newer)}))
	require.NoError(t, svc.handleObservation("t", fakeMessage{payload: observationPayload(t, "zone-1", older)}))

	cached := svc.LatestCache()
	require.Len(t, cached, 1)
	assert.Equal(t, newer, cached[0].Timestamp.UTC())
}

func TestHandleObservationDropsBadPayload(t *testing.T) {
	writeAPI := &fakeWriteAPI{}
	svc := testService(writeAPI)

	assert.NoError(t, svc.handleObservation("t", fakeMessage{payload: []byte("{broken")}))
	assert.NoError(t, svc.handleObservation("t", fakeMessage{payload: []byte(`{"timestamp":"2026-07-01T12:00:00Z"}`)}))
	assert.Empty(t, writeAPI.points)
	assert.Empty(t, svc.LatestCache())
}

func TestLatestEndpointServesCache(t *testing.T) {
	svc := testService(&fakeWriteAPI{})
	ts := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, svc.handleObservation("t", fakeMessage{payload: observationPayload(t, "zone-b", ts)}))
	require.NoError(t, svc.handleObservation("t", fakeMessage{payload: observationPayload(t, "zone-a", ts)}))

	mux := NewHTTPMux(svc)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest("GET", "/data/latest?source=cache", nil))

	assert.Equal(t, 200, rr.Code)
	assert.Equal(t, "cache", rr.Header().Get("X-Data-Source"))

	var out []model.RawObservation
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 2)
	assert.Equal(t, "zone-a", out[0].ZoneID, "sorted by zone id")
	assert.Equal(t, "zone-b", out[1].ZoneID)
}

func TestSanitizeMeasurement(t *testing.T) {
	assert.Equal(t, "soil_observation", sanitizeMeasurement("soil_observation"))
	assert.Equal(t, "soil_obs__24h_", sanitizeMeasurement("soil obs (24h)"))
	assert.False(t, strings.ContainsAny(sanitizeMeasurement(`a b"c`), ` "`))
}
