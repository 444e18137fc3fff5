package weather

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldtoalert/field-to-alert/internal/model/entities"
)

func TestHargreavesET0(t *testing.T) {
	// Mild summer day: tmin 18, tmax 32 -> tmean 25, range 14.
	et0 := HargreavesET0(18, 32, 0.408)
	assert.InDelta(t, 0.0023*(25+17.8)*3.7416573867739413*0.408, et0, 1e-9)
	assert.Greater(t, et0, 0.0)

	// No temperature range yields no evaporative signal.
	assert.Equal(t, 0.0, HargreavesET0(20, 20, 0.408))

	// Inverted min/max must not produce NaN.
	assert.Equal(t, 0.0, HargreavesET0(25, 20, 0.408))
}

func TestClosestDay(t *testing.T) {
	day := func(offset int) int64 {
		return time.Date(2026, 7, 14, 12, 0, 0, 0, time.UTC).AddDate(0, 0, offset).Unix()
	}
	daily := []owmDaily{{Dt: day(0)}, {Dt: day(1)}, {Dt: day(2)}}
	daily[1].Temp.Max = 99

	chosen := closestDay(daily, time.Date(2026, 7, 15, 3, 0, 0, 0, time.UTC))
	assert.Equal(t, 99.0, chosen.Temp.Max)
}

func TestOWMEstimatorParsesForecast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var resp owmResp
		var d owmDaily
		d.Dt = time.Now().UTC().Unix()
		d.Temp.Min = 18
		d.Temp.Max = 32
		resp.Daily = []owmDaily{d}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := NewOWMEstimator("test-key")
	e.client = srv.Client()
	e.baseURL = srv.URL

	zone := entities.Zone{ID: "zone-a", Latitude: 34.15, Longitude: -102.05}
	rate, err := e.EstimateET(context.Background(), zone, time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	assert.InDelta(t, HargreavesET0(18, 32, 0.408), rate, 1e-9)
}

func TestOWMEstimatorRequiresKey(t *testing.T) {
	e := NewOWMEstimator("")
	_, err := e.EstimateET(context.Background(), entities.Zone{}, time.Now(), time.Now())
	require.Error(t, err)
}
