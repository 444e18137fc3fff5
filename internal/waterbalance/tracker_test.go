package waterbalance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldtoalert/field-to-alert/internal/model"
	"github.com/fieldtoalert/field-to-alert/internal/model/entities"
)

var t0 = time.Date(2026, 7, 14, 6, 0, 0, 0, time.UTC)

type stubET struct {
	rate float64
	err  error
}

func (s stubET) EstimateET(context.Context, entities.Zone, time.Time, time.Time) (float64, error) {
	return s.rate, s.err
}

func testZone(t *testing.T) entities.Zone {
	t.Helper()
	soil, err := entities.DefaultProfile(entities.TextureSiltLoam, 900)
	require.NoError(t, err)
	return entities.Zone{
		ID:      "zone-a",
		FieldID: "field-1",
		Crop:    "corn",
		Soil:    soil, // effective WHC: 180mm
		Baseline: entities.CropBaseline{
			Crop: "corn", LowerIntercept: 1.5, LowerSlope: -2.0, UpperDeltaT: 5.0,
		},
		Thresholds: entities.Thresholds{SMDDepletionFrac: 0.5, CWSITrigger: 0.6},
	}
}

func obsAt(ts time.Time, moisture map[entities.Depth]float64, rain float64) model.Observation {
	o := model.Observation{
		ZoneID:      "zone-a",
		Timestamp:   ts,
		Moisture:    moisture,
		CanopyTempC: 30,
		AirTempC:    28,
	}
	if rain > 0 {
		o.RainMM = &rain
	}
	return o
}

func TestFirstObservationStartsAtFieldCapacity(t *testing.T) {
	tr := NewTracker(stubET{rate: 6})

	st, err := tr.Update(context.Background(), testZone(t), obsAt(t0, nil, 0))
	require.NoError(t, err)
	assert.Equal(t, 0.0, st.SMDmm)
	assert.InDelta(t, 180.0, st.EffectiveWHCmm, 1e-9)
	assert.Equal(t, t0, st.LastUpdate)
	assert.Nil(t, st.LastIrrigation)
}

func TestFirstObservationReconcilesToMeasurement(t *testing.T) {
	tr := NewTracker(stubET{rate: 6})

	// Halfway between FC (0.33) and WP (0.13) -> deficit 0.10 * 900 = 90mm.
	readings := map[entities.Depth]float64{
		entities.Depth6In: 0.23, entities.Depth12In: 0.23, entities.Depth18In: 0.23,
	}
	st, err := tr.Update(context.Background(), testZone(t), obsAt(t0, readings, 0))
	require.NoError(t, err)
	assert.InDelta(t, 90.0, st.SMDmm, 1e-9)
}

func TestPureProjectionWhenAllDepthsMissing(t *testing.T) {
	tr := NewTracker(stubET{rate: 6})
	zone := testZone(t)
	ctx := context.Background()

	_, err := tr.Update(ctx, zone, obsAt(t0, nil, 0))
	require.NoError(t, err)

	st, err := tr.Update(ctx, zone, obsAt(t0.Add(24*time.Hour), nil, 0))
	require.NoError(t, err)
	assert.InDelta(t, 6.0, st.SMDmm, 1e-9, "one day at 6mm/day, no rain, no readings")
	assert.InDelta(t, 6.0, st.CumETmm, 1e-9)

	st, err = tr.Update(ctx, zone, obsAt(t0.Add(36*time.Hour), nil, 0))
	require.NoError(t, err)
	assert.InDelta(t, 9.0, st.SMDmm, 1e-9, "half a day more")
}

func TestRainReducesDeficitAndClampsAtZero(t *testing.T) {
	tr := NewTracker(stubET{rate: 6})
	zone := testZone(t)
	ctx := context.Background()

	_, err := tr.Update(ctx, zone, obsAt(t0, nil, 0))
	require.NoError(t, err)
	_, err = tr.Update(ctx, zone, obsAt(t0.Add(24*time.Hour), nil, 0))
	require.NoError(t, err)

	// 25mm of rain against 6mm deficit + 6mm new ET: clamped at zero.
	st, err := tr.Update(ctx, zone, obsAt(t0.Add(48*time.Hour), nil, 25))
	require.NoError(t, err)
	assert.Equal(t, 0.0, st.SMDmm)
	assert.InDelta(t, 25.0, st.CumRainMM, 1e-9)
}

func TestSMDStaysWithinBounds(t *testing.T) {
	// Aggressive ET against a small bucket: the clamp invariant must hold
	// at every step.
	tr := NewTracker(stubET{rate: 40})
	zone := testZone(t)
	ctx := context.Background()

	ts := t0
	for i := 0; i < 30; i++ {
		ts = ts.Add(12 * time.Hour)
		rain := 0.0
		if i%7 == 3 {
			rain = 120 // occasional heavy storm
		}
		st, err := tr.Update(ctx, zone, obsAt(ts, nil, rain))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, st.SMDmm, 0.0)
		assert.LessOrEqual(t, st.SMDmm, st.EffectiveWHCmm)
	}
}

func TestMeasurementOverridesProjection(t *testing.T) {
	tr := NewTracker(stubET{rate: 6})
	zone := testZone(t)
	ctx := context.Background()

	_, err := tr.Update(ctx, zone, obsAt(t0, nil, 0))
	require.NoError(t, err)

	// Projection would say ~6mm; the probes say 45mm. Probes win.
	readings := map[entities.Depth]float64{
		entities.Depth6In: 0.28, entities.Depth12In: 0.28, entities.Depth18In: 0.28,
	}
	st, err := tr.Update(ctx, zone, obsAt(t0.Add(24*time.Hour), readings, 0))
	require.NoError(t, err)
	assert.InDelta(t, 45.0, st.SMDmm, 1e-9)
}

func TestReconcileWeightBlends(t *testing.T) {
	tr := NewTracker(stubET{rate: 6}, WithReconcileWeight(0.5))
	zone := testZone(t)
	ctx := context.Background()

	_, err := tr.Update(ctx, zone, obsAt(t0, nil, 0))
	require.NoError(t, err)

	readings := map[entities.Depth]float64{
		entities.Depth6In: 0.28, entities.Depth12In: 0.28, entities.Depth18In: 0.28,
	}
	st, err := tr.Update(ctx, zone, obsAt(t0.Add(24*time.Hour), readings, 0))
	require.NoError(t, err)
	assert.InDelta(t, 0.5*45.0+0.5*6.0, st.SMDmm, 1e-9)
}

func TestNonPositiveElapsedTimeRejected(t *testing.T) {
	tr := NewTracker(stubET{rate: 6})
	zone := testZone(t)
	ctx := context.Background()

	before, err := tr.Update(ctx, zone, obsAt(t0, nil, 0))
	require.NoError(t, err)

	for _, ts := range []time.Time{t0, t0.Add(-time.Hour)} {
		_, err := tr.Update(ctx, zone, obsAt(ts, nil, 0))
		var te *entities.TemporalOrderError
		require.ErrorAs(t, err, &te)
	}

	after, ok := tr.State(zone.ID)
	require.True(t, ok)
	assert.Equal(t, before, after, "rejected update leaves state untouched")
}

func TestEstimatorErrorLeavesStateUntouched(t *testing.T) {
	failing := stubET{err: errors.New("weather upstream down")}
	tr := NewTracker(failing)
	zone := testZone(t)
	ctx := context.Background()

	before, err := tr.Update(ctx, zone, obsAt(t0, nil, 0))
	require.NoError(t, err, "first observation needs no ET estimate")

	_, err = tr.Update(ctx, zone, obsAt(t0.Add(time.Hour), nil, 0))
	require.Error(t, err)

	after, ok := tr.State(zone.ID)
	require.True(t, ok)
	assert.Equal(t, before, after)
}

func TestRecordIrrigationResetsSMD(t *testing.T) {
	tr := NewTracker(stubET{rate: 10})
	zone := testZone(t)
	ctx := context.Background()

	_, err := tr.Update(ctx, zone, obsAt(t0, nil, 0))
	require.NoError(t, err)
	st, err := tr.Update(ctx, zone, obsAt(t0.Add(5*24*time.Hour), nil, 0))
	require.NoError(t, err)
	require.Greater(t, st.SMDmm, 0.0)

	irrAt := t0.Add(5*24*time.Hour + time.Hour)
	st = tr.RecordIrrigation(zone.ID, irrAt)
	assert.Equal(t, 0.0, st.SMDmm)
	assert.Equal(t, 0.0, st.CumETmm)
	assert.Equal(t, 0.0, st.CumRainMM)
	require.NotNil(t, st.LastIrrigation)
	assert.Equal(t, irrAt, *st.LastIrrigation)

	// Resetting an unknown zone still yields a zeroed bucket.
	st = tr.RecordIrrigation("zone-new", irrAt)
	assert.Equal(t, 0.0, st.SMDmm)
}
