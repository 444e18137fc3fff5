package cwsi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldtoalert/field-to-alert/internal/model"
	"github.com/fieldtoalert/field-to-alert/internal/model/entities"
)

var at = time.Date(2026, 7, 14, 14, 0, 0, 0, time.UTC)

func cornZone() entities.Zone {
	return entities.Zone{
		ID:   "zone-a",
		Crop: "corn",
		Baseline: entities.CropBaseline{
			Crop:           "corn",
			LowerIntercept: 1.5,
			LowerSlope:     -2.0,
			UpperDeltaT:    5.0,
		},
	}
}

func TestComputeAtBaselines(t *testing.T) {
	zone := cornZone()
	vpd := 2.0
	lower := 1.5 + (-2.0)*vpd // -2.5°C

	// Canopy sitting exactly on the lower baseline: no stress.
	st, err := Compute(zone, 30+lower, 30, vpd, at)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, st.Value, 1e-9)
	assert.InDelta(t, lower, st.LowerDeltaT, 1e-9)

	// Exactly on the upper baseline: maximum stress.
	st, err = Compute(zone, 35, 30, vpd, at)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, st.Value, 1e-9)

	// Midway.
	mid := lower + (5.0-lower)/2
	st, err = Compute(zone, 30+mid, 30, vpd, at)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, st.Value, 1e-9)
}

func TestComputeClampsToUnitInterval(t *testing.T) {
	zone := cornZone()

	st, err := Compute(zone, 20, 30, 1.0, at) // far below lower baseline
	require.NoError(t, err)
	assert.Equal(t, 0.0, st.Value)

	st, err = Compute(zone, 45, 30, 1.0, at) // far above upper baseline
	require.NoError(t, err)
	assert.Equal(t, 1.0, st.Value)
}

func TestComputeRejectsMissingBaseline(t *testing.T) {
	zone := cornZone()
	zone.Baseline = entities.CropBaseline{}

	_, err := Compute(zone, 32, 30, 1.0, at)
	var ce *entities.ConfigError
	require.ErrorAs(t, err, &ce)
}

func TestComputeRejectsDegenerateSpread(t *testing.T) {
	zone := cornZone()
	// Slope drives the lower line up to the upper line at high VPD:
	// lower = 1.5 + 1.75*2.0 = 5.0 = upper.
	zone.Baseline.LowerSlope = 1.75

	_, err := Compute(zone, 32, 30, 2.0, at)
	var ce *entities.ComputationError
	require.ErrorAs(t, err, &ce)
}

func TestVPDFromRH(t *testing.T) {
	// Saturated air has no deficit.
	assert.InDelta(t, 0.0, VPDFromRH(30, 100), 1e-9)

	// es(30°C) ≈ 4.243 kPa; at 50% RH the deficit is about half of that.
	vpd := VPDFromRH(30, 50)
	assert.InDelta(t, 2.12, vpd, 0.02)

	// Drier air, larger deficit.
	assert.Greater(t, VPDFromRH(30, 20), vpd)
}

func TestComputeFromObservation(t *testing.T) {
	zone := cornZone()
	rh := 50.0
	direct := 2.0

	obs := model.Observation{ZoneID: zone.ID, Timestamp: at, CanopyTempC: 33, AirTempC: 30, VPDkPa: &direct}
	st, err := ComputeFromObservation(zone, obs, at)
	require.NoError(t, err)
	assert.Equal(t, direct, st.VPDkPa, "direct VPD preferred")

	obs.VPDkPa = nil
	obs.RelHumidityPct = &rh
	st, err = ComputeFromObservation(zone, obs, at)
	require.NoError(t, err)
	assert.InDelta(t, VPDFromRH(30, 50), st.VPDkPa, 1e-9)

	obs.RelHumidityPct = nil
	_, err = ComputeFromObservation(zone, obs, at)
	var ce *entities.ComputationError
	require.ErrorAs(t, err, &ce)
}
