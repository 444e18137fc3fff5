// Package cwsi computes the Crop Water Stress Index from canopy and air
// temperature using the two-line empirical model: a lower, non-water-stressed
// baseline (a linear function of vapor pressure deficit) and an upper,
// non-transpiring limit.
package cwsi

import (
	"fmt"
	"math"
	"time"

	"github.com/fieldtoalert/field-to-alert/internal/model"
	"github.com/fieldtoalert/field-to-alert/internal/model/entities"
)

// spreadEpsilon guards the baseline denominator.
const spreadEpsilon = 1e-6

// SaturationVaporPressureKPa follows the Tetens equation for air
// temperature in °C.
func SaturationVaporPressureKPa(tempC float64) float64 {
	return 0.6108 * math.Exp(17.27*tempC/(tempC+237.3))
}

// VPDFromRH derives vapor pressure deficit (kPa) from air temperature and
// relative humidity.
func VPDFromRH(airTempC, relHumidityPct float64) float64 {
	es := SaturationVaporPressureKPa(airTempC)
	vpd := es * (1 - relHumidityPct/100)
	if vpd < 0 {
		return 0
	}
	return vpd
}

// Compute evaluates the index for one observation:
//
//	CWSI = (dT - dT_lower(VPD)) / (dT_upper - dT_lower(VPD)), clamped to [0,1]
//
// It fails with ConfigError when the baseline is not configured and with
// ComputationError when the two baselines coincide at this VPD.
func Compute(zone entities.Zone, canopyTempC, airTempC, vpdKPa float64, at time.Time) (model.CWSIState, error) {
	if err := zone.Baseline.Validate(); err != nil {
		return model.CWSIState{}, err
	}

	lower := zone.Baseline.LowerIntercept + zone.Baseline.LowerSlope*vpdKPa
	upper := zone.Baseline.UpperDeltaT
	spread := upper - lower
	if spread <= spreadEpsilon {
		return model.CWSIState{}, &entities.ComputationError{
			Op:     "cwsi",
			Reason: fmt.Sprintf("zone %s: baseline spread %.4f°C at VPD %.2fkPa is degenerate", zone.ID, spread, vpdKPa),
		}
	}

	dT := canopyTempC - airTempC
	v := (dT - lower) / spread
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}

	return model.CWSIState{
		ZoneID:      zone.ID,
		Value:       v,
		DeltaT:      dT,
		LowerDeltaT: lower,
		UpperDeltaT: upper,
		VPDkPa:      vpdKPa,
		ComputedAt:  at,
	}, nil
}

// ComputeFromObservation resolves VPD from the observation (direct value
// preferred, else derived from relative humidity) and evaluates the index.
func ComputeFromObservation(zone entities.Zone, obs model.Observation, at time.Time) (model.CWSIState, error) {
	var vpd float64
	switch {
	case obs.VPDkPa != nil:
		vpd = *obs.VPDkPa
	case obs.RelHumidityPct != nil:
		vpd = VPDFromRH(obs.AirTempC, *obs.RelHumidityPct)
	default:
		return model.CWSIState{}, &entities.ComputationError{
			Op:     "cwsi",
			Reason: fmt.Sprintf("zone %s: observation carries neither VPD nor relative humidity", zone.ID),
		}
	}
	return Compute(zone, obs.CanopyTempC, obs.AirTempC, vpd, at)
}
