package entities

import "fmt"

// CropBaseline holds the two empirical CWSI reference lines for a crop.
// The lower (non-water-stressed) line gives canopy-minus-air temperature as
// a function of vapor pressure deficit: dT = LowerIntercept + LowerSlope*VPD.
// The upper (non-transpiring) line is a constant dT.
type CropBaseline struct {
	Crop           string  `json:"crop"`
	LowerIntercept float64 `json:"lower_intercept_c"`
	LowerSlope     float64 `json:"lower_slope_c_per_kpa"` // typically negative
	UpperDeltaT    float64 `json:"upper_delta_t_c"`
}

// Validate fails when the baseline is absent or cannot separate stress
// levels at zero VPD.
func (b CropBaseline) Validate() error {
	if b.Crop == "" {
		return &ConfigError{Reason: "CWSI baseline has no crop type"}
	}
	if b.UpperDeltaT <= b.LowerIntercept {
		return &ConfigError{Reason: fmt.Sprintf("crop %s: upper baseline %.2f not above lower intercept %.2f", b.Crop, b.UpperDeltaT, b.LowerIntercept)}
	}
	return nil
}

// Thresholds are the per-zone trigger settings captured into every
// decision record.
type Thresholds struct {
	// SMDDepletionFrac is the management allowable depletion: trigger when
	// SMD reaches this fraction of the effective WHC.
	SMDDepletionFrac float64 `json:"smd_depletion_frac"`
	// CWSITrigger is the stress index trigger level in [0,1].
	CWSITrigger float64 `json:"cwsi_trigger"`
}

func (t Thresholds) Validate() error {
	if t.SMDDepletionFrac <= 0 || t.SMDDepletionFrac > 1 {
		return &ConfigError{Reason: fmt.Sprintf("SMD depletion fraction %.3f outside (0,1]", t.SMDDepletionFrac)}
	}
	if t.CWSITrigger <= 0 || t.CWSITrigger > 1 {
		return &ConfigError{Reason: fmt.Sprintf("CWSI trigger %.3f outside (0,1]", t.CWSITrigger)}
	}
	return nil
}
