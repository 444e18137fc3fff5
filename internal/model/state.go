package model

import "time"

// WaterBalanceState is the running soil-water bucket for one zone. Owned
// exclusively by the tracker; callers receive copies.
type WaterBalanceState struct {
	ZoneID string

	// SMDmm is the current soil moisture deficit below field capacity,
	// always within [0, EffectiveWHCmm].
	SMDmm          float64
	EffectiveWHCmm float64

	// Cumulative totals since the last irrigation event.
	CumETmm   float64
	CumRainMM float64

	LastUpdate     time.Time
	LastIrrigation *time.Time // nil until the first irrigation event
}

// DepletionFrac is the deficit as a fraction of the effective WHC.
func (s WaterBalanceState) DepletionFrac() float64 {
	if s.EffectiveWHCmm <= 0 {
		return 0
	}
	return s.SMDmm / s.EffectiveWHCmm
}

// CWSIState is the most recent stress computation for a zone, including the
// baseline values it was derived from.
type CWSIState struct {
	ZoneID string

	// Value is the crop water stress index, clamped to [0,1].
	Value float64

	DeltaT      float64 // observed canopy minus air, °C
	LowerDeltaT float64 // non-water-stressed baseline at this VPD
	UpperDeltaT float64 // non-transpiring baseline
	VPDkPa      float64

	ComputedAt time.Time
}
