package model

import "time"

// Rationale labels why a decision triggered (or did not).
type Rationale string

const (
	RationaleNone         Rationale = "NONE"
	RationaleSMDExceeded  Rationale = "SMD_EXCEEDED"
	RationaleCWSIExceeded Rationale = "CWSI_EXCEEDED"
	RationaleBoth         Rationale = "BOTH"
)

// ThresholdSnapshot captures the threshold values in force when a decision
// was made, for auditability.
type ThresholdSnapshot struct {
	SMDTriggerMM     float64 `json:"smd_trigger_mm"`
	SMDDepletionFrac float64 `json:"smd_depletion_frac"`
	CWSITrigger      float64 `json:"cwsi_trigger"`
}

// DecisionRecord is one immutable trigger/no-trigger decision for a zone.
// Decisions form an append-only ordered sequence per zone.
type DecisionRecord struct {
	ID        string    `json:"id"`
	ZoneID    string    `json:"zone_id"`
	Timestamp time.Time `json:"timestamp"`

	SMDmm   float64 `json:"smd_mm"`
	SMDFrac float64 `json:"smd_frac"`
	CWSI    float64 `json:"cwsi"`

	Triggered  bool              `json:"triggered"`
	Rationale  Rationale         `json:"rationale"`
	Thresholds ThresholdSnapshot `json:"thresholds"`
}
