package messages

import "time"

// DecisionEvent is published by the controller to record what the engine
// decided and why, with the thresholds in force at the time.
type DecisionEvent struct {
	DecisionID   string    `json:"decision_id"`
	ZoneID       string    `json:"zone_id"`
	SMDmm        float64   `json:"smd_mm"`
	SMDFrac      float64   `json:"smd_frac"`
	CWSI         float64   `json:"cwsi"`
	Triggered    bool      `json:"triggered"`
	Rationale    string    `json:"rationale"`
	SMDTriggerMM float64   `json:"smd_trigger_mm"`
	CWSITrigger  float64   `json:"cwsi_trigger"`
	Timestamp    time.Time `json:"timestamp"`
}

// IrrigationEvent reports that irrigation was applied to a zone, either
// from actuation feedback or from a manual log entry. It resets the zone's
// water balance.
type IrrigationEvent struct {
	ZoneID    string    `json:"zone_id"`
	AppliedMM float64   `json:"applied_mm"`
	Source    string    `json:"source"` // "dispatch" | "manual"
	Timestamp time.Time `json:"timestamp"`
}
