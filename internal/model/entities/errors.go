package entities

import (
	"fmt"
	"time"
)

// Error taxonomy for the decision core. All four are returned per call and
// matchable with errors.As; the core never swallows or retries.

// ValidationError rejects a malformed or physically implausible observation.
// Zone state is untouched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid observation: " + e.Reason
	}
	return fmt.Sprintf("invalid observation: %s: %s", e.Field, e.Reason)
}

// TemporalOrderError rejects a non-monotonic timestamp for a zone. The
// zone's last accepted timestamp does not advance, so a corrected
// resubmission is still accepted.
type TemporalOrderError struct {
	ZoneID string
	Last   time.Time
	Got    time.Time
}

func (e *TemporalOrderError) Error() string {
	return fmt.Sprintf("zone %s: timestamp %s not after last accepted %s",
		e.ZoneID, e.Got.UTC().Format(time.RFC3339Nano), e.Last.UTC().Format(time.RFC3339Nano))
}

// ConfigError marks a missing or invalid soil profile, baseline, or
// threshold. Fatal for the zone's pipeline until corrected; safety-critical
// thresholds are never silently defaulted.
type ConfigError struct {
	ZoneID string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.ZoneID == "" {
		return "config: " + e.Reason
	}
	return fmt.Sprintf("config: zone %s: %s", e.ZoneID, e.Reason)
}

// ComputationError rejects a single evaluation on a degenerate numeric case.
// Prior state remains valid.
type ComputationError struct {
	Op     string
	Reason string
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}
