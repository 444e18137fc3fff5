package decision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldtoalert/field-to-alert/internal/model"
	"github.com/fieldtoalert/field-to-alert/internal/model/entities"
)

var at = time.Date(2026, 7, 14, 12, 0, 0, 0, time.UTC)

func zone() entities.Zone {
	return entities.Zone{
		ID:         "zone-a",
		Thresholds: entities.Thresholds{SMDDepletionFrac: 0.5, CWSITrigger: 0.6},
	}
}

func wb(smd float64) model.WaterBalanceState {
	return model.WaterBalanceState{ZoneID: "zone-a", SMDmm: smd, EffectiveWHCmm: 180}
}

func cw(v float64) model.CWSIState {
	return model.CWSIState{ZoneID: "zone-a", Value: v}
}

func TestEvaluateRationales(t *testing.T) {
	// Trigger at SMD >= 90mm (50% of 180) or CWSI >= 0.6.
	tests := []struct {
		name      string
		smd       float64
		cwsi      float64
		rationale model.Rationale
		triggered bool
	}{
		{"below both", 50, 0.2, model.RationaleNone, false},
		{"smd at threshold", 90, 0.2, model.RationaleSMDExceeded, true},
		{"smd above threshold", 99, 0.2, model.RationaleSMDExceeded, true},
		{"cwsi at threshold", 50, 0.6, model.RationaleCWSIExceeded, true},
		{"both exceeded", 120, 0.8, model.RationaleBoth, true},
		{"just under both", 89.99, 0.599, model.RationaleNone, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Evaluate(zone(), wb(tt.smd), cw(tt.cwsi), at)
			assert.Equal(t, tt.rationale, rec.Rationale)
			assert.Equal(t, tt.triggered, rec.Triggered)
		})
	}
}

func TestEvaluateCapturesAuditFields(t *testing.T) {
	rec := Evaluate(zone(), wb(99), cw(0.3), at)

	require.NotEmpty(t, rec.ID)
	assert.Equal(t, "zone-a", rec.ZoneID)
	assert.Equal(t, at, rec.Timestamp)
	assert.Equal(t, 99.0, rec.SMDmm)
	assert.InDelta(t, 0.55, rec.SMDFrac, 1e-9)
	assert.Equal(t, 0.3, rec.CWSI)
	assert.InDelta(t, 90.0, rec.Thresholds.SMDTriggerMM, 1e-9)
	assert.Equal(t, 0.5, rec.Thresholds.SMDDepletionFrac)
	assert.Equal(t, 0.6, rec.Thresholds.CWSITrigger)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	a := Evaluate(zone(), wb(120), cw(0.7), at)
	b := Evaluate(zone(), wb(120), cw(0.7), at)

	// Identical apart from the generated record ID.
	b.ID = a.ID
	assert.Equal(t, a, b)
}
