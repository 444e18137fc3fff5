// Package decision turns a zone's water balance and stress index into a
// trigger/no-trigger record. Evaluate is a pure function of its inputs so
// historical data can be replayed through it for backtesting.
package decision

import (
	"time"

	"github.com/google/uuid"

	"github.com/fieldtoalert/field-to-alert/internal/model"
	"github.com/fieldtoalert/field-to-alert/internal/model/entities"
)

// Evaluate applies the zone's thresholds to the two state inputs. The
// trigger is a logical OR of the SMD and CWSI conditions; the rationale is
// BOTH when the two hold simultaneously, neither taking precedence.
func Evaluate(zone entities.Zone, wb model.WaterBalanceState, cw model.CWSIState, at time.Time) model.DecisionRecord {
	smdTriggerMM := zone.Thresholds.SMDDepletionFrac * wb.EffectiveWHCmm

	smdHit := wb.SMDmm >= smdTriggerMM
	cwsiHit := cw.Value >= zone.Thresholds.CWSITrigger

	rationale := model.RationaleNone
	switch {
	case smdHit && cwsiHit:
		rationale = model.RationaleBoth
	case smdHit:
		rationale = model.RationaleSMDExceeded
	case cwsiHit:
		rationale = model.RationaleCWSIExceeded
	}

	return model.DecisionRecord{
		ID:        uuid.NewString(),
		ZoneID:    zone.ID,
		Timestamp: at.UTC(),
		SMDmm:     wb.SMDmm,
		SMDFrac:   wb.DepletionFrac(),
		CWSI:      cw.Value,
		Triggered: rationale != model.RationaleNone,
		Rationale: rationale,
		Thresholds: model.ThresholdSnapshot{
			SMDTriggerMM:     smdTriggerMM,
			SMDDepletionFrac: zone.Thresholds.SMDDepletionFrac,
			CWSITrigger:      zone.Thresholds.CWSITrigger,
		},
	}
}
