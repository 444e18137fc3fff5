package weather

import (
	"context"
	"time"

	"github.com/fieldtoalert/field-to-alert/internal/model/entities"
)

// FixedRate is an ET estimator returning a constant mm/day rate. Useful for
// offline runs and as a deterministic collaborator in tests.
type FixedRate struct {
	MMPerDay float64
}

func (f FixedRate) EstimateET(context.Context, entities.Zone, time.Time, time.Time) (float64, error) {
	return f.MMPerDay, nil
}
