package engine

import (
	"sync"

	"github.com/fieldtoalert/field-to-alert/internal/model"
)

// zoneUnit holds one zone's mutable pipeline state. The unit mutex
// serializes updates within a zone; units for distinct zones never contend.
type zoneUnit struct {
	mu       sync.Mutex
	lastObs  *model.Observation
	lastCWSI *model.CWSIState
	history  []model.DecisionRecord
}

type unitMap struct {
	mu    sync.Mutex
	units map[string]*zoneUnit
}

func newUnitMap() *unitMap {
	return &unitMap{units: make(map[string]*zoneUnit)}
}

// get returns the zone's unit, creating it on first use.
func (m *unitMap) get(zoneID string) *zoneUnit {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.units[zoneID]
	if !ok {
		u = &zoneUnit{}
		m.units[zoneID] = u
	}
	return u
}
