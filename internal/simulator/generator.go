// Package simulator produces synthetic multi-depth observations for demos
// and load testing. The dynamics are deliberately simple but realistic:
// diurnal ET-driven drying that is fastest near the surface, occasional
// rain events that wet deeper layers with a lag, measurement noise, and a
// canopy temperature that rises above air temperature as the profile dries.
package simulator

import (
	"math"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/fieldtoalert/field-to-alert/internal/model"
	"github.com/fieldtoalert/field-to-alert/internal/model/entities"
)

const (
	// baseETVolPerHour is the peak volumetric drying rate at the surface.
	baseETVolPerHour = 0.002

	// noiseStdVWC and noiseStdTemp mirror typical probe noise.
	noiseStdVWC  = 0.003
	noiseStdTemp = 0.8

	baseAirTempC   = 30.0
	diurnalSwingC  = 8.0
	canopyDryBiasC = 7.0 // added on top of -2°C wet offset as stress grows
)

// Generator keeps the simulated soil state for one zone and emits raw
// observations with strictly increasing timestamps.
type Generator struct {
	mu    sync.Mutex
	zone  entities.Zone
	clock clockwork.Clock
	rng   *rand.Rand

	rainChance float64 // per tick, in [0,1]

	seeded bool
	last   time.Time
	vwc    map[entities.Depth]float64
}

func NewGenerator(zone entities.Zone, clock clockwork.Clock, seed int64, rainChance float64) *Generator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Generator{
		zone:       zone,
		clock:      clock,
		rng:        rand.New(rand.NewSource(seed)),
		rainChance: math.Max(0, math.Min(1, rainChance)),
		vwc:        make(map[entities.Depth]float64),
	}
}

// Next advances the simulation to the clock's current time and returns one
// observation.
func (g *Generator) Next() model.RawObservation {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now().UTC()
	if !g.seeded {
		g.seed(now)
	}
	if !now.After(g.last) {
		now = g.last.Add(time.Second)
	}
	dtMin := now.Sub(g.last).Minutes()
	g.last = now

	rain := g.step(now, dtMin)
	return g.observe(now, rain)
}

// seed starts every depth at 70% of available water, the original demo's
// initial condition.
func (g *Generator) seed(now time.Time) {
	for _, l := range g.zone.Soil.Layers {
		taw := l.FieldCapacity - l.WiltingPoint
		g.vwc[l.Depth] = l.WiltingPoint + 0.70*taw
	}
	g.last = now
	g.seeded = true
}

// step applies drying and possible rain over dt minutes and returns the
// rainfall in mm.
func (g *Generator) step(now time.Time, dtMin float64) float64 {
	factors := g.depletionFactors()

	et := baseETVolPerHour * diurnalFactor(now.Hour()) * dtMin / 60

	rainMM := 0.0
	if g.rng.Float64() < g.rainChance {
		rainMM = 5 + g.rng.Float64()*20
	}

	for _, l := range g.zone.Soil.Layers {
		v := g.vwc[l.Depth] - et*factors[l.Depth]
		if rainMM > 0 {
			// Infiltration response shrinks with depth.
			v += rainMM * 0.004 * factors[l.Depth]
		}
		// Keep the state physically plausible.
		v = math.Max(l.WiltingPoint*0.8, math.Min(l.FieldCapacity, v))
		g.vwc[l.Depth] = v
	}
	return rainMM
}

// observe renders the current state as a raw observation with noise.
func (g *Generator) observe(now time.Time, rainMM float64) model.RawObservation {
	moisture := make(map[string]float64, len(g.vwc))
	stressSum, n := 0.0, 0
	for _, l := range g.zone.Soil.Layers {
		v := g.vwc[l.Depth] + g.rng.NormFloat64()*noiseStdVWC
		v = math.Max(0, math.Min(1, v))
		moisture[strconvDepth(l.Depth)] = v

		taw := l.FieldCapacity - l.WiltingPoint
		s := 1 - (g.vwc[l.Depth]-l.WiltingPoint)/taw
		stressSum += math.Max(0, math.Min(1, s))
		n++
	}
	stress := stressSum / float64(n)

	air := baseAirTempC + diurnalSwingC*(diurnalFactor(now.Hour())-0.5) + g.rng.NormFloat64()*noiseStdTemp
	canopy := air + (-2 + canopyDryBiasC*stress) + g.rng.NormFloat64()*noiseStdTemp*0.5
	rh := math.Max(10, math.Min(95, 80-40*diurnalFactor(now.Hour())+g.rng.NormFloat64()*3))

	raw := model.RawObservation{
		ZoneID:         g.zone.ID,
		Timestamp:      now,
		Moisture:       moisture,
		CanopyTempC:    round1(canopy),
		AirTempC:       round1(air),
		RelHumidityPct: &rh,
	}
	if rainMM > 0 {
		raw.RainMM = &rainMM
	}
	return raw
}

// depletionFactors ranks layers shallowest-first: the surface dries at the
// full rate, deeper layers progressively slower.
func (g *Generator) depletionFactors() map[entities.Depth]float64 {
	depths := g.zone.Soil.AllDepths()
	sort.Slice(depths, func(i, j int) bool { return depths[i] < depths[j] })
	out := make(map[entities.Depth]float64, len(depths))
	for i, d := range depths {
		out[d] = 1.0 / math.Pow(1.8, float64(i))
	}
	return out
}

// diurnalFactor peaks in early afternoon and vanishes at night.
func diurnalFactor(hour int) float64 {
	if hour < 6 || hour > 20 {
		return 0
	}
	return math.Sin(math.Pi * float64(hour-6) / 14)
}

func strconvDepth(d entities.Depth) string {
	return strconv.Itoa(int(d))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
