package entities

import (
	"fmt"
	"math"
	"sort"
)

// Depth is a monitored sensor depth in inches below the surface.
type Depth int

const (
	Depth6In  Depth = 6
	Depth12In Depth = 12
	Depth18In Depth = 18
)

// MonitoredDepths lists the standard probe depths, shallowest first.
var MonitoredDepths = []Depth{Depth6In, Depth12In, Depth18In}

// TextureClass is a USDA soil texture class.
type TextureClass string

const (
	TextureSand          TextureClass = "sand"
	TextureLoamySand     TextureClass = "loamy_sand"
	TextureSandyLoam     TextureClass = "sandy_loam"
	TextureLoam          TextureClass = "loam"
	TextureSiltLoam      TextureClass = "silt_loam"
	TextureSandyClayLoam TextureClass = "sandy_clay_loam"
	TextureClayLoam      TextureClass = "clay_loam"
	TextureSiltyClayLoam TextureClass = "silty_clay_loam"
	TextureClay          TextureClass = "clay"
)

// textureProperties maps texture class to typical field capacity and
// permanent wilting point (volumetric, cm³/cm³), USDA NRCS ranges.
var textureProperties = map[TextureClass]struct{ FC, PWP float64 }{
	TextureSand:          {0.12, 0.04},
	TextureLoamySand:     {0.14, 0.06},
	TextureSandyLoam:     {0.23, 0.10},
	TextureLoam:          {0.27, 0.12},
	TextureSiltLoam:      {0.33, 0.13},
	TextureSandyClayLoam: {0.26, 0.15},
	TextureClayLoam:      {0.32, 0.20},
	TextureSiltyClayLoam: {0.37, 0.22},
	TextureClay:          {0.43, 0.29},
}

// TextureProperties returns the default FC/PWP pair for a texture class.
func TextureProperties(t TextureClass) (fc, pwp float64, ok bool) {
	p, ok := textureProperties[t]
	return p.FC, p.PWP, ok
}

// weightEpsilon is the tolerance on the depth-weight sum.
const weightEpsilon = 1e-6

// DepthLayer holds the water-holding bounds and aggregation weight for one
// monitored depth.
type DepthLayer struct {
	Depth         Depth   `json:"depth_in"`
	FieldCapacity float64 `json:"field_capacity"` // volumetric, cm³/cm³
	WiltingPoint  float64 `json:"wilting_point"`  // volumetric, cm³/cm³
	Weight        float64 `json:"weight"`
}

// SoilProfile is the static per-zone soil configuration. Immutable after
// load; a reload requires re-initializing the zone's state.
type SoilProfile struct {
	Texture     TextureClass `json:"texture"`
	Layers      []DepthLayer `json:"layers"`
	RootDepthMM float64      `json:"root_depth_mm"`
}

// DefaultProfile builds a profile from the texture table with equal weights
// over the standard depths.
func DefaultProfile(t TextureClass, rootDepthMM float64) (SoilProfile, error) {
	fc, pwp, ok := TextureProperties(t)
	if !ok {
		return SoilProfile{}, &ConfigError{Reason: fmt.Sprintf("unknown texture class %q", t)}
	}
	w := 1.0 / float64(len(MonitoredDepths))
	layers := make([]DepthLayer, 0, len(MonitoredDepths))
	for _, d := range MonitoredDepths {
		layers = append(layers, DepthLayer{Depth: d, FieldCapacity: fc, WiltingPoint: pwp, Weight: w})
	}
	return SoilProfile{Texture: t, Layers: layers, RootDepthMM: rootDepthMM}, nil
}

// Validate checks the invariants: FC > PWP at every depth, weights
// non-negative and summing to 1 within tolerance, at least one nonzero
// weight, positive root depth.
func (p SoilProfile) Validate() error {
	if len(p.Layers) == 0 {
		return &ConfigError{Reason: "soil profile has no depth layers"}
	}
	if p.RootDepthMM <= 0 {
		return &ConfigError{Reason: fmt.Sprintf("root depth must be positive, got %.1f", p.RootDepthMM)}
	}
	sum := 0.0
	nonzero := 0
	seen := make(map[Depth]bool, len(p.Layers))
	for _, l := range p.Layers {
		if seen[l.Depth] {
			return &ConfigError{Reason: fmt.Sprintf("duplicate layer at depth %d\"", l.Depth)}
		}
		seen[l.Depth] = true
		if l.FieldCapacity <= l.WiltingPoint {
			return &ConfigError{Reason: fmt.Sprintf("depth %d\": field capacity %.3f not above wilting point %.3f", l.Depth, l.FieldCapacity, l.WiltingPoint)}
		}
		if l.Weight < 0 {
			return &ConfigError{Reason: fmt.Sprintf("depth %d\": negative weight %.3f", l.Depth, l.Weight)}
		}
		if l.Weight > 0 {
			nonzero++
		}
		sum += l.Weight
	}
	if nonzero == 0 {
		return &ConfigError{Reason: "all depth weights are zero"}
	}
	if math.Abs(sum-1.0) > weightEpsilon {
		return &ConfigError{Reason: fmt.Sprintf("depth weights sum to %.6f, want 1", sum)}
	}
	return nil
}

// layersFor selects the layers matching the present depths and renormalizes
// their weights. Fails when no present depth carries weight.
func (p SoilProfile) layersFor(present []Depth) ([]DepthLayer, error) {
	want := make(map[Depth]bool, len(present))
	for _, d := range present {
		want[d] = true
	}
	var out []DepthLayer
	sum := 0.0
	for _, l := range p.Layers {
		if want[l.Depth] {
			out = append(out, l)
			sum += l.Weight
		}
	}
	if len(out) == 0 || sum <= 0 {
		return nil, &ConfigError{Reason: "no weighted layer matches the present depths"}
	}
	for i := range out {
		out[i].Weight /= sum
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Depth < out[j].Depth })
	return out, nil
}

// EffectiveWHCmm aggregates per-depth water holding capacity (FC - PWP) over
// the given depths, weight-renormalized, expressed as mm of water over the
// root zone.
func (p SoilProfile) EffectiveWHCmm(present []Depth) (float64, error) {
	layers, err := p.layersFor(present)
	if err != nil {
		return 0, err
	}
	whc := 0.0
	for _, l := range layers {
		whc += l.Weight * (l.FieldCapacity - l.WiltingPoint)
	}
	return whc * p.RootDepthMM, nil
}

// AllDepths returns every configured layer depth.
func (p SoilProfile) AllDepths() []Depth {
	out := make([]Depth, 0, len(p.Layers))
	for _, l := range p.Layers {
		out = append(out, l.Depth)
	}
	return out
}

// MeasuredDeficitMM converts direct volumetric readings into a profile-wide
// soil moisture deficit below field capacity, in mm over the root zone.
// Weights are renormalized over the depths actually present.
func (p SoilProfile) MeasuredDeficitMM(readings map[Depth]float64) (float64, error) {
	if len(readings) == 0 {
		return 0, &ConfigError{Reason: "no depth readings supplied"}
	}
	present := make([]Depth, 0, len(readings))
	for d := range readings {
		present = append(present, d)
	}
	layers, err := p.layersFor(present)
	if err != nil {
		return 0, err
	}
	deficit := 0.0
	for _, l := range layers {
		d := l.FieldCapacity - readings[l.Depth]
		if d < 0 {
			d = 0 // wetter than field capacity counts as zero deficit
		}
		deficit += l.Weight * d
	}
	return deficit * p.RootDepthMM, nil
}
