package modeling

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain/projects"
)

// Fallbacks used when neither an override nor an extracted dimension is available.
const (
	DefaultLength    = 120.0
	DefaultThickness = 5.0
	RingRadiusRatio  = 0.35
	MaxHoleCount     = 256
)

// BuildParams are the seven numbers the templater needs.
type BuildParams struct {
	Length       float64 `json:"length"`
	Width        float64 `json:"width"`
	Thickness    float64 `json:"thickness"`
	HoleDiameter float64 `json:"hole_diameter"`
	HoleCount    int     `json:"hole_count"`
	RingRadius   float64 `json:"hole_ring_radius"`
	FilletRadius float64 `json:"fillet_radius"`
}

// Overrides are the optional job params of a generate_script job. nil means "not given".
type Overrides struct {
	Thickness      *float64
	HoleDiameter   *float64
	HoleCount      *int
	HoleRingRadius *float64
	FilletRadius   *float64
}

// ParamError is a user error in the job params; the job fails without retry.
type ParamError struct {
	Param  string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid param %q: %s", e.Param, e.Reason)
}

// ParseOverrides reads overrides from decoded JSON params. Unknown keys are ignored.
func ParseOverrides(params map[string]any) (Overrides, error) {
	var o Overrides
	var err error
	if o.Thickness, err = positiveFloat(params, "thickness", false); err != nil {
		return o, err
	}
	if o.HoleDiameter, err = positiveFloat(params, "hole_diameter", false); err != nil {
		return o, err
	}
	if o.HoleRingRadius, err = positiveFloat(params, "hole_ring_radius", true); err != nil {
		return o, err
	}
	if o.FilletRadius, err = positiveFloat(params, "fillet_radius", true); err != nil {
		return o, err
	}
	if raw, ok := params["hole_count"]; ok && raw != nil {
		f, err := toFloat(raw)
		if err != nil {
			return o, &ParamError{Param: "hole_count", Reason: err.Error()}
		}
		if f != math.Trunc(f) || f < 0 || f > MaxHoleCount {
			return o, &ParamError{Param: "hole_count", Reason: fmt.Sprintf("must be a whole number between 0 and %d", MaxHoleCount)}
		}
		n := int(f)
		o.HoleCount = &n
	}
	return o, nil
}

func positiveFloat(params map[string]any, key string, allowZero bool) (*float64, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return nil, nil
	}
	f, err := toFloat(raw)
	if err != nil {
		return nil, &ParamError{Param: key, Reason: err.Error()}
	}
	if f < 0 || (!allowZero && f == 0) {
		return nil, &ParamError{Param: key, Reason: "must be positive"}
	}
	return &f, nil
}

func toFloat(v any) (float64, error) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		p, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("not a number")
		}
		f = p
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number")
		}
		f = p
	default:
		return 0, fmt.Errorf("not a number")
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number")
	}
	return f, nil
}

// ResolveBuildParams applies override, then extracted dimension, then derived default, per
// parameter. defaultsUsed names the geometry values that fell back to a synthetic default
// because the extraction did not carry them.
func ResolveBuildParams(dims []projects.Dimension, o Overrides) (p BuildParams, defaultsUsed []string) {
	byName := make(map[string]float64, len(dims))
	for _, d := range dims {
		if d.Value > 0 {
			byName[d.Name] = d.Value
		}
	}
	lookup := func(names ...string) (float64, bool) {
		for _, n := range names {
			if v, ok := byName[n]; ok {
				return v, true
			}
		}
		return 0, false
	}

	if v, ok := lookup(DimOverallLengthMM, DimOverallLength); ok {
		p.Length = v
	} else {
		p.Length = DefaultLength
		defaultsUsed = append(defaultsUsed, "length")
	}

	if v, ok := lookup(DimOverallWidth); ok {
		p.Width = v
	} else {
		p.Width = p.Length * WidthRatio
		defaultsUsed = append(defaultsUsed, "width")
	}

	switch v, ok := lookup(DimOverallHeight); {
	case o.Thickness != nil:
		p.Thickness = *o.Thickness
	case ok:
		p.Thickness = v
	default:
		p.Thickness = DefaultThickness
		defaultsUsed = append(defaultsUsed, "thickness")
	}

	switch v, ok := lookup(DimHoleDiameter); {
	case o.HoleDiameter != nil:
		p.HoleDiameter = *o.HoleDiameter
	case ok:
		p.HoleDiameter = v
	default:
		p.HoleDiameter = p.Length * HoleRatio
		defaultsUsed = append(defaultsUsed, "hole_diameter")
	}

	p.HoleCount = DefaultHoleCount
	if o.HoleCount != nil {
		p.HoleCount = *o.HoleCount
	}

	p.RingRadius = math.Min(p.Length, p.Width) * RingRadiusRatio
	if o.HoleRingRadius != nil {
		p.RingRadius = *o.HoleRingRadius
	}

	p.FilletRadius = p.Length * FilletRatio
	if o.FilletRadius != nil {
		p.FilletRadius = *o.FilletRadius
	}
	return p, defaultsUsed
}
