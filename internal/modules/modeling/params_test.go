package modeling

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain/projects"
)

func TestResolveBuildParams_FromExtraction(t *testing.T) {
	est, err := EstimateFromReference("overall_length_mm", 120, "mm")
	require.NoError(t, err)

	p, defaults := ResolveBuildParams(est.Dimensions, Overrides{})
	assert.Empty(t, defaults)
	assert.Equal(t, 120.0, p.Length)
	assert.InDelta(t, 54.0, p.Width, 1e-9)
	assert.InDelta(t, 9.6, p.Thickness, 1e-9)
	assert.InDelta(t, 9.6, p.HoleDiameter, 1e-9)
	assert.Equal(t, 8, p.HoleCount)
	assert.InDelta(t, 54.0*0.35, p.RingRadius, 1e-9)
	assert.InDelta(t, 2.4, p.FilletRadius, 1e-9)
}

func TestResolveBuildParams_EmptyExtractionUsesDefaults(t *testing.T) {
	p, defaults := ResolveBuildParams(nil, Overrides{})
	assert.Equal(t, 120.0, p.Length)
	assert.InDelta(t, 54.0, p.Width, 1e-9)
	assert.Equal(t, 5.0, p.Thickness)
	assert.InDelta(t, 9.6, p.HoleDiameter, 1e-9)
	assert.ElementsMatch(t, []string{"length", "width", "thickness", "hole_diameter"}, defaults)
}

func TestResolveBuildParams_OverridesWin(t *testing.T) {
	dims := []projects.Dimension{{Name: "overall_length", Value: 200}, {Name: "overall_height", Value: 12}}
	o, err := ParseOverrides(map[string]any{
		"thickness":        3.0,
		"hole_count":       float64(0),
		"hole_ring_radius": "40",
		"fillet_radius":    0,
	})
	require.NoError(t, err)

	p, _ := ResolveBuildParams(dims, o)
	assert.Equal(t, 200.0, p.Length)
	assert.Equal(t, 3.0, p.Thickness)
	assert.Equal(t, 0, p.HoleCount)
	assert.Equal(t, 40.0, p.RingRadius)
	assert.Equal(t, 0.0, p.FilletRadius)
}

func TestParseOverrides_Invalid(t *testing.T) {
	cases := []map[string]any{
		{"thickness": -1.0},
		{"thickness": 0.0},
		{"thickness": "thick"},
		{"hole_count": 2.5},
		{"hole_count": -3.0},
		{"hole_count": float64(MaxHoleCount + 1)},
		{"fillet_radius": []int{1}},
	}
	for _, params := range cases {
		_, err := ParseOverrides(params)
		var pe *ParamError
		assert.True(t, errors.As(err, &pe), "params %v: got %v", params, err)
	}
}

func TestResolveBuildParams_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		var dims []projects.Dimension
		if rapid.Bool().Draw(rt, "has_length") {
			dims = append(dims, projects.Dimension{Name: "overall_length_mm", Value: rapid.Float64Range(1, 5000).Draw(rt, "length")})
		}
		if rapid.Bool().Draw(rt, "has_width") {
			dims = append(dims, projects.Dimension{Name: "overall_width", Value: rapid.Float64Range(1, 5000).Draw(rt, "width")})
		}
		var o Overrides
		if rapid.Bool().Draw(rt, "has_thickness") {
			v := rapid.Float64Range(0.1, 100).Draw(rt, "thickness")
			o.Thickness = &v
		}

		p, _ := ResolveBuildParams(dims, o)
		for name, v := range map[string]float64{"L": p.Length, "W": p.Width, "T": p.Thickness, "hole": p.HoleDiameter} {
			if !(v > 0) || math.IsInf(v, 0) {
				rt.Fatalf("%s = %v, want positive finite", name, v)
			}
		}
		if o.Thickness != nil && p.Thickness != *o.Thickness {
			rt.Fatalf("thickness override ignored")
		}
		if p.RingRadius > math.Min(p.Length, p.Width) {
			rt.Fatalf("default ring radius %v exceeds plate", p.RingRadius)
		}
	})
}
