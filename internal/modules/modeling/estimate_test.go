package modeling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain/projects"
)

func TestEstimateFromReference(t *testing.T) {
	est, err := EstimateFromReference("overall_length_mm", 120, "mm")
	require.NoError(t, err)
	require.Len(t, est.Dimensions, 4)

	ref := est.Dimensions[0]
	assert.Equal(t, projects.Dimension{Name: "overall_length_mm", Value: 120, Unit: "mm", Confidence: 0.95, Source: "user_reference"}, ref)

	byName := map[string]projects.Dimension{}
	for _, d := range est.Dimensions[1:] {
		byName[d.Name] = d
		assert.Equal(t, "ratio_estimation", d.Source)
		assert.GreaterOrEqual(t, d.Confidence, 0.5)
		assert.LessOrEqual(t, d.Confidence, 0.6)
	}
	assert.InDelta(t, 54.0, byName["overall_width"].Value, 1e-9)
	assert.InDelta(t, 9.6, byName["overall_height"].Value, 1e-9)
	assert.InDelta(t, 9.6, byName["hole_diameter"].Value, 1e-9)

	require.Len(t, est.Features, 3)
	assert.Equal(t, "base_plate", est.Features[0].Type)
	assert.Equal(t, 8, est.Features[1].Count)
	require.NotNil(t, est.Features[2].Radius)
	assert.InDelta(t, 2.4, *est.Features[2].Radius, 1e-9)
	assert.Len(t, est.Tasks, 4)
}

func TestEstimateFromReference_RoundsToThreeDecimals(t *testing.T) {
	est, err := EstimateFromReference("overall_length", 33.3333, "")
	require.NoError(t, err)
	assert.Equal(t, "mm", est.Dimensions[0].Unit)
	assert.Equal(t, 15.0, est.Dimensions[1].Value) // 14.999985
	assert.Equal(t, 2.667, est.Dimensions[2].Value)
}

func TestEstimateFromReference_RejectsNonPositive(t *testing.T) {
	for _, v := range []float64{0, -1} {
		_, err := EstimateFromReference("x", v, "mm")
		assert.ErrorIs(t, err, ErrInvalidReference)
	}
}
