package modeling

import (
	"errors"
	"math"
	"strings"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain/projects"
)

// Ratios and confidences of the placeholder estimator. Every secondary dimension is a fixed
// fraction of the calibrated reference.
const (
	ReferenceConfidence = 0.95

	WidthRatio       = 0.45
	WidthConfidence  = 0.55
	HeightRatio      = 0.08
	HeightConfidence = 0.60
	HoleRatio        = 0.08
	HoleConfidence   = 0.50
	FilletRatio      = 0.02
	DefaultHoleCount = 8
	DefaultUnit      = "mm"
)

const (
	DimOverallLengthMM = "overall_length_mm"
	DimOverallLength   = "overall_length"
	DimOverallWidth    = "overall_width"
	DimOverallHeight   = "overall_height"
	DimHoleDiameter    = "hole_diameter"
)

var ErrInvalidReference = errors.New("reference value must be positive")

// Estimate is the output of one extraction pass.
type Estimate struct {
	Dimensions []projects.Dimension
	Features   []projects.Feature
	Tasks      []string
}

var buildTasks = []string{
	"Create base plate with extracted dimensions",
	"Add through holes in circular pattern",
	"Apply corner fillets",
	"Export to STL format",
}

// EstimateFromReference derives the dimension set of a perforated base plate from a single
// calibrated measurement. The reference itself is always the first dimension.
func EstimateFromReference(name string, value float64, unit string) (Estimate, error) {
	if !(value > 0) || math.IsInf(value, 0) {
		return Estimate{}, ErrInvalidReference
	}
	unit = strings.TrimSpace(unit)
	if unit == "" {
		unit = DefaultUnit
	}
	derived := func(dim string, ratio, confidence float64) projects.Dimension {
		return projects.Dimension{
			Name:       dim,
			Value:      Round3(value * ratio),
			Unit:       unit,
			Confidence: confidence,
			Source:     projects.SourceRatioEstimation,
		}
	}
	fillet := Round3(value * FilletRatio)

	return Estimate{
		Dimensions: []projects.Dimension{
			{Name: name, Value: value, Unit: unit, Confidence: ReferenceConfidence, Source: projects.SourceUserReference},
			derived(DimOverallWidth, WidthRatio, WidthConfidence),
			derived(DimOverallHeight, HeightRatio, HeightConfidence),
			derived(DimHoleDiameter, HoleRatio, HoleConfidence),
		},
		Features: []projects.Feature{
			{Type: "base_plate", Shape: "rectangular"},
			{Type: "through_hole", Count: DefaultHoleCount, Pattern: "circular"},
			{Type: "corner_fillet", Radius: &fillet},
		},
		Tasks: append([]string(nil), buildTasks...),
	}, nil
}

func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
