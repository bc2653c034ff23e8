package testutil

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain/jobs"
)

func SeedProject(tb testing.TB, db *gorm.DB, name string) *domain.Project {
	tb.Helper()
	p := &domain.Project{Name: name}
	if err := db.Create(p).Error; err != nil {
		tb.Fatalf("seed project: %v", err)
	}
	return p
}

func SeedScaleReference(tb testing.TB, db *gorm.DB, projectID uuid.UUID, name string, value float64) *domain.ScaleReference {
	tb.Helper()
	sr := &domain.ScaleReference{ProjectID: projectID, ReferenceName: name, ReferenceValue: value, Unit: "mm"}
	if err := db.Create(sr).Error; err != nil {
		tb.Fatalf("seed scale reference: %v", err)
	}
	return sr
}

func SeedJob(tb testing.TB, db *gorm.DB, projectID uuid.UUID, jobType jobs.JobType, params string) *domain.Job {
	tb.Helper()
	if params == "" {
		params = "{}"
	}
	j := &domain.Job{
		ProjectID: projectID,
		JobType:   jobType,
		Status:    jobs.StatusQueued,
		Stage:     "queued",
		Params:    datatypes.JSON([]byte(params)),
	}
	if err := db.Create(j).Error; err != nil {
		tb.Fatalf("seed job: %v", err)
	}
	return j
}

func SeedExtraction(tb testing.TB, db *gorm.DB, projectID uuid.UUID, version int, dims ...domain.Dimension) *domain.ExtractionResult {
	tb.Helper()
	er := &domain.ExtractionResult{ProjectID: projectID, Version: version, Dimensions: dims}
	if err := db.Create(er).Error; err != nil {
		tb.Fatalf("seed extraction: %v", err)
	}
	return er
}

func SeedScript(tb testing.TB, db *gorm.DB, projectID uuid.UUID, version int, text string) *domain.ScriptVersion {
	tb.Helper()
	sv := &domain.ScriptVersion{ProjectID: projectID, Version: version, ScriptText: text}
	if err := db.Create(sv).Error; err != nil {
		tb.Fatalf("seed script: %v", err)
	}
	return sv
}

func ReloadJob(tb testing.TB, db *gorm.DB, id uuid.UUID) *domain.Job {
	tb.Helper()
	var j domain.Job
	if err := db.First(&j, "id = ?", id).Error; err != nil {
		tb.Fatalf("reload job: %v", err)
	}
	return &j
}
