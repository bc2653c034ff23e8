package domain

import (
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain/jobs"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain/projects"
)

type Job = jobs.Job
type JobType = jobs.JobType
type JobStatus = jobs.Status

type Project = projects.Project
type ScaleReference = projects.ScaleReference
type ExtractionResult = projects.ExtractionResult
type ScriptVersion = projects.ScriptVersion
type Asset = projects.Asset
type AssetType = projects.AssetType
type Dimension = projects.Dimension
type Feature = projects.Feature

// Models returns every persisted row type, in migration order.
func Models() []any {
	return []any{
		&Project{},
		&ScaleReference{},
		&ExtractionResult{},
		&ScriptVersion{},
		&Asset{},
		&Job{},
	}
}
