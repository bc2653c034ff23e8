package repos

import (
	"gorm.io/gorm"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/data/repos/jobs"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/data/repos/projects"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
)

type JobRepo = jobs.JobRepo
type JobFilter = jobs.JobFilter

const MaxJobListLimit = jobs.MaxListLimit

type ProjectRepo = projects.ProjectRepo
type ScaleReferenceRepo = projects.ScaleReferenceRepo
type ExtractionResultRepo = projects.ExtractionResultRepo
type ScriptVersionRepo = projects.ScriptVersionRepo
type AssetRepo = projects.AssetRepo
type AssetFilter = projects.AssetFilter

var ErrVersionConflict = projects.ErrVersionConflict

func NewJobRepo(db *gorm.DB, baseLog *logger.Logger) JobRepo { return jobs.NewJobRepo(db, baseLog) }

func NewProjectRepo(db *gorm.DB, baseLog *logger.Logger) ProjectRepo {
	return projects.NewProjectRepo(db, baseLog)
}
func NewScaleReferenceRepo(db *gorm.DB, baseLog *logger.Logger) ScaleReferenceRepo {
	return projects.NewScaleReferenceRepo(db, baseLog)
}
func NewExtractionResultRepo(db *gorm.DB, baseLog *logger.Logger) ExtractionResultRepo {
	return projects.NewExtractionResultRepo(db, baseLog)
}
func NewScriptVersionRepo(db *gorm.DB, baseLog *logger.Logger) ScriptVersionRepo {
	return projects.NewScriptVersionRepo(db, baseLog)
}
func NewAssetRepo(db *gorm.DB, baseLog *logger.Logger) AssetRepo {
	return projects.NewAssetRepo(db, baseLog)
}

// Set is every repo the pipeline needs, sharing one gorm handle.
type Set struct {
	Jobs        JobRepo
	Projects    ProjectRepo
	ScaleRefs   ScaleReferenceRepo
	Extractions ExtractionResultRepo
	Scripts     ScriptVersionRepo
	Assets      AssetRepo
}

func NewSet(db *gorm.DB, baseLog *logger.Logger) Set {
	return Set{
		Jobs:        NewJobRepo(db, baseLog),
		Projects:    NewProjectRepo(db, baseLog),
		ScaleRefs:   NewScaleReferenceRepo(db, baseLog),
		Extractions: NewExtractionResultRepo(db, baseLog),
		Scripts:     NewScriptVersionRepo(db, baseLog),
		Assets:      NewAssetRepo(db, baseLog),
	}
}
