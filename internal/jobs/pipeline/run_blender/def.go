package run_blender

import (
	"gorm.io/gorm"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/data/repos"
	domainjobs "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain/jobs"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/modules/modeling"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/observability"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/platform/procrun"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/platform/storage"
)

type Pipeline struct {
	db      *gorm.DB
	log     *logger.Logger
	scripts repos.ScriptVersionRepo
	assets  repos.AssetRepo
	runner  procrun.Runner
	store   storage.BlobStore
	metrics *observability.Metrics
	cfg     modeling.BlenderConfig
}

// New wires the run_blender executor. store receives per-job copies of the produced files;
// with nil the copies stay under the working directory.
func New(
	db *gorm.DB,
	baseLog *logger.Logger,
	scripts repos.ScriptVersionRepo,
	assets repos.AssetRepo,
	runner procrun.Runner,
	store storage.BlobStore,
	metrics *observability.Metrics,
	cfg modeling.BlenderConfig,
) *Pipeline {
	return &Pipeline{
		db:      db,
		log:     baseLog.With("job", "run_blender"),
		scripts: scripts,
		assets:  assets,
		runner:  runner,
		store:   store,
		metrics: metrics,
		cfg:     cfg,
	}
}

func (p *Pipeline) Type() domainjobs.JobType { return domainjobs.JobTypeRunBlender }
