package extract

import (
	"gorm.io/gorm"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/data/repos"
	domainjobs "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain/jobs"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
)

type Pipeline struct {
	db          *gorm.DB
	log         *logger.Logger
	scaleRefs   repos.ScaleReferenceRepo
	extractions repos.ExtractionResultRepo
}

func New(
	db *gorm.DB,
	baseLog *logger.Logger,
	scaleRefs repos.ScaleReferenceRepo,
	extractions repos.ExtractionResultRepo,
) *Pipeline {
	return &Pipeline{
		db:          db,
		log:         baseLog.With("job", "extract"),
		scaleRefs:   scaleRefs,
		extractions: extractions,
	}
}

func (p *Pipeline) Type() domainjobs.JobType { return domainjobs.JobTypeExtract }
