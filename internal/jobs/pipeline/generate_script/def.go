package generate_script

import (
	"gorm.io/gorm"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/data/repos"
	domainjobs "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain/jobs"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
)

type Pipeline struct {
	db          *gorm.DB
	log         *logger.Logger
	extractions repos.ExtractionResultRepo
	scripts     repos.ScriptVersionRepo
}

func New(
	db *gorm.DB,
	baseLog *logger.Logger,
	extractions repos.ExtractionResultRepo,
	scripts repos.ScriptVersionRepo,
) *Pipeline {
	return &Pipeline{
		db:          db,
		log:         baseLog.With("job", "generate_script"),
		extractions: extractions,
		scripts:     scripts,
	}
}

func (p *Pipeline) Type() domainjobs.JobType { return domainjobs.JobTypeGenerateScript }
