package extract

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/data/repos"
	types "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain"
	jobrt "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/jobs/runtime"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/modules/modeling"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/dbctx"
)

const MsgNoReference = "Scale reference not set. Please set reference dimension first."

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	projectID := jc.ProjectID()

	jc.Progress("load_reference", 10, "Loading scale reference")
	ref, err := p.scaleRefs.GetByProject(dbctx.Context{Ctx: jc.Ctx}, projectID)
	if err != nil {
		return jobrt.Retryable(fmt.Errorf("load scale reference: %w", err))
	}
	if ref == nil {
		return jc.Fail("load_reference", MsgNoReference, nil)
	}

	jc.Progress("estimate", 50, "Estimating dimensions")
	est, err := modeling.EstimateFromReference(ref.ReferenceName, ref.ReferenceValue, ref.Unit)
	if err != nil {
		return jc.Fail("estimate", err.Error(), nil)
	}

	jobID := jc.Job.ID
	err = jc.Commit("done", func(tx *gorm.DB) (jobrt.Outcome, error) {
		er := &types.ExtractionResult{
			ProjectID:  projectID,
			JobID:      &jobID,
			Dimensions: est.Dimensions,
			Features:   est.Features,
			Tasks:      est.Tasks,
		}
		if err := p.extractions.CreateNextVersion(dbctx.Context{Ctx: jc.Ctx, Tx: tx}, er); err != nil {
			if errors.Is(err, repos.ErrVersionConflict) {
				return jobrt.Outcome{}, err
			}
			return jobrt.Outcome{}, jobrt.Retryable(err)
		}
		return jobrt.Outcome{
			Message: fmt.Sprintf("Extraction completed. Version %d created.", er.Version),
			Result: map[string]any{
				"extraction_result_id": er.ID,
				"version":              er.Version,
				"dimensions_count":     len(er.Dimensions),
			},
		}, nil
	})
	if errors.Is(err, repos.ErrVersionConflict) {
		return jc.Fail("persist", err.Error(), nil)
	}
	return err
}
