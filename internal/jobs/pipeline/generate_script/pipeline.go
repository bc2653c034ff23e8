package generate_script

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/data/repos"
	types "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain"
	jobrt "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/jobs/runtime"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/modules/modeling"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/dbctx"
)

const MsgNoExtraction = "No extraction result found. Run extraction first."

// scriptParams is stored on the script version so a script can be traced back to its inputs.
type scriptParams struct {
	modeling.BuildParams
	ExtractionResultID string   `json:"extraction_result_id"`
	ExtractionVersion  int      `json:"extraction_version"`
	DefaultsUsed       []string `json:"defaults_used"`
}

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	projectID := jc.ProjectID()

	jc.Progress("load_extraction", 10, "Loading extraction result")
	ext, err := p.extractions.GetLatest(dbctx.Context{Ctx: jc.Ctx}, projectID)
	if err != nil {
		return jobrt.Retryable(fmt.Errorf("load extraction: %w", err))
	}
	if ext == nil {
		return jc.Fail("load_extraction", MsgNoExtraction, nil)
	}

	overrides, err := modeling.ParseOverrides(jc.Payload())
	if err != nil {
		return jc.Fail("params", err.Error(), nil)
	}

	jc.Progress("generate", 40, "Generating Blender script")
	params, defaultsUsed := modeling.ResolveBuildParams(ext.Dimensions, overrides)
	if defaultsUsed == nil {
		defaultsUsed = []string{}
	}
	if len(defaultsUsed) > 0 {
		p.log.Warn("extraction incomplete, synthetic defaults used",
			"project_id", projectID,
			"extraction_version", ext.Version,
			"defaults_used", defaultsUsed,
		)
	}
	text := modeling.RenderBlenderScript(params, projectID.String())

	stored, err := json.Marshal(scriptParams{
		BuildParams:        params,
		ExtractionResultID: ext.ID.String(),
		ExtractionVersion:  ext.Version,
		DefaultsUsed:       defaultsUsed,
	})
	if err != nil {
		return jc.Fail("generate", err.Error(), nil)
	}

	jobID := jc.Job.ID
	err = jc.Commit("done", func(tx *gorm.DB) (jobrt.Outcome, error) {
		sv := &types.ScriptVersion{
			ProjectID:  projectID,
			JobID:      &jobID,
			ScriptText: text,
			Params:     datatypes.JSON(stored),
		}
		if err := p.scripts.CreateNextVersion(dbctx.Context{Ctx: jc.Ctx, Tx: tx}, sv); err != nil {
			if errors.Is(err, repos.ErrVersionConflict) {
				return jobrt.Outcome{}, err
			}
			return jobrt.Outcome{}, jobrt.Retryable(err)
		}
		return jobrt.Outcome{
			Message: fmt.Sprintf("Script version %d generated successfully.", sv.Version),
			Result: map[string]any{
				"script_id":     sv.ID,
				"version":       sv.Version,
				"script_length": len(text),
				"defaults_used": defaultsUsed,
			},
		}, nil
	})
	if errors.Is(err, repos.ErrVersionConflict) {
		return jc.Fail("persist", err.Error(), nil)
	}
	return err
}
