package generate_script

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/data/repos"
	repotest "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/data/repos/testutil"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain"
	domainjobs "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain/jobs"
	jobrt "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/jobs/runtime"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/modules/modeling"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/dbctx"
)

type env struct {
	db      *gorm.DB
	set     repos.Set
	exec    *jobrt.Executor
	project *domain.Project
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := repotest.DB(t)
	log := repotest.Logger(t)
	set := repos.NewSet(db, log)
	reg := jobrt.NewRegistry()
	require.NoError(t, reg.Register(New(db, log, set.Extractions, set.Scripts)))
	return &env{
		db:      db,
		set:     set,
		exec:    jobrt.NewExecutor(db, log, set.Jobs, reg, &repotest.RecordingNotifier{}, nil),
		project: repotest.SeedProject(t, db, "flange"),
	}
}

func (e *env) seedEstimate(t *testing.T, length float64) *domain.ExtractionResult {
	t.Helper()
	est, err := modeling.EstimateFromReference(modeling.DimOverallLengthMM, length, "mm")
	require.NoError(t, err)
	return repotest.SeedExtraction(t, e.db, e.project.ID, 1, est.Dimensions...)
}

func (e *env) run(t *testing.T, params string) (*domain.Job, map[string]any) {
	t.Helper()
	job := repotest.SeedJob(t, e.db, e.project.ID, domainjobs.JobTypeGenerateScript, params)
	require.NoError(t, e.exec.Execute(context.Background(), job.ID))
	job = repotest.ReloadJob(t, e.db, job.ID)
	result := map[string]any{}
	if len(job.Result) > 0 {
		require.NoError(t, json.Unmarshal(job.Result, &result))
	}
	return job, result
}

func (e *env) latest(t *testing.T) *domain.ScriptVersion {
	t.Helper()
	sv, err := e.set.Scripts.GetLatest(dbctx.Context{Ctx: context.Background()}, e.project.ID)
	require.NoError(t, err)
	return sv
}

func TestGenerateScript_FromEstimate(t *testing.T) {
	e := newEnv(t)
	ext := e.seedEstimate(t, 120)

	job, result := e.run(t, "")

	require.Equal(t, domainjobs.StatusSucceeded, job.Status, job.Message)
	assert.Equal(t, "Script version 1 generated successfully.", job.Message)

	sv := e.latest(t)
	require.NotNil(t, sv)
	assert.Equal(t, 1, sv.Version)
	require.NotNil(t, sv.JobID)
	assert.Equal(t, job.ID, *sv.JobID)
	for _, want := range []string{"L = 120.0\n", "W = 54.0\n", "T = 9.6\n", "HOLE_D = 9.6\n", "HOLE_COUNT = 8\n", "FILLET_R = 2.4\n"} {
		assert.Contains(t, sv.ScriptText, want)
	}
	assert.Contains(t, sv.ScriptText, "output_"+e.project.ID.String()+".stl")

	assert.Equal(t, sv.ID.String(), result["script_id"])
	assert.EqualValues(t, 1, result["version"])
	assert.EqualValues(t, len(sv.ScriptText), result["script_length"])
	assert.Equal(t, []any{}, result["defaults_used"])

	var stored map[string]any
	require.NoError(t, json.Unmarshal(sv.Params, &stored))
	assert.Equal(t, ext.ID.String(), stored["extraction_result_id"])
	assert.EqualValues(t, 120, stored["length"])
	assert.EqualValues(t, 8, stored["hole_count"])
}

func TestGenerateScript_OverridesWin(t *testing.T) {
	e := newEnv(t)
	e.seedEstimate(t, 120)

	job, _ := e.run(t, `{"thickness": 3, "hole_count": 0, "fillet_radius": 0}`)

	require.Equal(t, domainjobs.StatusSucceeded, job.Status, job.Message)
	sv := e.latest(t)
	require.NotNil(t, sv)
	assert.Contains(t, sv.ScriptText, "T = 3.0\n")
	assert.NotContains(t, sv.ScriptText, "type='BOOLEAN'")
	assert.NotContains(t, sv.ScriptText, "type='BEVEL'")
}

func TestGenerateScript_ReportsDefaultsForSparseExtraction(t *testing.T) {
	e := newEnv(t)
	repotest.SeedExtraction(t, e.db, e.project.ID, 1)

	job, result := e.run(t, "")

	require.Equal(t, domainjobs.StatusSucceeded, job.Status, job.Message)
	used, _ := result["defaults_used"].([]any)
	assert.Contains(t, used, "length")
	assert.Contains(t, used, "thickness")
}

func TestGenerateScript_FailsWithoutExtraction(t *testing.T) {
	e := newEnv(t)

	job, _ := e.run(t, "")

	assert.Equal(t, domainjobs.StatusFailed, job.Status)
	assert.Equal(t, MsgNoExtraction, job.Message)
	assert.Nil(t, e.latest(t))
}

func TestGenerateScript_InvalidParamsFail(t *testing.T) {
	e := newEnv(t)
	e.seedEstimate(t, 120)

	job, _ := e.run(t, `{"thickness": -2}`)

	assert.Equal(t, domainjobs.StatusFailed, job.Status)
	assert.Equal(t, "params", job.Stage)
	assert.Contains(t, job.Message, "thickness")
	assert.Nil(t, e.latest(t))
}

func TestGenerateScript_VersionsIncrease(t *testing.T) {
	e := newEnv(t)
	e.seedEstimate(t, 60)

	for want := 1; want <= 3; want++ {
		job, result := e.run(t, "")
		require.Equal(t, domainjobs.StatusSucceeded, job.Status, job.Message)
		assert.EqualValues(t, want, result["version"])
	}
}
