package extract

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
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/dbctx"
)

func setup(t *testing.T) (*gorm.DB, repos.Set, *jobrt.Executor, *domain.Project) {
	t.Helper()
	db := repotest.DB(t)
	log := repotest.Logger(t)
	set := repos.NewSet(db, log)
	reg := jobrt.NewRegistry()
	require.NoError(t, reg.Register(New(db, log, set.ScaleRefs, set.Extractions)))
	exec := jobrt.NewExecutor(db, log, set.Jobs, reg, &repotest.RecordingNotifier{}, nil)
	return db, set, exec, repotest.SeedProject(t, db, "plate")
}

func runJob(t *testing.T, db *gorm.DB, exec *jobrt.Executor, projectID domain.Project) (*domain.Job, map[string]any) {
	t.Helper()
	job := repotest.SeedJob(t, db, projectID.ID, domainjobs.JobTypeExtract, "")
	require.NoError(t, exec.Execute(context.Background(), job.ID))
	job = repotest.ReloadJob(t, db, job.ID)
	result := map[string]any{}
	if len(job.Result) > 0 {
		require.NoError(t, json.Unmarshal(job.Result, &result))
	}
	return job, result
}

func TestExtract_CreatesVersionedResults(t *testing.T) {
	db, set, exec, project := setup(t)
	repotest.SeedScaleReference(t, db, project.ID, "overall_length_mm", 120)

	job, result := runJob(t, db, exec, *project)

	require.Equal(t, domainjobs.StatusSucceeded, job.Status, job.Message)
	assert.Equal(t, "Extraction completed. Version 1 created.", job.Message)
	assert.Equal(t, 100, job.Progress)
	assert.EqualValues(t, 1, result["version"])
	assert.EqualValues(t, 4, result["dimensions_count"])

	latest, err := set.Extractions.GetLatest(dbctx.Context{Ctx: context.Background()}, project.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, latest.ID.String(), result["extraction_result_id"])
	require.NotNil(t, latest.JobID)
	assert.Equal(t, job.ID, *latest.JobID)
	assert.Len(t, latest.Features, 3)
	assert.Len(t, latest.Tasks, 4)

	job, result = runJob(t, db, exec, *project)
	require.Equal(t, domainjobs.StatusSucceeded, job.Status, job.Message)
	assert.Equal(t, "Extraction completed. Version 2 created.", job.Message)
	assert.EqualValues(t, 2, result["version"])

	all, err := set.Extractions.ListByProject(dbctx.Context{Ctx: context.Background()}, project.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestExtract_FailsWithoutReference(t *testing.T) {
	db, set, exec, project := setup(t)

	job, _ := runJob(t, db, exec, *project)

	assert.Equal(t, domainjobs.StatusFailed, job.Status)
	assert.Equal(t, MsgNoReference, job.Message)
	assert.NotNil(t, job.FinishedAt)

	latest, err := set.Extractions.GetLatest(dbctx.Context{Ctx: context.Background()}, project.ID)
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestExtract_RedeliveryDoesNotAddVersion(t *testing.T) {
	db, set, exec, project := setup(t)
	repotest.SeedScaleReference(t, db, project.ID, "overall_length_mm", 80)

	job, _ := runJob(t, db, exec, *project)
	require.Equal(t, domainjobs.StatusSucceeded, job.Status)
	require.NoError(t, exec.Execute(context.Background(), job.ID))

	all, err := set.Extractions.ListByProject(dbctx.Context{Ctx: context.Background()}, project.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
