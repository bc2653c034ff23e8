package run_blender

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/data/repos"
	repotest "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/data/repos/testutil"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain"
	domainjobs "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain/jobs"
	domainprojects "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain/projects"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/jobs/pipeline/extract"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/jobs/pipeline/generate_script"
	jobrt "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/jobs/runtime"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/modules/modeling"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/observability"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/dbctx"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/platform/procrun"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/platform/storage"
)

// fakeRunner stands in for the blender binary. It records each command and lets the test
// decide which files appear in the working directory.
type fakeRunner struct {
	mu      sync.Mutex
	cmds    []procrun.Command
	write   []string
	content string
	res     procrun.Result
	err     error
}

func (r *fakeRunner) Run(_ context.Context, cmd procrun.Command) (procrun.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, cmd)
	content := r.content
	if content == "" {
		content = "solid cube\n"
	}
	for _, name := range r.write {
		if err := os.WriteFile(filepath.Join(cmd.Dir, name), []byte(content), 0o644); err != nil {
			return procrun.Result{}, err
		}
	}
	return r.res, r.err
}

type fixture struct {
	db       *gorm.DB
	set      repos.Set
	notify   *repotest.RecordingNotifier
	metrics  *observability.Metrics
	runner   *fakeRunner
	cfg      modeling.BlenderConfig
	registry *jobrt.Registry
	exec     *jobrt.Executor
	project  *domain.Project
}

func newFixture(t *testing.T, store storage.BlobStore) *fixture {
	t.Helper()
	db := repotest.DB(t)
	log := repotest.Logger(t)
	f := &fixture{
		db:       db,
		set:      repos.NewSet(db, log),
		notify:   &repotest.RecordingNotifier{},
		metrics:  observability.NewMetrics(""),
		runner:   &fakeRunner{},
		registry: jobrt.NewRegistry(),
		cfg: modeling.BlenderConfig{
			ExecMode: modeling.ExecModeServerHeadless,
			Path:     "blender",
			Workdir:  t.TempDir(),
		},
	}
	f.project = repotest.SeedProject(t, db, "bracket")
	f.exec = jobrt.NewExecutor(db, log, f.set.Jobs, f.registry, f.notify, f.metrics)
	require.NoError(t, f.registry.Register(New(db, log, f.set.Scripts, f.set.Assets, f.runner, store, f.metrics, f.cfg)))
	return f
}

func (f *fixture) outputName() string { return modeling.OutputFileName(f.project.ID.String(), "stl") }
func (f *fixture) renderName() string { return modeling.RenderFileName(f.project.ID.String()) }

func (f *fixture) workdir() string {
	return modeling.ProjectWorkdir(f.cfg.Workdir, f.project.ID.String())
}

func (f *fixture) run(t *testing.T) (*domain.Job, map[string]any) {
	t.Helper()
	job := repotest.SeedJob(t, f.db, f.project.ID, domainjobs.JobTypeRunBlender, "")
	require.NoError(t, f.exec.Execute(context.Background(), job.ID))
	job = repotest.ReloadJob(t, f.db, job.ID)
	result := map[string]any{}
	if len(job.Result) > 0 {
		require.NoError(t, json.Unmarshal(job.Result, &result))
	}
	return job, result
}

func (f *fixture) assets(t *testing.T) []*domain.Asset {
	t.Helper()
	list, err := f.set.Assets.ListByProject(dbctx.Context{Ctx: context.Background()}, f.project.ID, repos.AssetFilter{})
	require.NoError(t, err)
	return list
}

func assertProcessRun(t *testing.T, m *observability.Metrics, outcome string) {
	t.Helper()
	expected := `
# HELP process_runs_total External tool invocations by outcome.
# TYPE process_runs_total counter
process_runs_total{outcome="` + outcome + `"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "process_runs_total"))
}

func TestRunBlender_RegistersModelAndRender(t *testing.T) {
	f := newFixture(t, nil)
	repotest.SeedScript(t, f.db, f.project.ID, 1, "import bpy\n")
	repotest.SeedScript(t, f.db, f.project.ID, 2, "import bpy\n# v2\n")
	f.runner.write = []string{f.outputName(), f.renderName()}
	f.runner.res = procrun.Result{Stdout: "Blender quit\n"}

	job, result := f.run(t)

	require.Equal(t, domainjobs.StatusSucceeded, job.Status, job.Message)
	assert.Equal(t, MsgSucceeded, job.Message)
	assert.Equal(t, 100, job.Progress)

	require.Len(t, f.runner.cmds, 1)
	cmd := f.runner.cmds[0]
	scriptPath := filepath.Join(f.workdir(), "script_v2.py")
	assert.Equal(t, []string{"-b", "-P", scriptPath}, cmd.Args)
	assert.Equal(t, f.workdir(), cmd.Dir)
	assert.Equal(t, modeling.DefaultBlenderTimeout, cmd.Timeout)
	written, err := os.ReadFile(scriptPath)
	require.NoError(t, err)
	assert.Equal(t, "import bpy\n# v2\n", string(written))

	assets := f.assets(t)
	require.Len(t, assets, 2)
	byType := map[domainprojects.AssetType]*domain.Asset{}
	for _, a := range assets {
		require.NotNil(t, a.JobID)
		assert.Equal(t, job.ID, *a.JobID)
		byType[a.AssetType] = a
	}
	model := byType[domainprojects.AssetTypeModel3D]
	render := byType[domainprojects.AssetTypeImage]
	require.NotNil(t, model)
	require.NotNil(t, render)
	assert.Equal(t, "model/stl", model.ContentType)
	assert.Equal(t, "image/png", render.ContentType)
	assert.Equal(t, filepath.Join(f.workdir(), "jobs", job.ID.String(), f.outputName()), model.StoragePath)
	assert.Equal(t, storage.ModeLocal, model.StorageBackend)
	assert.EqualValues(t, len("solid cube\n"), model.SizeBytes)

	assert.Equal(t, model.ID.String(), result["result_asset_id"])
	assert.Equal(t, render.ID.String(), result["render_asset_id"])
	assert.Equal(t, model.StoragePath, result["output_file"])
	assert.Equal(t, render.StoragePath, result["render_file"])
	assert.EqualValues(t, 0, result["returncode"])
	assert.EqualValues(t, 2, result["script_version"])
	assert.Equal(t, "Blender quit\n", result["stdout"])

	assertProcessRun(t, f.metrics, observability.ProcessOK)
}

func TestRunBlender_RenderIsOptional(t *testing.T) {
	f := newFixture(t, nil)
	repotest.SeedScript(t, f.db, f.project.ID, 1, "import bpy\n")
	f.runner.write = []string{f.outputName()}

	job, result := f.run(t)

	require.Equal(t, domainjobs.StatusSucceeded, job.Status, job.Message)
	assets := f.assets(t)
	require.Len(t, assets, 1)
	assert.Equal(t, domainprojects.AssetTypeModel3D, assets[0].AssetType)
	assert.Nil(t, result["render_asset_id"])
	assert.Nil(t, result["render_file"])
}

func TestRunBlender_CopiesOutputsToStore(t *testing.T) {
	root := t.TempDir()
	store, err := storage.NewLocalStore(repotest.Logger(t), filepath.Join(root, "uploads"), filepath.Join(root, "outputs"))
	require.NoError(t, err)
	f := newFixture(t, store)
	repotest.SeedScript(t, f.db, f.project.ID, 1, "import bpy\n")
	f.runner.write = []string{f.outputName()}

	job, _ := f.run(t)

	require.Equal(t, domainjobs.StatusSucceeded, job.Status, job.Message)
	assets := f.assets(t)
	require.Len(t, assets, 1)
	want := filepath.Join(root, "outputs", f.project.ID.String(), job.ID.String(), f.outputName())
	assert.Equal(t, want, assets[0].StoragePath)
	assert.EqualValues(t, len("solid cube\n"), assets[0].SizeBytes)
	_, err = os.Stat(want)
	assert.NoError(t, err)
}

func TestRunBlender_EarlierAssetsSurviveLaterRuns(t *testing.T) {
	newLocalStore := func(t *testing.T) storage.BlobStore {
		root := t.TempDir()
		store, err := storage.NewLocalStore(repotest.Logger(t), filepath.Join(root, "uploads"), filepath.Join(root, "outputs"))
		require.NoError(t, err)
		return store
	}
	cases := []struct {
		name  string
		store func(t *testing.T) storage.BlobStore
	}{
		{"workdir copy", func(*testing.T) storage.BlobStore { return nil }},
		{"local store", newLocalStore},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.store(t))
			repotest.SeedScript(t, f.db, f.project.ID, 1, "import bpy\n")
			f.runner.write = []string{f.outputName()}
			f.runner.content = "solid first\n"

			first, _ := f.run(t)
			require.Equal(t, domainjobs.StatusSucceeded, first.Status, first.Message)
			assets := f.assets(t)
			require.Len(t, assets, 1)
			firstAsset := assets[0]

			// A failed run clears the workdir output before Blender starts.
			f.runner.res = procrun.Result{ExitCode: 1}
			failed, _ := f.run(t)
			require.Equal(t, domainjobs.StatusFailed, failed.Status)
			got, err := os.ReadFile(firstAsset.StoragePath)
			require.NoError(t, err)
			assert.Equal(t, "solid first\n", string(got))

			// A later successful run gets its own file.
			f.runner.res = procrun.Result{}
			f.runner.content = "solid third\n"
			third, _ := f.run(t)
			require.Equal(t, domainjobs.StatusSucceeded, third.Status, third.Message)
			got, err = os.ReadFile(firstAsset.StoragePath)
			require.NoError(t, err)
			assert.Equal(t, "solid first\n", string(got))

			assets = f.assets(t)
			require.Len(t, assets, 2)
			for _, a := range assets {
				if a.ID == firstAsset.ID {
					continue
				}
				assert.NotEqual(t, firstAsset.StoragePath, a.StoragePath)
				latest, err := os.ReadFile(a.StoragePath)
				require.NoError(t, err)
				assert.Equal(t, "solid third\n", string(latest))
			}
		})
	}
}

func TestRunBlender_ExitZeroWithoutOutputFails(t *testing.T) {
	f := newFixture(t, nil)
	repotest.SeedScript(t, f.db, f.project.ID, 1, "import bpy\n")
	// Left over from an earlier run; must not be mistaken for this run's output.
	require.NoError(t, os.MkdirAll(f.workdir(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.workdir(), f.outputName()), []byte("old"), 0o644))

	job, result := f.run(t)

	assert.Equal(t, domainjobs.StatusFailed, job.Status)
	assert.Equal(t, MsgNoOutput, job.Message)
	assert.Equal(t, "verify", job.Stage)
	assert.EqualValues(t, 0, result["returncode"])
	assert.Empty(t, f.assets(t))
	assertProcessRun(t, f.metrics, observability.ProcessNoOutput)
}

func TestRunBlender_NonZeroExitFails(t *testing.T) {
	f := newFixture(t, nil)
	repotest.SeedScript(t, f.db, f.project.ID, 1, "import bpy\n")
	f.runner.write = []string{f.outputName()}
	f.runner.res = procrun.Result{ExitCode: 2, Stderr: strings.Repeat("x", 3000) + "Traceback"}

	job, result := f.run(t)

	assert.Equal(t, domainjobs.StatusFailed, job.Status)
	assert.Equal(t, "Blender failed with return code 2", job.Message)
	assert.EqualValues(t, 2, result["returncode"])
	stderr, _ := result["stderr"].(string)
	assert.Len(t, stderr, 2000)
	assert.True(t, strings.HasSuffix(stderr, "Traceback"))
	assert.Empty(t, f.assets(t))
}

func TestRunBlender_TimeoutFails(t *testing.T) {
	f := newFixture(t, nil)
	repotest.SeedScript(t, f.db, f.project.ID, 1, "import bpy\n")
	f.runner.write = []string{f.outputName()}
	f.runner.err = procrun.ErrTimeout

	job, result := f.run(t)

	assert.Equal(t, domainjobs.StatusFailed, job.Status)
	assert.Equal(t, "Blender execution timed out (>5min)", job.Message)
	v, ok := result["returncode"]
	assert.True(t, ok)
	assert.Nil(t, v)
	assert.Empty(t, f.assets(t))
	assertProcessRun(t, f.metrics, observability.ProcessTimeout)
}

func TestRunBlender_ExecutableNotFound(t *testing.T) {
	f := newFixture(t, nil)
	repotest.SeedScript(t, f.db, f.project.ID, 1, "import bpy\n")
	f.runner.err = procrun.ErrExecutableNotFound

	job, _ := f.run(t)

	assert.Equal(t, domainjobs.StatusFailed, job.Status)
	assert.Equal(t, "Blender executable not found: blender", job.Message)
}

func TestRunBlender_MissingScriptFails(t *testing.T) {
	f := newFixture(t, nil)

	job, _ := f.run(t)

	assert.Equal(t, domainjobs.StatusFailed, job.Status)
	assert.Equal(t, MsgNoScript, job.Message)
	assert.Empty(t, f.runner.cmds)
}

func TestRunBlender_RequiresHeadlessMode(t *testing.T) {
	db := repotest.DB(t)
	log := repotest.Logger(t)
	set := repos.NewSet(db, log)
	runner := &fakeRunner{}
	reg := jobrt.NewRegistry()
	cfg := modeling.BlenderConfig{ExecMode: "mcp_gui", Path: "blender", Workdir: t.TempDir()}
	require.NoError(t, reg.Register(New(db, log, set.Scripts, set.Assets, runner, nil, nil, cfg)))
	exec := jobrt.NewExecutor(db, log, set.Jobs, reg, &repotest.RecordingNotifier{}, nil)
	project := repotest.SeedProject(t, db, "p")
	repotest.SeedScript(t, db, project.ID, 1, "import bpy\n")
	job := repotest.SeedJob(t, db, project.ID, domainjobs.JobTypeRunBlender, "")

	require.NoError(t, exec.Execute(context.Background(), job.ID))

	job = repotest.ReloadJob(t, db, job.ID)
	assert.Equal(t, domainjobs.StatusFailed, job.Status)
	assert.Equal(t, "Blender execution mode is 'mcp_gui', not 'server_headless'", job.Message)
	assert.Empty(t, runner.cmds)
}

func TestPipeline_ReferenceToModel(t *testing.T) {
	f := newFixture(t, nil)
	log := repotest.Logger(t)
	require.NoError(t, f.registry.Register(extract.New(f.db, log, f.set.ScaleRefs, f.set.Extractions)))
	require.NoError(t, f.registry.Register(generate_script.New(f.db, log, f.set.Extractions, f.set.Scripts)))
	repotest.SeedScaleReference(t, f.db, f.project.ID, "overall_length_mm", 120)
	f.runner.write = []string{f.outputName(), f.renderName()}

	ctx := context.Background()
	for _, jt := range domainjobs.JobTypes {
		job := repotest.SeedJob(t, f.db, f.project.ID, jt, "")
		require.NoError(t, f.exec.Execute(ctx, job.ID))
		job = repotest.ReloadJob(t, f.db, job.ID)
		require.Equal(t, domainjobs.StatusSucceeded, job.Status, "%s: %s", jt, job.Message)
	}

	sv, err := f.set.Scripts.GetLatest(dbctx.Context{Ctx: ctx}, f.project.ID)
	require.NoError(t, err)
	require.NotNil(t, sv)
	assert.Contains(t, sv.ScriptText, "L = 120.0\n")
	assert.Contains(t, sv.ScriptText, "W = 54.0\n")
	assert.Len(t, f.assets(t), 2)

	kinds := f.notify.Kinds()
	require.NotEmpty(t, kinds)
	assert.Equal(t, domainjobs.EventSucceeded, kinds[len(kinds)-1])
	assert.NotEqual(t, uuid.Nil, sv.ID)
}
