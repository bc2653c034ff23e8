package run_blender

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	types "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain"
	domainprojects "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain/projects"
	jobrt "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/jobs/runtime"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/modules/modeling"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/observability"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/dbctx"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/platform/procrun"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/platform/storage"
)

const (
	MsgNoScript  = "No script found. Generate script first."
	MsgNoOutput  = "Blender exited successfully but produced no output file"
	MsgSucceeded = "Blender execution completed successfully."

	outputTail = 2000
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	if !p.cfg.Headless() {
		return jc.Fail("config", p.cfg.ModeMessage(), nil)
	}
	projectID := jc.ProjectID()
	pid := projectID.String()

	jc.Progress("prepare", 10, "Preparing Blender script")
	sv, err := p.scripts.GetLatest(dbctx.Context{Ctx: jc.Ctx}, projectID)
	if err != nil {
		return jobrt.Retryable(fmt.Errorf("load script: %w", err))
	}
	if sv == nil {
		return jc.Fail("prepare", MsgNoScript, nil)
	}

	workdir, err := filepath.Abs(modeling.ProjectWorkdir(p.cfg.Workdir, pid))
	if err != nil {
		return jc.Fail("prepare", err.Error(), nil)
	}
	scriptPath := filepath.Join(workdir, modeling.ScriptFileName(sv.Version))
	outputName := modeling.OutputFileName(pid, modeling.ExportFormatSTL)
	renderName := modeling.RenderFileName(pid)
	outputPath := filepath.Join(workdir, outputName)
	renderPath := filepath.Join(workdir, renderName)

	if err := os.MkdirAll(workdir, 0o755); err != nil {
		return jc.Fail("prepare", fmt.Sprintf("create workdir: %v", err), nil)
	}
	if err := os.WriteFile(scriptPath, []byte(sv.ScriptText), 0o644); err != nil {
		return jc.Fail("prepare", fmt.Sprintf("write script: %v", err), nil)
	}
	// Outputs of an earlier run must not pass for this run's output.
	for _, stale := range []string{outputPath, renderPath} {
		if err := os.Remove(stale); err != nil && !errors.Is(err, os.ErrNotExist) {
			return jc.Fail("prepare", fmt.Sprintf("clear previous output: %v", err), nil)
		}
	}

	jc.Progress("run", 30, "Running Blender headless...")
	timeout := p.cfg.RunTimeout()
	res, runErr := p.runBlender(jc.Ctx, scriptPath, workdir, timeout, sv.Version)
	diag := map[string]any{
		"returncode":     res.ExitCode,
		"stdout":         procrun.Tail(res.Stdout, outputTail),
		"stderr":         procrun.Tail(res.Stderr, outputTail),
		"script_version": sv.Version,
	}

	switch {
	case errors.Is(runErr, procrun.ErrTimeout):
		p.metrics.ProcessRun(observability.ProcessTimeout)
		diag["returncode"] = nil
		return jc.Fail("run", fmt.Sprintf("Blender execution timed out (>%s)", modeling.TimeoutLabel(timeout)), diag)
	case errors.Is(runErr, procrun.ErrExecutableNotFound):
		p.metrics.ProcessRun(observability.ProcessNotFound)
		return jc.Fail("run", "Blender executable not found: "+p.cfg.Path, diag)
	case runErr != nil && jc.Ctx.Err() != nil:
		// Worker shutdown: leave the job running so the delivery is retried.
		return jobrt.Retryable(runErr)
	case runErr != nil:
		p.metrics.ProcessRun(observability.ProcessFailed)
		return jc.Fail("run", runErr.Error(), diag)
	case res.ExitCode != 0:
		p.metrics.ProcessRun(observability.ProcessFailed)
		return jc.Fail("run", fmt.Sprintf("Blender failed with return code %d", res.ExitCode), diag)
	}

	outInfo, err := os.Stat(outputPath)
	if err != nil || outInfo.IsDir() {
		p.metrics.ProcessRun(observability.ProcessNoOutput)
		return jc.Fail("verify", MsgNoOutput, diag)
	}
	p.metrics.ProcessRun(observability.ProcessOK)
	renderInfo, err := os.Stat(renderPath)
	hasRender := err == nil && !renderInfo.IsDir()

	jc.Progress("register", 80, "Registering outputs")
	jobID := jc.Job.ID
	model, err := p.publish(jc.Ctx, jobID, projectID, outputPath, outputName, domainprojects.AssetTypeModel3D, modeling.ContentTypeFor(modeling.ExportFormatSTL), outInfo.Size())
	if err != nil {
		return jobrt.Retryable(err)
	}
	var render *types.Asset
	if hasRender {
		if render, err = p.publish(jc.Ctx, jobID, projectID, renderPath, renderName, domainprojects.AssetTypeImage, modeling.ContentTypeFor(modeling.RenderFormatPNG), renderInfo.Size()); err != nil {
			return jobrt.Retryable(err)
		}
	}

	return jc.Commit("done", func(tx *gorm.DB) (jobrt.Outcome, error) {
		created := []*types.Asset{model}
		if render != nil {
			created = append(created, render)
		}
		if err := p.assets.Create(dbctx.Context{Ctx: jc.Ctx, Tx: tx}, created...); err != nil {
			return jobrt.Outcome{}, jobrt.Retryable(fmt.Errorf("register assets: %w", err))
		}

		result := diag
		result["output_file"] = model.StoragePath
		result["result_asset_id"] = model.ID
		result["render_file"] = nil
		result["render_asset_id"] = nil
		if render != nil {
			result["render_file"] = render.StoragePath
			result["render_asset_id"] = render.ID
		}
		return jobrt.Outcome{Message: MsgSucceeded, Result: result}, nil
	})
}

func (p *Pipeline) runBlender(ctx context.Context, scriptPath, workdir string, timeout time.Duration, version int) (procrun.Result, error) {
	ctx, span := observability.Tracer().Start(ctx, "blender.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("blender.path", p.cfg.Path),
		attribute.Int("script.version", version),
		attribute.Int64("timeout_ms", timeout.Milliseconds()),
	)

	p.log.Info("running blender", "script", scriptPath, "workdir", workdir, "timeout", timeout)
	res, err := p.runner.Run(ctx, p.cfg.Command(scriptPath, workdir, timeout))
	span.SetAttributes(attribute.Int("process.exit_code", res.ExitCode))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	p.log.Info("blender finished", "exit_code", res.ExitCode, "duration", res.Duration, "error", err)
	return res, err
}

// publish copies a produced file out of the shared project workdir, which the next run of the
// project overwrites, and builds (without saving) the asset row that points at the copy. The
// copy goes to the blob store when one is configured, otherwise to jobs/<job_id>/ under the
// workdir.
func (p *Pipeline) publish(ctx context.Context, jobID, projectID uuid.UUID, path, name string, assetType types.AssetType, contentType string, size int64) (*types.Asset, error) {
	asset := &types.Asset{
		ID:             uuid.New(),
		ProjectID:      projectID,
		JobID:          &jobID,
		AssetType:      assetType,
		Filename:       name,
		ContentType:    contentType,
		SizeBytes:      size,
		StorageBackend: storage.ModeLocal,
	}
	if p.store == nil {
		dst := filepath.Join(filepath.Dir(path), "jobs", jobID.String(), name)
		n, err := copyFile(path, dst)
		if err != nil {
			return nil, fmt.Errorf("keep %s: %w", name, err)
		}
		asset.StoragePath = dst
		asset.SizeBytes = n
		return asset, nil
	}
	key := fmt.Sprintf("%s/%s/%s", projectID, jobID, name)
	obj, err := p.store.PutFile(ctx, storage.CategoryOutputs, key, path, contentType)
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", name, err)
	}
	asset.StoragePath = obj.Path
	asset.StorageBackend = obj.Backend
	asset.SizeBytes = obj.Size
	return asset, nil
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}
	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return 0, err
	}
	return n, nil
}
