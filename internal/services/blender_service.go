package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/modules/modeling"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/observability"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/apperr"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/pointers"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/platform/ctxutil"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/platform/procrun"
)

const smokeTailBytes = 500

// SmokeReport is the outcome of a Blender smoke test. Optional fields are nil when the run
// produced nothing for them.
type SmokeReport struct {
	OK          bool    `json:"ok"`
	Message     string  `json:"message"`
	ExecMode    string  `json:"exec_mode,omitempty"`
	Suggestion  string  `json:"suggestion,omitempty"`
	ReturnCode  *int    `json:"returncode,omitempty"`
	STLExists   bool    `json:"stl_exists"`
	STLPath     *string `json:"stl_path"`
	BlenderPath string  `json:"blender_path,omitempty"`
	Workdir     string  `json:"workdir,omitempty"`
	StdoutTail  *string `json:"stdout_tail"`
	StderrTail  *string `json:"stderr_tail"`
}

type BlenderService interface {
	// SmokeTest exports a cube through the configured Blender to prove headless execution works.
	SmokeTest(ctx context.Context) (*SmokeReport, error)
}

type blenderService struct {
	log     *logger.Logger
	runner  procrun.Runner
	cfg     modeling.BlenderConfig
	metrics *observability.Metrics
}

func NewBlenderService(baseLog *logger.Logger, runner procrun.Runner, cfg modeling.BlenderConfig, metrics *observability.Metrics) BlenderService {
	return &blenderService{
		log:     baseLog.With("service", "BlenderService"),
		runner:  runner,
		cfg:     cfg,
		metrics: metrics,
	}
}

func (s *blenderService) SmokeTest(ctx context.Context) (*SmokeReport, error) {
	if !s.cfg.Headless() {
		return &SmokeReport{
			OK:         false,
			Message:    s.cfg.ModeMessage(),
			ExecMode:   s.cfg.ExecMode,
			Suggestion: "Set BLENDER_EXEC_MODE=" + modeling.ExecModeServerHeadless + " in .env to enable headless execution",
		}, nil
	}

	workdir, err := filepath.Abs(filepath.Join(s.cfg.Workdir, modeling.SmokeDir))
	if err != nil {
		return nil, apperr.Internalf("smoke_failed", err, "Blender smoke test failed: %v", err)
	}
	if err := os.MkdirAll(workdir, 0o755); err != nil {
		return nil, apperr.Internalf("smoke_failed", err, "Blender smoke test failed: %v", err)
	}
	scriptPath := filepath.Join(workdir, modeling.SmokeScriptFile)
	stlPath := filepath.Join(workdir, modeling.SmokeOutputFile)
	if err := os.WriteFile(scriptPath, []byte(modeling.SmokeScript), 0o644); err != nil {
		return nil, apperr.Internalf("smoke_failed", err, "Blender smoke test failed: %v", err)
	}
	// A cube left by an earlier run must not count as this run's output.
	_ = os.Remove(stlPath)

	res, err := s.runner.Run(ctxutil.Default(ctx), s.cfg.Command(scriptPath, workdir, modeling.SmokeTimeout))
	switch {
	case errors.Is(err, procrun.ErrTimeout):
		s.metrics.ProcessRun(observability.ProcessTimeout)
		return nil, apperr.Internalf("blender_timeout", err,
			"Blender execution timed out (>%ds). Check BLENDER_PATH configuration.", int(modeling.SmokeTimeout.Seconds()))
	case errors.Is(err, procrun.ErrExecutableNotFound):
		s.metrics.ProcessRun(observability.ProcessNotFound)
		return nil, apperr.Internalf("blender_not_found", err,
			"Blender not found at %s. Please set BLENDER_PATH correctly.", s.cfg.Path)
	case err != nil:
		s.metrics.ProcessRun(observability.ProcessFailed)
		return nil, apperr.Internalf("smoke_failed", err, "Blender smoke test failed: %v", err)
	}

	_, statErr := os.Stat(stlPath)
	stlExists := statErr == nil
	ok := res.ExitCode == 0 && stlExists

	rep := &SmokeReport{
		OK:          ok,
		ReturnCode:  pointers.Int(res.ExitCode),
		STLExists:   stlExists,
		BlenderPath: s.cfg.Path,
		Workdir:     workdir,
		StdoutTail:  tailOrNil(res.Stdout),
		StderrTail:  tailOrNil(res.Stderr),
	}
	if stlExists {
		rep.STLPath = pointers.String(stlPath)
	}
	switch {
	case ok:
		rep.Message = "Blender smoke test completed successfully"
		s.metrics.ProcessRun(observability.ProcessOK)
	case res.ExitCode == 0:
		rep.Message = "Blender smoke test failed"
		s.metrics.ProcessRun(observability.ProcessNoOutput)
	default:
		rep.Message = "Blender smoke test failed"
		s.metrics.ProcessRun(observability.ProcessFailed)
	}
	s.log.Info("blender smoke test finished", "ok", ok, "returncode", res.ExitCode, "stl_exists", stlExists, "duration_ms", res.Duration.Milliseconds())
	return rep, nil
}

func tailOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return pointers.String(procrun.Tail(s, smokeTailBytes))
}

