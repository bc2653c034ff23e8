package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/data/repos"
	types "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/apperr"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/dbctx"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
)

// ScriptSummary is a script version without its text.
type ScriptSummary struct {
	ID           uuid.UUID  `json:"id"`
	ProjectID    uuid.UUID  `json:"project_id"`
	Version      int        `json:"version"`
	JobID        *uuid.UUID `json:"job_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	ScriptLength int        `json:"script_length"`
}

type ScriptService interface {
	List(dbc dbctx.Context, projectID uuid.UUID) ([]ScriptSummary, error)
	Latest(dbc dbctx.Context, projectID uuid.UUID) (*types.ScriptVersion, error)
	Get(dbc dbctx.Context, id uuid.UUID) (*types.ScriptVersion, error)
}

type scriptService struct {
	db      *gorm.DB
	log     *logger.Logger
	scripts repos.ScriptVersionRepo
}

func NewScriptService(db *gorm.DB, baseLog *logger.Logger, scripts repos.ScriptVersionRepo) ScriptService {
	return &scriptService{
		db:      db,
		log:     baseLog.With("service", "ScriptService"),
		scripts: scripts,
	}
}

// List returns the project's versions, newest first.
func (s *scriptService) List(dbc dbctx.Context, projectID uuid.UUID) ([]ScriptSummary, error) {
	rows, err := s.scripts.ListByProject(dbc, projectID)
	if err != nil {
		return nil, apperr.Internal("script_list_failed", err)
	}
	out := make([]ScriptSummary, 0, len(rows))
	for _, sv := range rows {
		out = append(out, ScriptSummary{
			ID:           sv.ID,
			ProjectID:    sv.ProjectID,
			Version:      sv.Version,
			JobID:        sv.JobID,
			CreatedAt:    sv.CreatedAt,
			ScriptLength: len(sv.ScriptText),
		})
	}
	return out, nil
}

func (s *scriptService) Latest(dbc dbctx.Context, projectID uuid.UUID) (*types.ScriptVersion, error) {
	sv, err := s.scripts.GetLatest(dbc, projectID)
	if err != nil {
		return nil, apperr.Internal("script_lookup_failed", err)
	}
	if sv == nil {
		return nil, apperr.NotFound("script_not_found", "No script found")
	}
	return sv, nil
}

func (s *scriptService) Get(dbc dbctx.Context, id uuid.UUID) (*types.ScriptVersion, error) {
	sv, err := s.scripts.GetByID(dbc, id)
	if err != nil {
		return nil, apperr.Internal("script_lookup_failed", err)
	}
	if sv == nil {
		return nil, apperr.NotFound("script_not_found", "Script not found")
	}
	return sv, nil
}

// ScriptDownloadName is the attachment name a script version is served under.
func ScriptDownloadName(sv *types.ScriptVersion) string {
	return fmt.Sprintf("blender_script_v%d.py", sv.Version)
}
