package services

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/data/repos"
	types "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/apperr"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/dbctx"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
)

type ProjectService interface {
	Create(dbc dbctx.Context, name, description string) (*types.Project, error)
	List(dbc dbctx.Context) ([]*types.Project, error)
	Get(dbc dbctx.Context, id uuid.UUID) (*types.Project, error)
}

type projectService struct {
	db       *gorm.DB
	log      *logger.Logger
	projects repos.ProjectRepo
}

func NewProjectService(db *gorm.DB, baseLog *logger.Logger, projects repos.ProjectRepo) ProjectService {
	return &projectService{
		db:       db,
		log:      baseLog.With("service", "ProjectService"),
		projects: projects,
	}
}

func (s *projectService) Create(dbc dbctx.Context, name, description string) (*types.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Invalid("invalid_name", "name is required")
	}
	p := &types.Project{Name: name, Description: strings.TrimSpace(description)}
	if err := s.projects.Create(dbc, p); err != nil {
		return nil, apperr.Internal("project_create_failed", err)
	}
	s.log.Info("project created", "project_id", p.ID)
	return p, nil
}

func (s *projectService) List(dbc dbctx.Context) ([]*types.Project, error) {
	out, err := s.projects.List(dbc)
	if err != nil {
		return nil, apperr.Internal("project_list_failed", err)
	}
	return out, nil
}

func (s *projectService) Get(dbc dbctx.Context, id uuid.UUID) (*types.Project, error) {
	p, err := s.projects.GetByID(dbc, id)
	if err != nil {
		return nil, apperr.Internal("project_lookup_failed", err)
	}
	if p == nil {
		return nil, apperr.NotFound("project_not_found", "Project not found")
	}
	return p, nil
}

// requireProject is shared by services that attach rows to a project.
func requireProject(dbc dbctx.Context, projects repos.ProjectRepo, id uuid.UUID) error {
	if id == uuid.Nil {
		return apperr.Invalid("invalid_project_id", "project_id is required")
	}
	ok, err := projects.Exists(dbc, id)
	if err != nil {
		return apperr.Internal("project_lookup_failed", err)
	}
	if !ok {
		return apperr.NotFound("project_not_found", "Project not found")
	}
	return nil
}
