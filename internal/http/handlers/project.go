package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/data/repos"
	domainprojects "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain/projects"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/http/response"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/apperr"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/services"
)

type ProjectHandler struct {
	projects services.ProjectService
	assets   services.AssetService
}

func NewProjectHandler(projects services.ProjectService, assets services.AssetService) *ProjectHandler {
	return &ProjectHandler{projects: projects, assets: assets}
}

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// POST /api/v1/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAppError(c, apperr.Invalid("invalid_body", "invalid JSON body: %v", err))
		return
	}
	p, err := h.projects.Create(requestDBC(c), req.Name, req.Description)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, p)
}

// GET /api/v1/projects
func (h *ProjectHandler) List(c *gin.Context) {
	out, err := h.projects.List(requestDBC(c))
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/v1/projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	p, err := h.projects.Get(requestDBC(c), id)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, p)
}

// GET /api/v1/projects/:id/assets?asset_type=
func (h *ProjectHandler) ListAssets(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	filter := repos.AssetFilter{AssetType: domainprojects.AssetType(c.Query("asset_type"))}
	out, err := h.assets.ListByProject(requestDBC(c), id, filter)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, out)
}
