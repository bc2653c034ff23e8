package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/data/repos"
	domainjobs "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain/jobs"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/http/response"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/apperr"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/services"
)

type JobHandler struct {
	jobs services.JobService
}

func NewJobHandler(jobs services.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

type createJobRequest struct {
	ProjectID uuid.UUID      `json:"project_id"`
	JobType   string         `json:"job_type"`
	Params    map[string]any `json:"params"`
}

// POST /api/v1/jobs
func (h *JobHandler) Create(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAppError(c, apperr.Invalid("invalid_body", "invalid JSON body: %v", err))
		return
	}
	job, err := h.jobs.Create(requestDBC(c), services.CreateJobInput{
		ProjectID: req.ProjectID,
		JobType:   req.JobType,
		Params:    req.Params,
	})
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, job)
}

// GET /api/v1/jobs/:id
func (h *JobHandler) Get(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	job, err := h.jobs.Get(requestDBC(c), id)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, job)
}

// GET /api/v1/jobs?project_id=&status=&job_type=&limit=
func (h *JobHandler) List(c *gin.Context) {
	var filter repos.JobFilter
	if raw := strings.TrimSpace(c.Query("project_id")); raw != "" {
		pid, err := uuid.Parse(raw)
		if err != nil {
			response.RespondAppError(c, apperr.Invalid("invalid_project_id", "project_id must be a UUID"))
			return
		}
		filter.ProjectID = &pid
	}
	filter.Status = domainjobs.Status(strings.ToLower(strings.TrimSpace(c.Query("status"))))
	filter.JobType = domainjobs.JobType(strings.ToLower(strings.TrimSpace(c.Query("job_type"))))
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > repos.MaxJobListLimit {
			response.RespondAppError(c, apperr.Invalid("invalid_limit", "limit must be between 1 and %d", repos.MaxJobListLimit))
			return
		}
		filter.Limit = n
	}

	out, err := h.jobs.List(requestDBC(c), filter)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, out)
}
