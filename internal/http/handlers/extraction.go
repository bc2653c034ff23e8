package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/http/response"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/apperr"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/services"
)

type ExtractionHandler struct {
	extraction services.ExtractionService
}

func NewExtractionHandler(extraction services.ExtractionService) *ExtractionHandler {
	return &ExtractionHandler{extraction: extraction}
}

type scaleReferenceRequest struct {
	ProjectID      uuid.UUID `json:"project_id"`
	ReferenceName  string    `json:"reference_name"`
	ReferenceValue float64   `json:"reference_value"`
	Unit           string    `json:"unit"`
}

// POST /api/v1/extraction/scale-reference
func (h *ExtractionHandler) SetScaleReference(c *gin.Context) {
	var req scaleReferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAppError(c, apperr.Invalid("invalid_body", "invalid JSON body: %v", err))
		return
	}
	sr, err := h.extraction.SetScaleReference(requestDBC(c), services.ScaleReferenceInput{
		ProjectID:      req.ProjectID,
		ReferenceName:  req.ReferenceName,
		ReferenceValue: req.ReferenceValue,
		Unit:           req.Unit,
	})
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true, "scale_reference": sr})
}

// GET /api/v1/extraction/result/:project_id
func (h *ExtractionHandler) Latest(c *gin.Context) {
	pid, err := uuidParam(c, "project_id")
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	er, err := h.extraction.Latest(requestDBC(c), pid)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, er)
}

// GET /api/v1/extraction/results/:project_id
func (h *ExtractionHandler) All(c *gin.Context) {
	pid, err := uuidParam(c, "project_id")
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	out, err := h.extraction.All(requestDBC(c), pid)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, out)
}
