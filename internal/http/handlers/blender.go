package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/http/response"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/services"
)

type BlenderHandler struct {
	blender services.BlenderService
}

func NewBlenderHandler(blender services.BlenderService) *BlenderHandler {
	return &BlenderHandler{blender: blender}
}

// POST /api/v1/blender/smoke
func (h *BlenderHandler) Smoke(c *gin.Context) {
	rep, err := h.blender.SmokeTest(c.Request.Context())
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, rep)
}
