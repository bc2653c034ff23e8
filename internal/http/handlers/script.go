package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/http/response"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/services"
)

const pythonContentType = "text/x-python"

type ScriptHandler struct {
	scripts services.ScriptService
}

func NewScriptHandler(scripts services.ScriptService) *ScriptHandler {
	return &ScriptHandler{scripts: scripts}
}

// GET /api/v1/scripts/:project_id
func (h *ScriptHandler) List(c *gin.Context) {
	pid, err := uuidParam(c, "project_id")
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	versions, err := h.scripts.List(requestDBC(c), pid)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"project_id": pid, "versions": versions})
}

// GET /api/v1/scripts/:project_id/latest
func (h *ScriptHandler) Latest(c *gin.Context) {
	pid, err := uuidParam(c, "project_id")
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	sv, err := h.scripts.Latest(requestDBC(c), pid)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(sv.ScriptText))
}

// GET /api/v1/script-files/:id/download
func (h *ScriptHandler) Download(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	sv, err := h.scripts.Get(requestDBC(c), id)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	streamFile(c, strings.NewReader(sv.ScriptText), int64(len(sv.ScriptText)), pythonContentType, "attachment", services.ScriptDownloadName(sv))
}
