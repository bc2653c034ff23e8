package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/http/response"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/apperr"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/services"
)

type AssetHandler struct {
	assets services.AssetService
}

func NewAssetHandler(assets services.AssetService) *AssetHandler {
	return &AssetHandler{assets: assets}
}

// POST /api/v1/assets/upload (multipart: project_id, asset_type, files...)
func (h *AssetHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.RespondAppError(c, apperr.Invalid("invalid_form", "expected multipart form data: %v", err))
		return
	}
	projectID, err := uuid.Parse(strings.TrimSpace(firstValue(form, "project_id")))
	if err != nil {
		response.RespondAppError(c, apperr.Invalid("invalid_project_id", "project_id must be a UUID"))
		return
	}

	headers := form.File["files"]
	files := make([]services.UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			response.RespondAppError(c, apperr.Invalid("invalid_file", "cannot read %s: %v", fh.Filename, err))
			return
		}
		defer f.Close()
		files = append(files, services.UploadFile{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Body:        f,
		})
	}

	out, err := h.assets.Upload(requestDBC(c), projectID, firstValue(form, "asset_type"), files)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/v1/assets/:id
func (h *AssetHandler) Get(c *gin.Context) {
	a, ok := h.load(c)
	if !ok {
		return
	}
	response.RespondOK(c, a)
}

// GET /api/v1/assets/:id/download
func (h *AssetHandler) Download(c *gin.Context) { h.serve(c, "attachment") }

// GET /api/v1/assets/:id/preview
func (h *AssetHandler) Preview(c *gin.Context) { h.serve(c, "inline") }

func (h *AssetHandler) load(c *gin.Context) (*types.Asset, bool) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondAppError(c, err)
		return nil, false
	}
	a, err := h.assets.Get(requestDBC(c), id)
	if err != nil {
		response.RespondAppError(c, err)
		return nil, false
	}
	return a, true
}

func (h *AssetHandler) serve(c *gin.Context, disposition string) {
	a, ok := h.load(c)
	if !ok {
		return
	}
	rc, err := h.assets.Open(requestDBC(c), a)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	defer rc.Close()
	streamFile(c, rc, a.SizeBytes, a.ContentType, disposition, a.Filename)
}

func streamFile(c *gin.Context, r io.Reader, size int64, contentType, disposition, filename string) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, size, contentType, r, map[string]string{
		"Content-Disposition": fmt.Sprintf("%s; filename=%q", disposition, filename),
	})
}

func firstValue(form *multipart.Form, key string) string {
	if vs := form.Value[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}
