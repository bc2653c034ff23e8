package services

import (
	"math"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/data/repos"
	types "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/apperr"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/dbctx"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
)

type ScaleReferenceInput struct {
	ProjectID      uuid.UUID
	ReferenceName  string
	ReferenceValue float64
	Unit           string
}

type ExtractionService interface {
	// SetScaleReference replaces the project's calibration dimension.
	SetScaleReference(dbc dbctx.Context, in ScaleReferenceInput) (*types.ScaleReference, error)
	Latest(dbc dbctx.Context, projectID uuid.UUID) (*types.ExtractionResult, error)
	All(dbc dbctx.Context, projectID uuid.UUID) ([]*types.ExtractionResult, error)
}

type extractionService struct {
	db          *gorm.DB
	log         *logger.Logger
	projects    repos.ProjectRepo
	scaleRefs   repos.ScaleReferenceRepo
	extractions repos.ExtractionResultRepo
}

func NewExtractionService(
	db *gorm.DB,
	baseLog *logger.Logger,
	projects repos.ProjectRepo,
	scaleRefs repos.ScaleReferenceRepo,
	extractions repos.ExtractionResultRepo,
) ExtractionService {
	return &extractionService{
		db:          db,
		log:         baseLog.With("service", "ExtractionService"),
		projects:    projects,
		scaleRefs:   scaleRefs,
		extractions: extractions,
	}
}

func (s *extractionService) SetScaleReference(dbc dbctx.Context, in ScaleReferenceInput) (*types.ScaleReference, error) {
	name := strings.TrimSpace(in.ReferenceName)
	if name == "" {
		return nil, apperr.Invalid("invalid_reference_name", "reference_name is required")
	}
	if in.ReferenceValue <= 0 || math.IsNaN(in.ReferenceValue) || math.IsInf(in.ReferenceValue, 0) {
		return nil, apperr.Invalid("invalid_reference_value", "reference_value must be a positive number")
	}
	unit := strings.TrimSpace(in.Unit)
	if unit == "" {
		unit = "mm"
	}
	if err := requireProject(dbc, s.projects, in.ProjectID); err != nil {
		return nil, err
	}

	sr := &types.ScaleReference{
		ProjectID:      in.ProjectID,
		ReferenceName:  name,
		ReferenceValue: in.ReferenceValue,
		Unit:           unit,
	}
	if err := s.scaleRefs.Replace(dbc, sr); err != nil {
		return nil, apperr.Internal("scale_reference_save_failed", err)
	}
	s.log.Info("scale reference set", "project_id", in.ProjectID, "reference_name", name, "reference_value", in.ReferenceValue)
	return sr, nil
}

func (s *extractionService) Latest(dbc dbctx.Context, projectID uuid.UUID) (*types.ExtractionResult, error) {
	er, err := s.extractions.GetLatest(dbc, projectID)
	if err != nil {
		return nil, apperr.Internal("extraction_lookup_failed", err)
	}
	if er == nil {
		return nil, apperr.NotFound("extraction_not_found", "No extraction result found. Run extraction first.")
	}
	return er, nil
}

func (s *extractionService) All(dbc dbctx.Context, projectID uuid.UUID) ([]*types.ExtractionResult, error) {
	out, err := s.extractions.ListByProject(dbc, projectID)
	if err != nil {
		return nil, apperr.Internal("extraction_list_failed", err)
	}
	return out, nil
}
