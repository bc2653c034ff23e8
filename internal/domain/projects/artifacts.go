package projects

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	SourceUserReference   = "user_reference"
	SourceRatioEstimation = "ratio_estimation"
)

type Dimension struct {
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	Unit       string  `json:"unit"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

type Feature struct {
	Type    string   `json:"type"`
	Shape   string   `json:"shape,omitempty"`
	Count   int      `json:"count,omitempty"`
	Pattern string   `json:"pattern,omitempty"`
	Radius  *float64 `json:"radius,omitempty"`
}

// ExtractionResult is append-only and versioned per project; (project_id, version) is unique.
type ExtractionResult struct {
	ID         uuid.UUID                      `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID  uuid.UUID                      `gorm:"type:uuid;not null;uniqueIndex:idx_extraction_project_version,priority:1" json:"project_id"`
	Version    int                            `gorm:"not null;uniqueIndex:idx_extraction_project_version,priority:2" json:"version"`
	JobID      *uuid.UUID                     `gorm:"type:uuid;index" json:"job_id,omitempty"`
	Dimensions datatypes.JSONSlice[Dimension] `gorm:"column:dimensions" json:"dimensions"`
	Features   datatypes.JSONSlice[Feature]   `gorm:"column:features" json:"features"`
	Tasks      datatypes.JSONSlice[string]    `gorm:"column:tasks" json:"tasks"`
	CreatedAt  time.Time                      `gorm:"not null" json:"created_at"`
}

func (ExtractionResult) TableName() string { return "extraction_result" }

func (e *ExtractionResult) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

func (e *ExtractionResult) GetVersion() int  { return e.Version }
func (e *ExtractionResult) SetVersion(v int) { e.Version = v }

// ScriptVersion is append-only and versioned per project, numbered independently of
// extraction results.
type ScriptVersion struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID  uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_script_project_version,priority:1" json:"project_id"`
	Version    int            `gorm:"not null;uniqueIndex:idx_script_project_version,priority:2" json:"version"`
	JobID      *uuid.UUID     `gorm:"type:uuid;index" json:"job_id,omitempty"`
	ScriptText string         `gorm:"column:script_text;type:text;not null" json:"script_text"`
	Params     datatypes.JSON `gorm:"column:params" json:"params"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
}

func (ScriptVersion) TableName() string { return "script_version" }

func (s *ScriptVersion) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s *ScriptVersion) GetVersion() int  { return s.Version }
func (s *ScriptVersion) SetVersion(v int) { s.Version = v }
