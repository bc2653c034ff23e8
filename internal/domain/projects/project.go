package projects

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Project struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"column:name;not null" json:"name"`
	Description string    `gorm:"column:description" json:"description,omitempty"`
	CreatedAt   time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

func (Project) TableName() string { return "project" }

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ScaleReference is the single calibrated measurement of a project. Setting a new one
// replaces the old row; it is not versioned.
type ScaleReference struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"project_id"`
	ReferenceName  string    `gorm:"column:reference_name;not null" json:"reference_name"`
	ReferenceValue float64   `gorm:"column:reference_value;not null" json:"reference_value"`
	Unit           string    `gorm:"column:unit;not null;default:'mm'" json:"unit"`
	CreatedAt      time.Time `gorm:"not null" json:"created_at"`
}

func (ScaleReference) TableName() string { return "scale_reference" }

func (s *ScaleReference) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
