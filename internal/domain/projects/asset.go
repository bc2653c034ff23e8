package projects

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AssetType string

const (
	AssetTypeImage     AssetType = "image"
	AssetTypeDrawing2D AssetType = "drawing2d"
	AssetTypeModel3D   AssetType = "model3d"
)

var ErrUnknownAssetType = errors.New("unknown asset_type")

func ParseAssetType(raw string) (AssetType, error) {
	switch t := AssetType(strings.ToLower(strings.TrimSpace(raw))); t {
	case AssetTypeImage, AssetTypeDrawing2D, AssetTypeModel3D:
		return t, nil
	}
	return "", ErrUnknownAssetType
}

const (
	StorageLocal = "local"
	StorageGCS   = "gcs"
)

// Asset is an immutable binary artifact. Pipeline-produced assets carry the JobID of the
// execution that registered them.
type Asset struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"project_id"`
	JobID          *uuid.UUID `gorm:"type:uuid;index" json:"job_id,omitempty"`
	AssetType      AssetType  `gorm:"column:asset_type;not null;index" json:"asset_type"`
	Filename       string     `gorm:"column:filename;not null" json:"filename"`
	ContentType    string     `gorm:"column:content_type;not null" json:"content_type"`
	SizeBytes      int64      `gorm:"column:size_bytes;not null" json:"size_bytes"`
	StoragePath    string     `gorm:"column:storage_path;not null" json:"storage_path"`
	StorageBackend string     `gorm:"column:storage_backend;not null;default:'local'" json:"storage_backend"`
	CreatedAt      time.Time  `gorm:"not null;index" json:"created_at"`
}

func (Asset) TableName() string { return "asset" }

func (a *Asset) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.StorageBackend == "" {
		a.StorageBackend = StorageLocal
	}
	return nil
}
