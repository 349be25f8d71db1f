package models

import (
	"time"

	"github.com/google/uuid"
)

// Upload is one processed document: the original artifact, its geometrically
// corrected counterpart, and the metadata the API exposes. GenerationID is
// assigned when the pipeline starts and derives both artifact object keys; ID
// is the store-assigned handle clients use for download/delete.
type Upload struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GenerationID uuid.UUID `gorm:"column:generation_id;type:uuid;not null;unique"`
	OwnerID      uuid.UUID `gorm:"column:owner_id;type:uuid;not null;index"`
	FileName     string    `gorm:"column:file_name;not null"`
	OriginalURL  string    `gorm:"column:original_url;not null"`
	ProcessedURL string    `gorm:"column:processed_url;not null"`
	OriginalKey  string    `gorm:"column:original_key;not null"`
	ProcessedKey string    `gorm:"column:processed_key;not null"`
	Warning      bool      `gorm:"column:warning;not null;default:false"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}
