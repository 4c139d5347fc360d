package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Application is a registered client that sessions may be scoped to.
type Application struct {
	ID           uuid.UUID         `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name         string            `json:"name" gorm:"not null"`
	Description  string            `json:"description"`
	ClientID     string            `json:"clientId" gorm:"uniqueIndex;not null"`
	ClientSecret string            `json:"-" gorm:"not null"`
	OwnerID      uuid.UUID         `json:"ownerId" gorm:"type:uuid;not null;index"`
	IsActive     bool              `json:"isActive" gorm:"not null;default:true"`
	Metadata     datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}
