package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Session binds one issued token pair to a user and optional client
// application. Token values are immutable once issued; Revoked never
// transitions back to false.
type Session struct {
	ID            uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID        uuid.UUID  `json:"userId" gorm:"type:uuid;not null;index"`
	ApplicationID *uuid.UUID `json:"applicationId,omitempty" gorm:"type:uuid;index"`

	AccessToken  string `json:"-" gorm:"uniqueIndex;not null"`
	RefreshToken string `json:"-" gorm:"uniqueIndex;not null"`

	IPAddress string `json:"ipAddress"`
	UserAgent string `json:"userAgent"`

	// AccessExpiresAt bounds the blacklist TTL when this session's access
	// token is revoked ahead of its natural expiry.
	AccessExpiresAt time.Time `json:"accessExpiresAt" gorm:"not null"`
	// ExpiresAt ends the session's refresh chain; expired rows are
	// removed by the reaper but validity checks never depend on that.
	ExpiresAt time.Time `json:"expiresAt" gorm:"not null;index"`

	Revoked      bool              `json:"revoked" gorm:"not null;default:false"`
	RevokedAt    *time.Time        `json:"revokedAt,omitempty"`
	LastActivity time.Time         `json:"lastActivity"`
	Metadata     datatypes.JSONMap `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// Live reports whether the session can still authenticate requests or
// be refreshed at the given instant.
func (s *Session) Live(now time.Time) bool {
	return !s.Revoked && now.Before(s.ExpiresAt)
}
