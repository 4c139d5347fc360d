package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type User struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Username     string    `json:"username" gorm:"uniqueIndex;not null"`
	Email        *string   `json:"email,omitempty" gorm:"uniqueIndex"`
	PasswordHash string    `json:"-" gorm:"not null"`

	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Country   string `json:"country" gorm:"index"`
	City      string `json:"city"`

	Role Role `json:"role" gorm:"not null;default:'standard';index"`

	// Balance is mutated only by the ledger service, always inside a
	// transaction, and never goes negative.
	Balance decimal.Decimal `json:"balance" gorm:"type:decimal(20,2);not null;default:0"`

	AffiliateCode  *string         `json:"affiliateCode,omitempty" gorm:"uniqueIndex"`
	ReferredBy     *uuid.UUID      `json:"referredBy,omitempty" gorm:"type:uuid;index"`
	CommissionRate decimal.Decimal `json:"commissionRate" gorm:"type:decimal(5,2);not null;default:10"`

	IsActive         bool   `json:"isActive" gorm:"not null;default:true"`
	IsVerified       bool   `json:"isVerified" gorm:"not null;default:false"`
	TwoFactorEnabled bool   `json:"twoFactorEnabled" gorm:"not null;default:false"`
	TwoFactorSecret  string `json:"-"`

	LastLogin  *time.Time        `json:"lastLogin,omitempty"`
	LoginCount int               `json:"loginCount" gorm:"not null;default:0"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FullName returns first and last name joined, or an empty string when
// neither is set.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
