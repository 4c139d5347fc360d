package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// EntryKind is the business reason for a balance change
type EntryKind string

const (
	EntryDeposit          EntryKind = "deposit"
	EntryWithdrawal       EntryKind = "withdrawal"
	EntryTransferSent     EntryKind = "transfer_sent"
	EntryTransferReceived EntryKind = "transfer_received"
	EntryPurchase         EntryKind = "purchase"
	EntryCommission       EntryKind = "commission"
)

// IsValid checks if an entry kind is valid
func (k EntryKind) IsValid() bool {
	switch k {
	case EntryDeposit, EntryWithdrawal, EntryTransferSent,
		EntryTransferReceived, EntryPurchase, EntryCommission:
		return true
	}
	return false
}

// IsDebit reports whether entries of this kind decrease the balance.
func (k EntryKind) IsDebit() bool {
	switch k {
	case EntryWithdrawal, EntryTransferSent, EntryPurchase:
		return true
	}
	return false
}

// CreditEntry is one immutable row of a user's credit history. Entries
// are appended inside the same transaction as the balance change and are
// never updated or deleted. The two sides of a transfer share one
// reference id.
type CreditEntry struct {
	ID          uuid.UUID         `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID      uuid.UUID         `json:"userId" gorm:"type:uuid;not null;index;uniqueIndex:idx_entry_user_reference"`
	Amount      decimal.Decimal   `json:"amount" gorm:"type:decimal(20,2);not null"`
	Kind        EntryKind         `json:"kind" gorm:"not null;index"`
	Description string            `json:"description"`
	ReferenceID string            `json:"referenceId" gorm:"not null;index;uniqueIndex:idx_entry_user_reference"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// Referral records that one user joined through another user's
// affiliate code. Edges are created at registration time and never
// removed; CommissionEarned accumulates commission postings and always
// equals the sum of commission entries attributable to the edge.
type Referral struct {
	ID               uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ReferrerID       uuid.UUID       `json:"referrerId" gorm:"type:uuid;not null;index;uniqueIndex:idx_referrer_referred"`
	ReferredID       uuid.UUID       `json:"referredId" gorm:"type:uuid;not null;uniqueIndex:idx_referrer_referred"`
	JoinedAt         time.Time       `json:"joinedAt" gorm:"not null"`
	CommissionEarned decimal.Decimal `json:"commissionEarned" gorm:"type:decimal(20,2);not null;default:0"`
}
