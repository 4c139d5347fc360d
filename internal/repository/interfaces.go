package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marc/credit-identity-api/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	// GetByIDForUpdate takes a row lock; only meaningful inside a unit
	// of work.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// GetByUsernameOrEmail resolves a login identifier against either
	// column.
	GetByUsernameOrEmail(ctx context.Context, identifier string) (*domain.User, error)
	GetByAffiliateCode(ctx context.Context, code string) (*domain.User, error)
	// Update writes the full row, balance included. Callers must hold
	// the row's FOR UPDATE lock in the same unit of work; everything
	// outside the ledger uses the column-scoped writers below instead.
	Update(ctx context.Context, user *domain.User) error
	// UpdateLoginStats stamps a successful login, touching no other
	// column.
	UpdateLoginStats(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	// UpdateProfile writes the editable profile columns only.
	UpdateProfile(ctx context.Context, user *domain.User) error
	List(ctx context.Context, limit, offset int) ([]*domain.User, error)
}

type CreditEntryRepository interface {
	// Append inserts one immutable history row. There is no update or
	// delete.
	Append(ctx context.Context, entry *domain.CreditEntry) error
	// ListByUser returns a page of the user's history, newest first,
	// optionally filtered by kind (empty kind means all).
	ListByUser(ctx context.Context, userID uuid.UUID, kind domain.EntryKind, limit, offset int) ([]*domain.CreditEntry, error)
	CountByUser(ctx context.Context, userID uuid.UUID, kind domain.EntryKind) (int64, error)
	// SumByUser totals the signed amounts of the user's history.
	SumByUser(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
}

type ReferralRepository interface {
	Create(ctx context.Context, referral *domain.Referral) error
	ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]*domain.Referral, error)
	GetByReferred(ctx context.Context, referredID uuid.UUID) (*domain.Referral, error)
	// AddCommission increments the edge's accumulated commission total.
	AddCommission(ctx context.Context, referrerID, referredID uuid.UUID, amount decimal.Decimal) error
}

type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error)
	// GetLiveByAccessToken returns the session only if it is not revoked
	// and not expired.
	GetLiveByAccessToken(ctx context.Context, token string) (*domain.Session, error)
	GetLiveByRefreshToken(ctx context.Context, token string) (*domain.Session, error)
	// Revoke flips the session to revoked, guarded on revoked = false.
	// The returned bool is false when the session was already revoked or
	// does not exist, which lets concurrent refreshes race safely.
	Revoke(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	UpdateLastActivity(ctx context.Context, id uuid.UUID, at time.Time) error
	// DeleteExpired removes sessions whose ExpiresAt has passed and
	// returns how many rows went away.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type ApplicationRepository interface {
	Create(ctx context.Context, app *domain.Application) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Application, error)
}

type Repositories struct {
	User        UserRepository
	CreditEntry CreditEntryRepository
	Referral    ReferralRepository
	Session     SessionRepository
	Application ApplicationRepository
}

// UnitOfWork runs fn against transaction-scoped repositories. Every
// write fn performs is committed atomically when fn returns nil and
// rolled back when it returns an error.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, repos *Repositories) error) error
}
