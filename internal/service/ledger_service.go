package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/marc/credit-identity-api/internal/domain"
	"github.com/marc/credit-identity-api/internal/repository"
)

// LedgerService executes balance-preserving credit mutations. Every
// mutation runs inside one unit of work: the balance change and its
// history entry commit together or not at all.
type LedgerService struct {
	uow          repository.UnitOfWork
	userRepo     repository.UserRepository
	entryRepo    repository.CreditEntryRepository
	referralRepo repository.ReferralRepository
}

func NewLedgerService(repos *repository.Repositories, uow repository.UnitOfWork) *LedgerService {
	return &LedgerService{
		uow:          uow,
		userRepo:     repos.User,
		entryRepo:    repos.CreditEntry,
		referralRepo: repos.Referral,
	}
}

type TransferResult struct {
	ReferenceID string          `json:"referenceId"`
	NewBalance  decimal.Decimal `json:"newBalance"`
}

// Transfer moves amount from one account to another. Both row locks
// are taken in ascending-ID order so concurrent transfers over the
// same accounts serialize instead of deadlocking; both history entries
// share one reference id linking the two sides.
func (s *LedgerService) Transfer(ctx context.Context, fromID, toID uuid.UUID, amount decimal.Decimal, description string) (*TransferResult, error) {
	if amount.Sign() <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	// A self-transfer would be a no-op entry pair.
	if fromID == toID {
		return nil, domain.ErrInvalidAmount
	}

	var result *TransferResult
	err := s.uow.Do(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		sender, recipient, err := lockPair(ctx, repos.User, fromID, toID)
		if err != nil {
			return err
		}

		if sender.Balance.LessThan(amount) {
			return domain.ErrInsufficientBalance
		}

		referenceID := uuid.New().String()
		now := time.Now()

		sender.Balance = sender.Balance.Sub(amount)
		if err := repos.User.Update(ctx, sender); err != nil {
			return err
		}
		if err := repos.CreditEntry.Append(ctx, &domain.CreditEntry{
			ID:          uuid.New(),
			UserID:      sender.ID,
			Amount:      amount.Neg(),
			Kind:        domain.EntryTransferSent,
			Description: fmt.Sprintf("Transfer to %s: %s", recipient.Username, description),
			ReferenceID: referenceID,
			CreatedAt:   now,
		}); err != nil {
			return err
		}

		recipient.Balance = recipient.Balance.Add(amount)
		if err := repos.User.Update(ctx, recipient); err != nil {
			return err
		}
		if err := repos.CreditEntry.Append(ctx, &domain.CreditEntry{
			ID:          uuid.New(),
			UserID:      recipient.ID,
			Amount:      amount,
			Kind:        domain.EntryTransferReceived,
			Description: fmt.Sprintf("Transfer from %s: %s", sender.Username, description),
			ReferenceID: referenceID,
			CreatedAt:   now,
		}); err != nil {
			return err
		}

		result = &TransferResult{ReferenceID: referenceID, NewBalance: sender.Balance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AddCredit posts a single-account entry. Debit kinds enforce the
// non-negative balance invariant.
func (s *LedgerService) AddCredit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, kind domain.EntryKind, description string) (*domain.CreditEntry, error) {
	if amount.Sign() <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if !kind.IsValid() {
		return nil, fmt.Errorf("unknown entry kind %q", kind)
	}

	var entry *domain.CreditEntry
	err := s.uow.Do(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		user, err := repos.User.GetByIDForUpdate(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrUserNotFound
			}
			return err
		}

		signed := amount
		if kind.IsDebit() {
			if user.Balance.LessThan(amount) {
				return domain.ErrInsufficientBalance
			}
			signed = amount.Neg()
		}

		user.Balance = user.Balance.Add(signed)
		if err := repos.User.Update(ctx, user); err != nil {
			return err
		}

		entry = &domain.CreditEntry{
			ID:          uuid.New(),
			UserID:      user.ID,
			Amount:      signed,
			Kind:        kind,
			Description: description,
			ReferenceID: uuid.New().String(),
			CreatedAt:   time.Now(),
		}
		return repos.CreditEntry.Append(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Purchase debits the buyer and, when the buyer was referred, posts
// the referrer's commission in the same transaction. The commission
// entry carries the purchase's reference id so it stays attributable
// to the edge, and the edge's accumulated total moves in lockstep with
// the entry history.
func (s *LedgerService) Purchase(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, description string) (*TransferResult, error) {
	if amount.Sign() <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	var result *TransferResult
	err := s.uow.Do(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		buyer, referrer, err := lockPurchase(ctx, repos.User, userID)
		if err != nil {
			return err
		}

		if buyer.Balance.LessThan(amount) {
			return domain.ErrInsufficientBalance
		}

		referenceID := uuid.New().String()
		now := time.Now()

		buyer.Balance = buyer.Balance.Sub(amount)
		if err := repos.User.Update(ctx, buyer); err != nil {
			return err
		}
		if err := repos.CreditEntry.Append(ctx, &domain.CreditEntry{
			ID:          uuid.New(),
			UserID:      buyer.ID,
			Amount:      amount.Neg(),
			Kind:        domain.EntryPurchase,
			Description: description,
			ReferenceID: referenceID,
			CreatedAt:   now,
		}); err != nil {
			return err
		}

		if referrer != nil {
			if err := s.postCommission(ctx, repos, buyer, referrer, amount, referenceID, now); err != nil {
				return err
			}
		}

		result = &TransferResult{ReferenceID: referenceID, NewBalance: buyer.Balance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *LedgerService) postCommission(ctx context.Context, repos *repository.Repositories, buyer, referrer *domain.User, amount decimal.Decimal, referenceID string, now time.Time) error {
	commission := amount.Mul(referrer.CommissionRate).Div(decimal.NewFromInt(100)).Round(2)
	if commission.Sign() <= 0 {
		return nil
	}

	referrer.Balance = referrer.Balance.Add(commission)
	if err := repos.User.Update(ctx, referrer); err != nil {
		return err
	}
	if err := repos.CreditEntry.Append(ctx, &domain.CreditEntry{
		ID:          uuid.New(),
		UserID:      referrer.ID,
		Amount:      commission,
		Kind:        domain.EntryCommission,
		Description: fmt.Sprintf("Referral commission from %s", buyer.Username),
		ReferenceID: referenceID,
		CreatedAt:   now,
	}); err != nil {
		return err
	}
	return repos.Referral.AddCommission(ctx, referrer.ID, buyer.ID, commission)
}

type HistoryResult struct {
	Balance decimal.Decimal       `json:"currentBalance"`
	Entries []*domain.CreditEntry `json:"history"`
	Page    int                   `json:"page"`
	Limit   int                   `json:"limit"`
	Total   int64                 `json:"total"`
}

// History returns one page of the user's append-only credit history,
// newest first, optionally filtered by kind.
func (s *LedgerService) History(ctx context.Context, userID uuid.UUID, kind domain.EntryKind, page, limit int) (*HistoryResult, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if kind != "" && !kind.IsValid() {
		return nil, fmt.Errorf("unknown entry kind %q", kind)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}

	entries, err := s.entryRepo.ListByUser(ctx, userID, kind, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	total, err := s.entryRepo.CountByUser(ctx, userID, kind)
	if err != nil {
		return nil, err
	}

	return &HistoryResult{
		Balance: user.Balance,
		Entries: entries,
		Page:    page,
		Limit:   limit,
		Total:   total,
	}, nil
}

type AffiliateStats struct {
	AffiliateCode         *string            `json:"affiliateCode"`
	CommissionRate        decimal.Decimal    `json:"commissionRate"`
	TotalReferrals        int                `json:"totalReferrals"`
	TotalCommissionEarned decimal.Decimal    `json:"totalCommissionEarned"`
	ReferredBy            *uuid.UUID         `json:"referredBy,omitempty"`
	Referrals             []*domain.Referral `json:"referrals"`
}

// AffiliateStatsFor aggregates the user's referral network.
func (s *LedgerService) AffiliateStatsFor(ctx context.Context, userID uuid.UUID) (*AffiliateStats, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}

	referrals, err := s.referralRepo.ListByReferrer(ctx, userID)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, ref := range referrals {
		total = total.Add(ref.CommissionEarned)
	}

	return &AffiliateStats{
		AffiliateCode:         user.AffiliateCode,
		CommissionRate:        user.CommissionRate,
		TotalReferrals:        len(referrals),
		TotalCommissionEarned: total,
		ReferredBy:            user.ReferredBy,
		Referrals:             referrals,
	}, nil
}

// lockPurchase locks the buyer and, when the buyer was referred, the
// referrer, in the same ascending-ID order lockPair uses so purchases
// and transfers over the same pair cannot deadlock. The referral edge
// is immutable after registration, so the unlocked peek is safe. A
// missing referrer returns a nil second user and the commission is
// skipped.
func lockPurchase(ctx context.Context, users repository.UserRepository, buyerID uuid.UUID) (*domain.User, *domain.User, error) {
	peek, err := users.GetByID(ctx, buyerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, domain.ErrUserNotFound
		}
		return nil, nil, err
	}

	ids := []uuid.UUID{buyerID}
	if peek.ReferredBy != nil {
		referrerID := *peek.ReferredBy
		if bytes.Compare(referrerID[:], buyerID[:]) < 0 {
			ids = []uuid.UUID{referrerID, buyerID}
		} else {
			ids = []uuid.UUID{buyerID, referrerID}
		}
	}

	var buyer, referrer *domain.User
	for _, id := range ids {
		u, err := users.GetByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				if id == buyerID {
					return nil, nil, domain.ErrUserNotFound
				}
				continue
			}
			return nil, nil, err
		}
		if id == buyerID {
			buyer = u
		} else {
			referrer = u
		}
	}
	return buyer, referrer, nil
}

// lockPair locks both user rows in ascending-ID order and returns them
// as (sender, recipient). A missing sender is ErrUserNotFound, a
// missing recipient ErrRecipientNotFound.
func lockPair(ctx context.Context, users repository.UserRepository, fromID, toID uuid.UUID) (*domain.User, *domain.User, error) {
	firstID, secondID := fromID, toID
	if bytes.Compare(toID[:], fromID[:]) < 0 {
		firstID, secondID = toID, fromID
	}

	lock := func(id uuid.UUID) (*domain.User, error) {
		u, err := users.GetByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				if id == toID {
					return nil, domain.ErrRecipientNotFound
				}
				return nil, domain.ErrUserNotFound
			}
			return nil, err
		}
		return u, nil
	}

	first, err := lock(firstID)
	if err != nil {
		return nil, nil, err
	}
	second, err := lock(secondID)
	if err != nil {
		return nil, nil, err
	}

	if first.ID == fromID {
		return first, second, nil
	}
	return second, first, nil
}
