package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/marc/credit-identity-api/internal/domain"
)

type referralRepository struct {
	db *gorm.DB
}

func NewReferralRepository(db *gorm.DB) *referralRepository {
	return &referralRepository{db: db}
}

func (r *referralRepository) Create(ctx context.Context, referral *domain.Referral) error {
	return r.db.WithContext(ctx).Create(referral).Error
}

func (r *referralRepository) ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]*domain.Referral, error) {
	var referrals []*domain.Referral
	err := r.db.WithContext(ctx).
		Where("referrer_id = ?", referrerID).
		Order("joined_at ASC").
		Find(&referrals).Error
	if err != nil {
		return nil, err
	}
	return referrals, nil
}

func (r *referralRepository) GetByReferred(ctx context.Context, referredID uuid.UUID) (*domain.Referral, error) {
	var referral domain.Referral
	err := r.db.WithContext(ctx).First(&referral, "referred_id = ?", referredID).Error
	if err != nil {
		return nil, err
	}
	return &referral, nil
}

func (r *referralRepository) AddCommission(ctx context.Context, referrerID, referredID uuid.UUID, amount decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&domain.Referral{}).
		Where("referrer_id = ? AND referred_id = ?", referrerID, referredID).
		Update("commission_earned", gorm.Expr("commission_earned + ?", amount)).Error
}
