package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/marc/credit-identity-api/internal/domain"
)

type creditEntryRepository struct {
	db *gorm.DB
}

func NewCreditEntryRepository(db *gorm.DB) *creditEntryRepository {
	return &creditEntryRepository{db: db}
}

func (r *creditEntryRepository) Append(ctx context.Context, entry *domain.CreditEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *creditEntryRepository) ListByUser(ctx context.Context, userID uuid.UUID, kind domain.EntryKind, limit, offset int) ([]*domain.CreditEntry, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}

	var entries []*domain.CreditEntry
	err := q.Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *creditEntryRepository) CountByUser(ctx context.Context, userID uuid.UUID, kind domain.EntryKind) (int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.CreditEntry{}).Where("user_id = ?", userID)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *creditEntryRepository) SumByUser(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&domain.CreditEntry{}).
		Where("user_id = ?", userID).
		Select("SUM(amount)").
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}
