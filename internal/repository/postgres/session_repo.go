package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marc/credit-identity-api/internal/domain"
)

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *sessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *domain.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *sessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	var session domain.Session
	err := r.db.WithContext(ctx).First(&session, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) GetLiveByAccessToken(ctx context.Context, token string) (*domain.Session, error) {
	return r.getLive(ctx, "access_token = ?", token)
}

func (r *sessionRepository) GetLiveByRefreshToken(ctx context.Context, token string) (*domain.Session, error) {
	return r.getLive(ctx, "refresh_token = ?", token)
}

func (r *sessionRepository) getLive(ctx context.Context, query string, token string) (*domain.Session, error) {
	var session domain.Session
	err := r.db.WithContext(ctx).
		Where(query, token).
		Where("revoked = ?", false).
		Where("expires_at > ?", time.Now()).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Revoke is a single guarded UPDATE; of two concurrent callers exactly
// one observes rows-affected = 1.
func (r *sessionRepository) Revoke(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("id = ? AND revoked = ?", id, false).
		Updates(map[string]interface{}{
			"revoked":    true,
			"revoked_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *sessionRepository) UpdateLastActivity(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("id = ?", id).
		Update("last_activity", at).Error
}

func (r *sessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&domain.Session{})
	return res.RowsAffected, res.Error
}
