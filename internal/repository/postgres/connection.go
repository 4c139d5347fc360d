package postgres

import (
	"context"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/marc/credit-identity-api/internal/domain"
	"github.com/marc/credit-identity-api/internal/repository"
)

func NewConnection(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
		// Unique-constraint violations surface as gorm.ErrDuplicatedKey
		// so services can map them to the business taxonomy.
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	// Auto-migrate tables
	err = db.AutoMigrate(
		&domain.User{},
		&domain.CreditEntry{},
		&domain.Referral{},
		&domain.Session{},
		&domain.Application{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}

func NewRepositories(db *gorm.DB) *repository.Repositories {
	return &repository.Repositories{
		User:        NewUserRepository(db),
		CreditEntry: NewCreditEntryRepository(db),
		Referral:    NewReferralRepository(db),
		Session:     NewSessionRepository(db),
		Application: NewApplicationRepository(db),
	}
}

type unitOfWork struct {
	db *gorm.DB
}

// NewUnitOfWork returns a repository.UnitOfWork backed by a gorm
// transaction.
func NewUnitOfWork(db *gorm.DB) repository.UnitOfWork {
	return &unitOfWork{db: db}
}

func (u *unitOfWork) Do(ctx context.Context, fn func(ctx context.Context, repos *repository.Repositories) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewRepositories(tx))
	})
}
