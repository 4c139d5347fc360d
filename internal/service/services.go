package service

import (
	"github.com/marc/credit-identity-api/internal/cache"
	"github.com/marc/credit-identity-api/internal/config"
	"github.com/marc/credit-identity-api/internal/repository"
	"github.com/marc/credit-identity-api/internal/token"
)

type Services struct {
	Auth   *AuthService
	Ledger *LedgerService
}

func NewServices(repos *repository.Repositories, uow repository.UnitOfWork, revocations cache.Cache, cfg *config.Config) *Services {
	issuer := token.NewIssuer(cfg.JWTSecret, cfg.JWTRefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	return &Services{
		Auth:   NewAuthService(repos, uow, issuer, revocations, cfg.BcryptCost),
		Ledger: NewLedgerService(repos, uow),
	}
}
