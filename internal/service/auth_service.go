package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/marc/credit-identity-api/internal/cache"
	"github.com/marc/credit-identity-api/internal/domain"
	"github.com/marc/credit-identity-api/internal/repository"
	"github.com/marc/credit-identity-api/internal/token"
)

// revocationKeyPrefix namespaces blacklisted token values in the
// revocation cache.
const revocationKeyPrefix = "token:revoked:"

func revocationKey(tokenValue string) string {
	return revocationKeyPrefix + tokenValue
}

// AuthService owns the session lifecycle: login, refresh rotation,
// logout and request authentication.
type AuthService struct {
	userRepo     repository.UserRepository
	sessionRepo  repository.SessionRepository
	appRepo      repository.ApplicationRepository
	referralRepo repository.ReferralRepository
	uow          repository.UnitOfWork
	issuer       *token.Issuer
	revocations  cache.Cache
	bcryptCost   int
}

func NewAuthService(
	repos *repository.Repositories,
	uow repository.UnitOfWork,
	issuer *token.Issuer,
	revocations cache.Cache,
	bcryptCost int,
) *AuthService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		userRepo:     repos.User,
		sessionRepo:  repos.Session,
		appRepo:      repos.Application,
		referralRepo: repos.Referral,
		uow:          uow,
		issuer:       issuer,
		revocations:  revocations,
		bcryptCost:   bcryptCost,
	}
}

type RegisterInput struct {
	Username      string
	Email         string
	Password      string
	FirstName     string
	LastName      string
	Country       string
	City          string
	AffiliateCode string
	IPAddress     string
	UserAgent     string
}

type LoginInput struct {
	Identifier    string // username or email
	Password      string
	ApplicationID *uuid.UUID
	IPAddress     string
	UserAgent     string
}

// TokenPair is the credential payload returned to clients.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
	TokenType    string `json:"tokenType"`
}

type AuthResult struct {
	User    *domain.User
	Session *domain.Session
	Tokens  TokenPair
}

// Principal is an authenticated caller: the user plus the session the
// presented token belongs to.
type Principal struct {
	User    *domain.User
	Session *domain.Session
}

// Register creates a user, wires the referral edge when a valid
// affiliate code is supplied, and opens a first session.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	code := generateAffiliateCode(input.Username)
	user := &domain.User{
		ID:             uuid.New(),
		Username:       input.Username,
		PasswordHash:   string(hashedPassword),
		FirstName:      input.FirstName,
		LastName:       input.LastName,
		Country:        input.Country,
		City:           input.City,
		Role:           domain.RoleStandard,
		Balance:        decimal.Zero,
		AffiliateCode:  &code,
		CommissionRate: decimal.NewFromInt(10),
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if input.Email != "" {
		email := strings.ToLower(strings.TrimSpace(input.Email))
		user.Email = &email
	}

	// User row and referral edge commit together; an unknown affiliate
	// code is ignored, as the original system does.
	err = s.uow.Do(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		var referrer *domain.User
		if input.AffiliateCode != "" {
			ref, err := repos.User.GetByAffiliateCode(ctx, input.AffiliateCode)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			referrer = ref
		}
		if referrer != nil {
			user.ReferredBy = &referrer.ID
		}

		if err := repos.User.Create(ctx, user); err != nil {
			return err
		}

		if referrer != nil {
			return repos.Referral.Create(ctx, &domain.Referral{
				ID:               uuid.New(),
				ReferrerID:       referrer.ID,
				ReferredID:       user.ID,
				JoinedAt:         now,
				CommissionEarned: decimal.Zero,
			})
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.ErrDuplicateIdentity
		}
		return nil, err
	}

	return s.startSession(ctx, user, nil, input.IPAddress, input.UserAgent)
}

// Login authenticates credentials and opens a new session.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	user, err := s.userRepo.GetByUsernameOrEmail(ctx, input.Identifier)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	// bcrypt's comparison is constant-time.
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, domain.ErrAccountDeactivated
	}

	if input.ApplicationID != nil {
		app, err := s.appRepo.GetByID(ctx, *input.ApplicationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, domain.ErrInvalidApplication
			}
			return nil, err
		}
		if !app.IsActive {
			return nil, domain.ErrInvalidApplication
		}
	}

	// Column-scoped write: the user row is not locked here and a full
	// row write could clobber a concurrently committed balance change.
	now := time.Now()
	if err := s.userRepo.UpdateLoginStats(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLogin = &now
	user.LoginCount++

	return s.startSession(ctx, user, input.ApplicationID, input.IPAddress, input.UserAgent)
}

// Refresh rotates a token pair. The presented refresh token is spent
// permanently: the old session is revoked and its access token
// blacklisted before the replacement pair exists, so a concurrent
// second refresh with the same token finds no live session.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, ipAddress, userAgent string) (*AuthResult, error) {
	if _, found := s.revocations.Get(ctx, revocationKey(refreshToken)); found {
		return nil, domain.ErrTokenRevoked
	}

	if _, err := s.issuer.VerifyRefresh(refreshToken); err != nil {
		return nil, err
	}

	session, err := s.sessionRepo.GetLiveByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserInactive
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}

	revoked, err := s.sessionRepo.Revoke(ctx, session.ID, time.Now())
	if err != nil {
		return nil, err
	}
	if !revoked {
		// Lost the race against another refresh of the same session.
		return nil, domain.ErrSessionNotFound
	}

	s.revocations.Set(ctx, revocationKey(session.AccessToken), "revoked", time.Until(session.AccessExpiresAt))

	return s.startSession(ctx, user, session.ApplicationID, ipAddress, userAgent)
}

// Logout revokes the caller's session and blacklists both of its
// tokens for their remaining lifetimes.
func (s *AuthService) Logout(ctx context.Context, session *domain.Session) error {
	if _, err := s.sessionRepo.Revoke(ctx, session.ID, time.Now()); err != nil {
		return err
	}

	s.revocations.Set(ctx, revocationKey(session.AccessToken), "revoked", time.Until(session.AccessExpiresAt))
	s.revocations.Set(ctx, revocationKey(session.RefreshToken), "revoked", time.Until(session.ExpiresAt))
	return nil
}

// Authenticate resolves a bearer token to its principal. The cache is
// consulted before the durable store so revocations are honored even
// before the session record has converged; the durable record remains
// the source of truth once the cache entry expires.
func (s *AuthService) Authenticate(ctx context.Context, bearerToken string) (*Principal, error) {
	if bearerToken == "" {
		return nil, domain.ErrMissingToken
	}

	if _, found := s.revocations.Get(ctx, revocationKey(bearerToken)); found {
		return nil, domain.ErrTokenRevoked
	}

	if _, err := s.issuer.VerifyAccess(bearerToken); err != nil {
		return nil, err
	}

	session, err := s.sessionRepo.GetLiveByAccessToken(ctx, bearerToken)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserInactive
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}

	if err := s.sessionRepo.UpdateLastActivity(ctx, session.ID, time.Now()); err != nil {
		return nil, err
	}

	return &Principal{User: user, Session: session}, nil
}

// ChangePassword verifies the current password before storing a new
// hash.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrUserNotFound
		}
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return domain.ErrInvalidCredentials
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return err
	}
	return s.userRepo.UpdatePassword(ctx, user.ID, string(hashed))
}

type UpdateProfileInput struct {
	FirstName *string
	LastName  *string
	Country   *string
	City      *string
}

// UpdateProfile applies the allowed profile fields only.
func (s *AuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, input UpdateProfileInput) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}

	if input.FirstName != nil {
		user.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		user.LastName = *input.LastName
	}
	if input.Country != nil {
		user.Country = *input.Country
	}
	if input.City != nil {
		user.City = *input.City
	}

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// ListUsers backs the admin listing; callers must hold
// Role.CanManageUsers.
func (s *AuthService) ListUsers(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.userRepo.List(ctx, limit, offset)
}

func (s *AuthService) startSession(ctx context.Context, user *domain.User, applicationID *uuid.UUID, ipAddress, userAgent string) (*AuthResult, error) {
	accessToken, accessExpiresAt, err := s.issuer.IssueAccess(user.ID, user.Role, applicationID)
	if err != nil {
		return nil, err
	}
	refreshToken, refreshExpiresAt, err := s.issuer.IssueRefresh(user.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &domain.Session{
		ID:              uuid.New(),
		UserID:          user.ID,
		ApplicationID:   applicationID,
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		IPAddress:       ipAddress,
		UserAgent:       userAgent,
		AccessExpiresAt: accessExpiresAt,
		ExpiresAt:       refreshExpiresAt,
		LastActivity:    now,
		CreatedAt:       now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}

	return &AuthResult{
		User:    user,
		Session: session,
		Tokens: TokenPair{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			ExpiresIn:    int64(s.issuer.AccessTTL().Seconds()),
			TokenType:    "Bearer",
		},
	}, nil
}

const affiliateCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateAffiliateCode builds codes like NEW7F3KQ2XT: a username
// prefix plus 8 random characters.
func generateAffiliateCode(username string) string {
	// Truncate by runes so multi-byte usernames keep a valid prefix.
	prefix := []rune(strings.ToUpper(username))
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}

	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process is in serious trouble.
		panic(fmt.Sprintf("affiliate code generation: %v", err))
	}
	for i, b := range buf {
		buf[i] = affiliateCodeCharset[int(b)%len(affiliateCodeCharset)]
	}
	return string(prefix) + string(buf)
}
