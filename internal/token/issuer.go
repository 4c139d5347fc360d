package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/marc/credit-identity-api/internal/domain"
)

// Issuer signs and verifies access and refresh tokens. It holds no
// mutable state; everything it produces is a function of its secrets,
// its TTLs and the claims supplied by the caller.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

func (i *Issuer) AccessTTL() time.Duration  { return i.accessTTL }
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

// IssueAccess mints a signed access token for the user. The jti makes
// every issued token value globally unique even within one clock tick.
func (i *Issuer) IssueAccess(userID uuid.UUID, role domain.Role, applicationID *uuid.UUID) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(i.accessTTL)

	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        newJTI(),
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role: role.String(),
	}
	if applicationID != nil {
		claims.ApplicationID = applicationID.String()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.accessSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// IssueRefresh mints a signed refresh token for the user.
func (i *Issuer) IssueRefresh(userID uuid.UUID) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(i.refreshTTL)

	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        newJTI(),
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TokenType: refreshTokenType,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.refreshSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// VerifyAccess validates signature and expiry of an access token.
// Malformed or wrongly signed tokens (including refresh tokens, which
// use a different secret) fail with domain.ErrInvalidToken; tokens past
// their expiry fail with domain.ErrTokenExpired.
func (i *Issuer) VerifyAccess(tokenString string) (*AccessClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, keyFunc(i.accessSecret))
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}

// VerifyRefresh validates signature, expiry and the refresh marker of a
// refresh token.
func (i *Issuer) VerifyRefresh(tokenString string) (*RefreshClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &RefreshClaims{}, keyFunc(i.refreshSecret))
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := parsed.Claims.(*RefreshClaims)
	if !ok || !parsed.Valid || claims.TokenType != refreshTokenType {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}
