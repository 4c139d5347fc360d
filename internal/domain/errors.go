package domain

import "errors"

// Authentication and session errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDeactivated = errors.New("account is deactivated")
	ErrInvalidApplication = errors.New("invalid or inactive application")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrSessionNotFound    = errors.New("invalid or expired session")
	ErrUserInactive       = errors.New("user not found or inactive")
	ErrMissingToken       = errors.New("access token required")
	ErrDuplicateIdentity  = errors.New("username, email or affiliate code already exists")
	ErrUserNotFound       = errors.New("user not found")
)

// Ledger errors
var (
	ErrInvalidAmount       = errors.New("amount must be greater than 0")
	ErrInsufficientBalance = errors.New("insufficient credit balance")
	ErrRecipientNotFound   = errors.New("recipient not found")
)
