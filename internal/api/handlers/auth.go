package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marc/credit-identity-api/internal/api/middleware"
	"github.com/marc/credit-identity-api/internal/domain"
	"github.com/marc/credit-identity-api/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type RegisterRequest struct {
	Username      string `json:"username"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Country       string `json:"country"`
	City          string `json:"city"`
	AffiliateCode string `json:"affiliateCode"`
}

type LoginRequest struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	ApplicationID string `json:"applicationId"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// UserResponse is the sanitized user projection: no password hash, no
// 2FA secret, no raw credit history.
type UserResponse struct {
	ID               string          `json:"id"`
	Username         string          `json:"username"`
	Email            string          `json:"email,omitempty"`
	FullName         string          `json:"fullName,omitempty"`
	Country          string          `json:"country,omitempty"`
	City             string          `json:"city,omitempty"`
	Role             string          `json:"role"`
	Balance          decimal.Decimal `json:"balance"`
	AffiliateCode    string          `json:"affiliateCode,omitempty"`
	IsVerified       bool            `json:"isVerified"`
	TwoFactorEnabled bool            `json:"twoFactorEnabled"`
}

type AuthResponse struct {
	User   UserResponse      `json:"user"`
	Tokens service.TokenPair `json:"tokens"`
}

func toUserResponse(user *domain.User) UserResponse {
	resp := UserResponse{
		ID:               user.ID.String(),
		Username:         user.Username,
		FullName:         user.FullName(),
		Country:          user.Country,
		City:             user.City,
		Role:             user.Role.String(),
		Balance:          user.Balance,
		IsVerified:       user.IsVerified,
		TwoFactorEnabled: user.TwoFactorEnabled,
	}
	if user.Email != nil {
		resp.Email = *user.Email
	}
	if user.AffiliateCode != nil {
		resp.AffiliateCode = *user.AffiliateCode
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		http.Error(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	result, err := h.authService.Register(r.Context(), service.RegisterInput{
		Username:      req.Username,
		Email:         req.Email,
		Password:      req.Password,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Country:       req.Country,
		City:          req.City,
		AffiliateCode: req.AffiliateCode,
		IPAddress:     r.RemoteAddr,
		UserAgent:     r.UserAgent(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateIdentity) {
			http.Error(w, "Username or email already exists", http.StatusConflict)
			return
		}
		log.Printf("ERROR [handlers.Register] %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{
		User:   toUserResponse(result.User),
		Tokens: result.Tokens,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		http.Error(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	input := service.LoginInput{
		Identifier: req.Username,
		Password:   req.Password,
		IPAddress:  r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	}
	if req.ApplicationID != "" {
		appID, err := uuid.Parse(req.ApplicationID)
		if err != nil {
			http.Error(w, "Invalid or inactive application", http.StatusBadRequest)
			return
		}
		input.ApplicationID = &appID
	}

	result, err := h.authService.Login(r.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		case errors.Is(err, domain.ErrAccountDeactivated):
			http.Error(w, "Account is deactivated", http.StatusForbidden)
		case errors.Is(err, domain.ErrInvalidApplication):
			http.Error(w, "Invalid or inactive application", http.StatusBadRequest)
		default:
			log.Printf("ERROR [handlers.Login] %v", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		User:   toUserResponse(result.User),
		Tokens: result.Tokens,
	})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.RefreshToken == "" {
		http.Error(w, "Refresh token required", http.StatusBadRequest)
		return
	}

	result, err := h.authService.Refresh(r.Context(), req.RefreshToken, r.RemoteAddr, r.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTokenRevoked):
			http.Error(w, "Token has been revoked", http.StatusUnauthorized)
		case errors.Is(err, domain.ErrTokenExpired):
			http.Error(w, "Refresh token expired", http.StatusUnauthorized)
		case errors.Is(err, domain.ErrInvalidToken):
			http.Error(w, "Invalid token", http.StatusUnauthorized)
		case errors.Is(err, domain.ErrSessionNotFound):
			http.Error(w, "Invalid or expired refresh token", http.StatusUnauthorized)
		case errors.Is(err, domain.ErrUserInactive):
			http.Error(w, "User not found or inactive", http.StatusUnauthorized)
		default:
			log.Printf("ERROR [handlers.Refresh] %v", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"tokens": result.Tokens})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(principal.User))
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.authService.Logout(r.Context(), principal.Session); err != nil {
		log.Printf("ERROR [handlers.Logout] %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		http.Error(w, "Current and new password are required", http.StatusBadRequest)
		return
	}

	err := h.authService.ChangePassword(r.Context(), principal.User.ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			http.Error(w, "Current password is incorrect", http.StatusBadRequest)
			return
		}
		log.Printf("ERROR [handlers.ChangePassword] %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
