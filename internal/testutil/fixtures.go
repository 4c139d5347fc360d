package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/marc/credit-identity-api/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserBuilder creates test users with a builder pattern
type UserBuilder struct {
	username   string
	email      *string
	password   string
	role       domain.Role
	balance    decimal.Decimal
	isActive   bool
	referredBy *uuid.UUID
}

// NewUserBuilder creates a new UserBuilder with default values
func NewUserBuilder() *UserBuilder {
	return &UserBuilder{
		username: fmt.Sprintf("testuser_%s", uuid.New().String()[:8]),
		password: "testpassword123",
		role:     domain.RoleStandard,
		balance:  decimal.Zero,
		isActive: true,
	}
}

// WithUsername sets the username
func (b *UserBuilder) WithUsername(username string) *UserBuilder {
	b.username = username
	return b
}

// WithEmail sets the email
func (b *UserBuilder) WithEmail(email string) *UserBuilder {
	b.email = &email
	return b
}

// WithPassword sets the password
func (b *UserBuilder) WithPassword(password string) *UserBuilder {
	b.password = password
	return b
}

// WithRole sets the role
func (b *UserBuilder) WithRole(role domain.Role) *UserBuilder {
	b.role = role
	return b
}

// WithBalance sets the starting balance
func (b *UserBuilder) WithBalance(balance decimal.Decimal) *UserBuilder {
	b.balance = balance
	return b
}

// WithActive sets the active flag
func (b *UserBuilder) WithActive(active bool) *UserBuilder {
	b.isActive = active
	return b
}

// WithReferredBy sets the referring user
func (b *UserBuilder) WithReferredBy(referrerID uuid.UUID) *UserBuilder {
	b.referredBy = &referrerID
	return b
}

// Build creates the user in the database and returns the user with the raw password
func (b *UserBuilder) Build(t *testing.T, db *gorm.DB) (*domain.User, string) {
	t.Helper()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(b.password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	code := strings.ToUpper(uuid.New().String()[:10])
	user := &domain.User{
		ID:             uuid.New(),
		Username:       b.username,
		Email:          b.email,
		PasswordHash:   string(hashedPassword),
		Role:           b.role,
		Balance:        b.balance,
		AffiliateCode:  &code,
		ReferredBy:     b.referredBy,
		CommissionRate: decimal.NewFromInt(10),
		IsActive:       b.isActive,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	return user, b.password
}

// AuthTokens holds the token pair returned by the auth endpoints
type AuthTokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
	TokenType    string `json:"tokenType"`
}

// AuthResponse matches the API auth response
type AuthResponse struct {
	User struct {
		ID            string `json:"id"`
		Username      string `json:"username"`
		Role          string `json:"role"`
		AffiliateCode string `json:"affiliateCode"`
	} `json:"user"`
	Tokens AuthTokens `json:"tokens"`
}

// BuildAndAuthenticate creates a user via the register endpoint and
// returns the user together with its token pair
func (b *UserBuilder) BuildAndAuthenticate(t *testing.T, ts *TestServer) (*domain.User, AuthTokens) {
	t.Helper()

	reqBody := map[string]string{
		"username": b.username,
		"password": b.password,
	}
	if b.email != nil {
		reqBody["email"] = *b.email
	}
	body, _ := json.Marshal(reqBody)

	resp, err := http.Post(ts.APIURL("/auth/register"), "application/json", bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("failed to register user: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status code: %d", resp.StatusCode)
	}

	var authResp AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	userID, _ := uuid.Parse(authResp.User.ID)
	user, err := ts.Repos.User.GetByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("failed to load registered user: %v", err)
	}

	return user, authResp.Tokens
}

// Fund credits a user through the deposit operation so the balance and
// the ledger stay consistent
func Fund(t *testing.T, ts *TestServer, userID uuid.UUID, amount decimal.Decimal) {
	t.Helper()

	_, err := ts.Services.Ledger.AddCredit(context.Background(), userID, amount, domain.EntryDeposit, "Test deposit")
	if err != nil {
		t.Fatalf("failed to fund user: %v", err)
	}
}

// CreateAuthenticatedRequest creates an HTTP request with auth token
func CreateAuthenticatedRequest(t *testing.T, method, url string, body interface{}, token string) *http.Request {
	t.Helper()

	var bodyReader *bytes.Buffer
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	} else {
		bodyReader = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, bodyReader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// DoAuthenticated sends an authenticated request and returns the response
func DoAuthenticated(t *testing.T, method, url string, body interface{}, token string) *http.Response {
	t.Helper()

	req := CreateAuthenticatedRequest(t, method, url, body, token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}
