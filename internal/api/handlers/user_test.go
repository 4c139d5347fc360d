package handlers_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/marc/credit-identity-api/internal/domain"
	"github.com/marc/credit-identity-api/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProfileEndpoint(t *testing.T) {
	ts := testutil.NewTestServer(t)

	_, tokens := testutil.NewUserBuilder().
		WithUsername("alice").
		BuildAndAuthenticate(t, ts)

	resp := testutil.DoAuthenticated(t, http.MethodGet, ts.APIURL("/users/me"), nil, tokens.AccessToken)
	defer resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	var profile struct {
		Username string          `json:"username"`
		Balance  decimal.Decimal `json:"balance"`
	}
	testutil.AssertJSONResponse(t, resp, &profile)
	assert.Equal(t, "alice", profile.Username)
	assert.True(t, profile.Balance.IsZero())
}

func TestUpdateProfileEndpoint(t *testing.T) {
	ts := testutil.NewTestServer(t)

	_, tokens := testutil.NewUserBuilder().
		WithUsername("bob").
		BuildAndAuthenticate(t, ts)

	resp := testutil.DoAuthenticated(t, http.MethodPut, ts.APIURL("/users/me"), map[string]string{
		"firstName": "Bob",
		"lastName":  "Builder",
		"country":   "NL",
	}, tokens.AccessToken)
	defer resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	var profile struct {
		FullName string `json:"fullName"`
		Country  string `json:"country"`
	}
	testutil.AssertJSONResponse(t, resp, &profile)
	assert.Equal(t, "Bob Builder", profile.FullName)
	assert.Equal(t, "NL", profile.Country)
}

func TestTransferEndpoint(t *testing.T) {
	ts := testutil.NewTestServer(t)

	sender, tokens := testutil.NewUserBuilder().
		WithUsername("sender").
		BuildAndAuthenticate(t, ts)
	recipient, _ := testutil.NewUserBuilder().
		WithUsername("recipient").
		BuildAndAuthenticate(t, ts)

	testutil.Fund(t, ts, sender.ID, decimal.NewFromInt(100))

	resp := testutil.DoAuthenticated(t, http.MethodPost, ts.APIURL("/users/me/credit/transfer"), map[string]interface{}{
		"toUserId":    recipient.ID.String(),
		"amount":      "40",
		"description": "rent",
	}, tokens.AccessToken)
	defer resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	var result struct {
		ReferenceID string          `json:"referenceId"`
		NewBalance  decimal.Decimal `json:"newBalance"`
	}
	testutil.AssertJSONResponse(t, resp, &result)
	assert.NotEmpty(t, result.ReferenceID)
	testutil.AssertDecimalEqual(t, decimal.NewFromInt(60), result.NewBalance)

	testutil.AssertBalance(t, ts, recipient.ID, decimal.NewFromInt(40))
}

func TestTransferEndpoint_Errors(t *testing.T) {
	ts := testutil.NewTestServer(t)

	sender, tokens := testutil.NewUserBuilder().
		WithUsername("poor").
		BuildAndAuthenticate(t, ts)
	recipient, _ := testutil.NewUserBuilder().
		WithUsername("other").
		BuildAndAuthenticate(t, ts)

	testutil.Fund(t, ts, sender.ID, decimal.NewFromInt(5))

	tests := []struct {
		name       string
		body       map[string]interface{}
		wantStatus int
		wantError  string
	}{
		{
			name:       "insufficient balance",
			body:       map[string]interface{}{"toUserId": recipient.ID.String(), "amount": "6"},
			wantStatus: http.StatusBadRequest,
			wantError:  "Insufficient credit balance",
		},
		{
			name:       "zero amount",
			body:       map[string]interface{}{"toUserId": recipient.ID.String(), "amount": "0"},
			wantStatus: http.StatusBadRequest,
			wantError:  "Amount must be greater than 0",
		},
		{
			name:       "unknown recipient",
			body:       map[string]interface{}{"toUserId": "11111111-2222-3333-4444-555555555555", "amount": "1"},
			wantStatus: http.StatusNotFound,
			wantError:  "Recipient not found",
		},
		{
			name:       "malformed recipient id",
			body:       map[string]interface{}{"toUserId": "not-a-uuid", "amount": "1"},
			wantStatus: http.StatusBadRequest,
			wantError:  "Recipient and amount are required",
		},
		{
			name:       "self transfer",
			body:       map[string]interface{}{"toUserId": sender.ID.String(), "amount": "1"},
			wantStatus: http.StatusBadRequest,
			wantError:  "Amount must be greater than 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := testutil.DoAuthenticated(t, http.MethodPost, ts.APIURL("/users/me/credit/transfer"), tt.body, tokens.AccessToken)
			defer resp.Body.Close()
			testutil.AssertErrorResponse(t, resp, tt.wantStatus, tt.wantError)
		})
	}

	testutil.AssertBalance(t, ts, sender.ID, decimal.NewFromInt(5))
}

func TestDepositAndWithdrawEndpoints(t *testing.T) {
	ts := testutil.NewTestServer(t)

	user, tokens := testutil.NewUserBuilder().
		WithUsername("saver").
		BuildAndAuthenticate(t, ts)

	deposit := testutil.DoAuthenticated(t, http.MethodPost, ts.APIURL("/users/me/credit/deposit"), map[string]interface{}{
		"amount":      "25.50",
		"description": "Card deposit",
	}, tokens.AccessToken)
	defer deposit.Body.Close()
	testutil.AssertStatusCode(t, deposit, http.StatusOK)

	withdraw := testutil.DoAuthenticated(t, http.MethodPost, ts.APIURL("/users/me/credit/withdraw"), map[string]interface{}{
		"amount": "10",
	}, tokens.AccessToken)
	defer withdraw.Body.Close()
	testutil.AssertStatusCode(t, withdraw, http.StatusOK)

	testutil.AssertBalance(t, ts, user.ID, decimal.RequireFromString("15.50"))

	overdraw := testutil.DoAuthenticated(t, http.MethodPost, ts.APIURL("/users/me/credit/withdraw"), map[string]interface{}{
		"amount": "100",
	}, tokens.AccessToken)
	defer overdraw.Body.Close()
	testutil.AssertErrorResponse(t, overdraw, http.StatusBadRequest, "Insufficient credit balance")
}

func TestPurchaseEndpoint(t *testing.T) {
	ts := testutil.NewTestServer(t)

	referrer, _ := testutil.NewUserBuilder().
		WithUsername("earner").
		BuildAndAuthenticate(t, ts)

	referrerRow, err := ts.Repos.User.GetByID(context.Background(), referrer.ID)
	require.NoError(t, err)
	require.NotNil(t, referrerRow.AffiliateCode)

	// Register through the API with the referrer's code so the edge
	// exists.
	resp := postJSON(t, ts.APIURL("/auth/register"), map[string]string{
		"username":      "shopper",
		"password":      "password123",
		"affiliateCode": *referrerRow.AffiliateCode,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var authResp testutil.AuthResponse
	testutil.AssertJSONResponse(t, resp, &authResp)
	buyerTokens := authResp.Tokens

	buyer, err := ts.Repos.User.GetByUsername(context.Background(), "shopper")
	require.NoError(t, err)
	require.NotNil(t, buyer.ReferredBy)
	testutil.Fund(t, ts, buyer.ID, decimal.NewFromInt(100))

	purchase := testutil.DoAuthenticated(t, http.MethodPost, ts.APIURL("/users/me/credit/purchase"), map[string]interface{}{
		"amount":      "40",
		"description": "Pro plan",
	}, buyerTokens.AccessToken)
	defer purchase.Body.Close()
	testutil.AssertStatusCode(t, purchase, http.StatusOK)

	testutil.AssertBalance(t, ts, buyer.ID, decimal.NewFromInt(60))
	testutil.AssertBalance(t, ts, referrer.ID, decimal.NewFromInt(4))
}

func TestCreditHistoryEndpoint(t *testing.T) {
	ts := testutil.NewTestServer(t)

	user, tokens := testutil.NewUserBuilder().
		WithUsername("historian").
		BuildAndAuthenticate(t, ts)

	testutil.Fund(t, ts, user.ID, decimal.NewFromInt(30))
	testutil.Fund(t, ts, user.ID, decimal.NewFromInt(20))

	resp := testutil.DoAuthenticated(t, http.MethodGet, ts.APIURL("/users/me/credit?page=1&limit=10"), nil, tokens.AccessToken)
	defer resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	var history struct {
		Balance decimal.Decimal `json:"currentBalance"`
		History []struct {
			Kind   domain.EntryKind `json:"kind"`
			Amount decimal.Decimal  `json:"amount"`
		} `json:"history"`
		Total int64 `json:"total"`
	}
	testutil.AssertJSONResponse(t, resp, &history)
	assert.Equal(t, int64(2), history.Total)
	testutil.AssertDecimalEqual(t, decimal.NewFromInt(50), history.Balance)

	filtered := testutil.DoAuthenticated(t, http.MethodGet, ts.APIURL("/users/me/credit?type=withdrawal"), nil, tokens.AccessToken)
	defer filtered.Body.Close()
	testutil.AssertStatusCode(t, filtered, http.StatusOK)

	invalid := testutil.DoAuthenticated(t, http.MethodGet, ts.APIURL("/users/me/credit?type=bogus"), nil, tokens.AccessToken)
	defer invalid.Body.Close()
	testutil.AssertErrorResponse(t, invalid, http.StatusBadRequest, "Invalid entry type")
}

func TestAffiliateStatsEndpoint(t *testing.T) {
	ts := testutil.NewTestServer(t)

	_, tokens := testutil.NewUserBuilder().
		WithUsername("lone").
		BuildAndAuthenticate(t, ts)

	resp := testutil.DoAuthenticated(t, http.MethodGet, ts.APIURL("/users/me/affiliate"), nil, tokens.AccessToken)
	defer resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	var stats struct {
		AffiliateCode  *string         `json:"affiliateCode"`
		CommissionRate decimal.Decimal `json:"commissionRate"`
		TotalReferrals int             `json:"totalReferrals"`
	}
	testutil.AssertJSONResponse(t, resp, &stats)
	require.NotNil(t, stats.AffiliateCode)
	assert.Equal(t, 0, stats.TotalReferrals)
	testutil.AssertDecimalEqual(t, decimal.NewFromInt(10), stats.CommissionRate)
}

func TestAdminListUsersEndpoint(t *testing.T) {
	ts := testutil.NewTestServer(t)

	_, standardTokens := testutil.NewUserBuilder().
		WithUsername("pleb").
		BuildAndAuthenticate(t, ts)

	// Promote a second user to admin directly in the store, then log in.
	_, password := testutil.NewUserBuilder().
		WithUsername("root").
		WithRole(domain.RoleAdmin).
		Build(t, ts.DB.DB)

	login := postJSON(t, ts.APIURL("/auth/login"), map[string]string{
		"username": "root",
		"password": password,
	})
	defer login.Body.Close()
	require.Equal(t, http.StatusOK, login.StatusCode)

	var adminAuth testutil.AuthResponse
	testutil.AssertJSONResponse(t, login, &adminAuth)

	forbidden := testutil.DoAuthenticated(t, http.MethodGet, ts.APIURL("/admin/users"), nil, standardTokens.AccessToken)
	defer forbidden.Body.Close()
	testutil.AssertErrorResponse(t, forbidden, http.StatusForbidden, "Insufficient role privileges")

	resp := testutil.DoAuthenticated(t, http.MethodGet, ts.APIURL("/admin/users"), nil, adminAuth.Tokens.AccessToken)
	defer resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	var listing struct {
		Users []struct {
			Username string `json:"username"`
		} `json:"users"`
	}
	testutil.AssertJSONResponse(t, resp, &listing)
	assert.Len(t, listing.Users, 2)
}
