package testutil

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertStatusCode verifies the HTTP response status code
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	assert.Equal(t, expected, resp.StatusCode, "unexpected status code")
}

// AssertJSONResponse decodes JSON response into v and verifies success
func AssertJSONResponse(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")

	err = json.Unmarshal(body, v)
	require.NoError(t, err, "failed to unmarshal response: %s", string(body))
}

// AssertErrorResponse verifies error response with expected status and message
func AssertErrorResponse(t *testing.T, resp *http.Response, expectedStatus int, expectedMessage string) {
	t.Helper()

	assert.Equal(t, expectedStatus, resp.StatusCode, "unexpected status code")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")

	// Error responses are plain text in this API
	assert.Contains(t, string(body), expectedMessage, "error message mismatch")
}

// AssertDecimalEqual compares decimals by value, not representation
func AssertDecimalEqual(t *testing.T, expected, actual decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, expected.Equal(actual), "expected %s, got %s %v", expected, actual, msgAndArgs)
}

// AssertBalance reloads the user and checks its stored balance
func AssertBalance(t *testing.T, ts *TestServer, userID uuid.UUID, expected decimal.Decimal) {
	t.Helper()

	user, err := ts.Repos.User.GetByID(context.Background(), userID)
	require.NoError(t, err, "failed to load user")
	assert.True(t, expected.Equal(user.Balance), "expected balance %s, got %s", expected, user.Balance)
}
