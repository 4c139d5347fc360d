package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/marc/credit-identity-api/internal/domain"
	"github.com/marc/credit-identity-api/internal/repository/postgres"
	"github.com/marc/credit-identity-api/internal/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUserRepository_CreateAndGet(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().
		WithUsername("alice").
		WithEmail("alice@example.com").
		Build(t, testDB.DB)

	found, err := repos.User.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", found.Username)
	assert.Equal(t, domain.RoleStandard, found.Role)
	assert.True(t, found.IsActive)

	_, err = repos.User.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserRepository_GetByUsernameOrEmail(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().
		WithUsername("bob").
		WithEmail("bob@example.com").
		Build(t, testDB.DB)

	tests := []struct {
		name       string
		identifier string
		wantErr    bool
	}{
		{name: "by username", identifier: "bob"},
		{name: "by email", identifier: "bob@example.com"},
		{name: "unknown identifier", identifier: "nobody", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := repos.User.GetByUsernameOrEmail(ctx, tt.identifier)
			if tt.wantErr {
				assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, user.ID, found.ID)
		})
	}
}

func TestUserRepository_GetByAffiliateCode(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	require.NotNil(t, user.AffiliateCode)

	found, err := repos.User.GetByAffiliateCode(ctx, *user.AffiliateCode)
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = repos.User.GetByAffiliateCode(ctx, "NOSUCHCODE")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserRepository_DuplicateConstraints(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	ctx := context.Background()

	existing, _ := testutil.NewUserBuilder().
		WithUsername("charlie").
		WithEmail("charlie@example.com").
		Build(t, testDB.DB)

	tests := []struct {
		name string
		user func() *domain.User
	}{
		{
			name: "duplicate username",
			user: func() *domain.User {
				return &domain.User{ID: uuid.New(), Username: "charlie", PasswordHash: "x"}
			},
		},
		{
			name: "duplicate email",
			user: func() *domain.User {
				email := "charlie@example.com"
				return &domain.User{ID: uuid.New(), Username: "charlie2", Email: &email, PasswordHash: "x"}
			},
		},
		{
			name: "duplicate affiliate code",
			user: func() *domain.User {
				return &domain.User{ID: uuid.New(), Username: "charlie3", PasswordHash: "x", AffiliateCode: existing.AffiliateCode}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repos.User.Create(ctx, tt.user())
			assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
		})
	}
}

func TestUserRepository_ScopedWritesPreserveBalance(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().
		WithUsername("racer").
		WithBalance(decimal.NewFromInt(100)).
		Build(t, testDB.DB)

	// Snapshot the row, then let a ledger debit commit behind its back.
	stale, err := repos.User.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.NoError(t, testDB.DB.Model(&domain.User{}).
		Where("id = ?", user.ID).
		Update("balance", decimal.NewFromInt(60)).Error)

	// None of the non-ledger writers may carry the stale balance back.
	require.NoError(t, repos.User.UpdateLoginStats(ctx, stale.ID, time.Now()))

	stale.FirstName = "Ada"
	stale.Country = "UK"
	require.NoError(t, repos.User.UpdateProfile(ctx, stale))

	require.NoError(t, repos.User.UpdatePassword(ctx, stale.ID, "new-hash"))

	fresh, err := repos.User.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(60).Equal(fresh.Balance), "committed debit survived, got %s", fresh.Balance)
	assert.Equal(t, 1, fresh.LoginCount)
	assert.NotNil(t, fresh.LastLogin)
	assert.Equal(t, "Ada", fresh.FirstName)
	assert.Equal(t, "UK", fresh.Country)
	assert.Equal(t, "new-hash", fresh.PasswordHash)
}

func TestUserRepository_List(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		testutil.NewUserBuilder().Build(t, testDB.DB)
	}

	page, err := repos.User.List(ctx, 3, 0)
	require.NoError(t, err)
	assert.Len(t, page, 3)

	rest, err := repos.User.List(ctx, 10, 3)
	require.NoError(t, err)
	assert.Len(t, rest, 2)
}
