package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/marc/credit-identity-api/internal/domain"
	"github.com/marc/credit-identity-api/internal/repository"
	"github.com/marc/credit-identity-api/internal/repository/postgres"
	"github.com/marc/credit-identity-api/internal/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func appendEntry(t *testing.T, repos *repository.Repositories, userID uuid.UUID, amount string, kind domain.EntryKind) *domain.CreditEntry {
	t.Helper()

	entry := &domain.CreditEntry{
		ID:          uuid.New(),
		UserID:      userID,
		Amount:      decimal.RequireFromString(amount),
		Kind:        kind,
		ReferenceID: uuid.New().String(),
		CreatedAt:   time.Now(),
	}
	require.NoError(t, repos.CreditEntry.Append(context.Background(), entry))
	return entry
}

func TestCreditEntryRepository_ListAndCount(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)

	appendEntry(t, repos, user.ID, "30", domain.EntryDeposit)
	appendEntry(t, repos, user.ID, "20", domain.EntryDeposit)
	appendEntry(t, repos, user.ID, "-10", domain.EntryWithdrawal)

	all, err := repos.CreditEntry.ListByUser(ctx, user.ID, "", 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	deposits, err := repos.CreditEntry.ListByUser(ctx, user.ID, domain.EntryDeposit, 10, 0)
	require.NoError(t, err)
	assert.Len(t, deposits, 2)

	count, err := repos.CreditEntry.CountByUser(ctx, user.ID, domain.EntryWithdrawal)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCreditEntryRepository_SumByUser(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)

	// Empty history sums to zero, not an error.
	sum, err := repos.CreditEntry.SumByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, sum.IsZero())

	appendEntry(t, repos, user.ID, "30", domain.EntryDeposit)
	appendEntry(t, repos, user.ID, "-10", domain.EntryWithdrawal)

	sum, err = repos.CreditEntry.SumByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(20).Equal(sum))
}

func TestCreditEntryRepository_DuplicateReferencePerUser(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	other, _ := testutil.NewUserBuilder().Build(t, testDB.DB)

	entry := appendEntry(t, repos, user.ID, "10", domain.EntryDeposit)

	// The same reference may not repeat for one user.
	err := repos.CreditEntry.Append(ctx, &domain.CreditEntry{
		ID:          uuid.New(),
		UserID:      user.ID,
		Amount:      decimal.NewFromInt(10),
		Kind:        domain.EntryDeposit,
		ReferenceID: entry.ReferenceID,
		CreatedAt:   time.Now(),
	})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	// But both sides of a transfer share it across users.
	err = repos.CreditEntry.Append(ctx, &domain.CreditEntry{
		ID:          uuid.New(),
		UserID:      other.ID,
		Amount:      decimal.NewFromInt(10),
		Kind:        domain.EntryTransferReceived,
		ReferenceID: entry.ReferenceID,
		CreatedAt:   time.Now(),
	})
	assert.NoError(t, err)
}

func TestReferralRepository_AddCommission(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	ctx := context.Background()

	referrer, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	referred, _ := testutil.NewUserBuilder().WithReferredBy(referrer.ID).Build(t, testDB.DB)

	require.NoError(t, repos.Referral.Create(ctx, &domain.Referral{
		ID:         uuid.New(),
		ReferrerID: referrer.ID,
		ReferredID: referred.ID,
		JoinedAt:   time.Now(),
	}))

	require.NoError(t, repos.Referral.AddCommission(ctx, referrer.ID, referred.ID, decimal.RequireFromString("2.50")))
	require.NoError(t, repos.Referral.AddCommission(ctx, referrer.ID, referred.ID, decimal.RequireFromString("1.25")))

	edge, err := repos.Referral.GetByReferred(ctx, referred.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("3.75").Equal(edge.CommissionEarned))

	listed, err := repos.Referral.ListByReferrer(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}
