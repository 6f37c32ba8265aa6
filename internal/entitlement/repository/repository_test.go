package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ironwake/broadside/internal/entitlement/domain"
	"github.com/ironwake/broadside/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.EntitlementRow{}))
	return conn
}

func newNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

func passRow(node *snowflake.Node, accountID snowflake.ID, uses int64, createdAt time.Time) *domain.EntitlementRow {
	account := accountID
	return &domain.EntitlementRow{
		ID:            node.Generate(),
		AccountID:     &account,
		RightsType:    domain.RightsTypePass,
		RightsValue:   "test",
		UsesRemaining: uses,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
}

func TestActivePassRowsOrderedOldestFirst(t *testing.T) {
	conn := newTestDB(t)
	node := newNode(t)
	repo := Provide()
	ctx := context.Background()

	accountID := node.Generate()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	newer := passRow(node, accountID, 3, now.Add(-time.Hour))
	older := passRow(node, accountID, 5, now.Add(-48*time.Hour))
	exhausted := passRow(node, accountID, 0, now.Add(-72*time.Hour))
	require.NoError(t, repo.Create(ctx, conn, newer))
	require.NoError(t, repo.Create(ctx, conn, older))
	require.NoError(t, repo.Create(ctx, conn, exhausted))

	rows, err := repo.ActivePassRows(ctx, conn, accountID, now)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, older.ID, rows[0].ID)
	assert.Equal(t, newer.ID, rows[1].ID)
}

func TestActivePassRowsSkipsExpired(t *testing.T) {
	conn := newTestDB(t)
	node := newNode(t)
	repo := Provide()
	ctx := context.Background()

	accountID := node.Generate()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	expired := passRow(node, accountID, 5, now.Add(-time.Hour))
	past := now.Add(-time.Minute)
	expired.ExpiresAt = &past

	live := passRow(node, accountID, 5, now.Add(-time.Hour))
	future := now.Add(time.Hour)
	live.ExpiresAt = &future

	require.NoError(t, repo.Create(ctx, conn, expired))
	require.NoError(t, repo.Create(ctx, conn, live))

	rows, err := repo.ActivePassRows(ctx, conn, accountID, now)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, live.ID, rows[0].ID)
}

func TestPassBalance(t *testing.T) {
	conn := newTestDB(t)
	node := newNode(t)
	repo := Provide()
	ctx := context.Background()

	accountID := node.Generate()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, conn, passRow(node, accountID, 5, now.Add(-2*time.Hour))))
	require.NoError(t, repo.Create(ctx, conn, passRow(node, accountID, 3, now.Add(-time.Hour))))
	require.NoError(t, repo.Create(ctx, conn, passRow(node, accountID, 0, now.Add(-time.Hour))))

	balance, err := repo.PassBalance(ctx, conn, accountID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(8), balance.Total)
	assert.False(t, balance.Unlimited)

	unlimited := passRow(node, accountID, domain.UnlimitedUses, now.Add(-time.Minute))
	expiry := now.Add(7 * 24 * time.Hour)
	unlimited.ExpiresAt = &expiry
	require.NoError(t, repo.Create(ctx, conn, unlimited))

	balance, err = repo.PassBalance(ctx, conn, accountID, now)
	require.NoError(t, err)
	assert.True(t, balance.Unlimited)
	assert.Equal(t, int64(8), balance.Total)
}

func TestDecrementUsesIsConditional(t *testing.T) {
	conn := newTestDB(t)
	node := newNode(t)
	repo := Provide()
	ctx := context.Background()

	accountID := node.Generate()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	row := passRow(node, accountID, 1, now.Add(-time.Hour))
	require.NoError(t, repo.Create(ctx, conn, row))

	ok, err := repo.DecrementUses(ctx, conn, row.ID, 1, now)
	require.NoError(t, err)
	assert.True(t, ok)

	// The row is now exhausted; the same conditional update affects
	// nothing instead of driving the count negative.
	ok, err = repo.DecrementUses(ctx, conn, row.ID, 1, now)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := repo.FindByID(ctx, conn, row.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, int64(0), stored.UsesRemaining)
}

func TestDecrementUsesRejectsOversizedTake(t *testing.T) {
	conn := newTestDB(t)
	node := newNode(t)
	repo := Provide()
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	row := passRow(node, node.Generate(), 3, now.Add(-time.Hour))
	require.NoError(t, repo.Create(ctx, conn, row))

	ok, err := repo.DecrementUses(ctx, conn, row.ID, 5, now)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := repo.FindByID(ctx, conn, row.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored.UsesRemaining)
}

func TestClaimRedemptionOnlyOnce(t *testing.T) {
	conn := newTestDB(t)
	node := newNode(t)
	repo := Provide()
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	creator := node.Generate()
	code := "pass-10-claim-once"
	row := &domain.EntitlementRow{
		ID:                 node.Generate(),
		RightsType:         domain.RightsTypePass,
		RightsValue:        "voucher",
		UsesRemaining:      10,
		CreatedByAccountID: &creator,
		SourceVoucherCode:  &code,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	require.NoError(t, repo.Create(ctx, conn, row))

	first := node.Generate()
	claimed, err := repo.ClaimRedemption(ctx, conn, row.ID, first, nil, now)
	require.NoError(t, err)
	assert.True(t, claimed)

	second := node.Generate()
	claimed, err = repo.ClaimRedemption(ctx, conn, row.ID, second, nil, now)
	require.NoError(t, err)
	assert.False(t, claimed)

	stored, err := repo.FindByID(ctx, conn, row.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.AccountID)
	assert.Equal(t, first, *stored.AccountID)
	require.NotNil(t, stored.RedeemedByAccountID)
	assert.Equal(t, first, *stored.RedeemedByAccountID)
}

func TestClaimRedemptionStampsExpiry(t *testing.T) {
	conn := newTestDB(t)
	node := newNode(t)
	repo := Provide()
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	code := "pass-days7-expiry"
	row := &domain.EntitlementRow{
		ID:                node.Generate(),
		RightsType:        domain.RightsTypePass,
		RightsValue:       "voucher",
		UsesRemaining:     domain.UnlimitedUses,
		SourceVoucherCode: &code,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, repo.Create(ctx, conn, row))

	expiry := now.Add(7 * 24 * time.Hour)
	claimed, err := repo.ClaimRedemption(ctx, conn, row.ID, node.Generate(), &expiry, now)
	require.NoError(t, err)
	assert.True(t, claimed)

	stored, err := repo.FindByID(ctx, conn, row.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ExpiresAt)
	assert.WithinDuration(t, expiry, *stored.ExpiresAt, time.Second)
}

func TestFindUnredeemedReferralMatchesEmailCaseInsensitively(t *testing.T) {
	conn := newTestDB(t)
	node := newNode(t)
	repo := Provide()
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	creator := node.Generate()
	email := "new@x.com"
	code := "pirates-1-ref"
	row := &domain.EntitlementRow{
		ID:                 node.Generate(),
		RightsType:         domain.RightsTypeEra,
		RightsValue:        "pirates",
		UsesRemaining:      1,
		CreatedByAccountID: &creator,
		RecipientEmail:     &email,
		SourceVoucherCode:  &code,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	require.NoError(t, repo.Create(ctx, conn, row))

	found, err := repo.FindUnredeemedReferral(ctx, conn, "NEW@X.COM")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, row.ID, found.ID)

	// System grants (no creator) are not referrals.
	systemEmail := "sys@x.com"
	system := &domain.EntitlementRow{
		ID:             node.Generate(),
		RightsType:     domain.RightsTypePass,
		RightsValue:    "referral",
		UsesRemaining:  10,
		RecipientEmail: &systemEmail,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, repo.Create(ctx, conn, system))

	found, err = repo.FindUnredeemedReferral(ctx, conn, "sys@x.com")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestActiveEraRowsFiltersByIdentifier(t *testing.T) {
	conn := newTestDB(t)
	node := newNode(t)
	repo := Provide()
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	accountID := node.Generate()
	reference := "pay_123"

	account := accountID
	purchase := &domain.EntitlementRow{
		ID:                node.Generate(),
		AccountID:         &account,
		RightsType:        domain.RightsTypeEra,
		RightsValue:       "pirates",
		UsesRemaining:     domain.UnlimitedUses,
		PurchaseReference: &reference,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, repo.Create(ctx, conn, purchase))

	rows, err := repo.ActiveEraRows(ctx, conn, accountID, "pirates", now)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	rows, err = repo.ActiveEraRows(ctx, conn, accountID, "ironclads", now)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDecrementUsesConcurrentSingleWinner(t *testing.T) {
	conn := newTestDB(t)
	node := newNode(t)
	repo := Provide()
	ctx := context.Background()

	// One connection keeps the in-memory store from reporting busy; the
	// goroutines still race into the statement, and the WHERE clause must
	// let exactly one of them through.
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	accountID := node.Generate()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	row := passRow(node, accountID, 1, now)
	require.NoError(t, repo.Create(ctx, conn, row))

	const spenders = 8
	results := make(chan bool, spenders)
	var wg sync.WaitGroup
	for i := 0; i < spenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.DecrementUses(ctx, conn, row.ID, 1, now)
			assert.NoError(t, err)
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)

	stored, err := repo.FindByID(ctx, conn, row.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.UsesRemaining)
}

func TestClaimRedemptionConcurrentSingleWinner(t *testing.T) {
	conn := newTestDB(t)
	node := newNode(t)
	repo := Provide()
	ctx := context.Background()

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	creator := node.Generate()
	code := "pass-10-contested"
	row := &domain.EntitlementRow{
		ID:                 node.Generate(),
		RightsType:         domain.RightsTypePass,
		RightsValue:        "voucher",
		UsesRemaining:      10,
		CreatedByAccountID: &creator,
		SourceVoucherCode:  &code,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	require.NoError(t, repo.Create(ctx, conn, row))

	const claimants = 8
	results := make(chan bool, claimants)
	var wg sync.WaitGroup
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.ClaimRedemption(ctx, conn, row.ID, node.Generate(), nil, now)
			assert.NoError(t, err)
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}
