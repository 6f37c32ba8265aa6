package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ironwake/broadside/internal/access/domain"
	"github.com/ironwake/broadside/internal/clock"
	entitlementdomain "github.com/ironwake/broadside/internal/entitlement/domain"
	"github.com/ironwake/broadside/internal/entitlement/repository"
	"github.com/ironwake/broadside/internal/era"
	"github.com/ironwake/broadside/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type fixture struct {
	svc   *Service
	conn  *gorm.DB
	node  *snowflake.Node
	clk   *clock.FakeClock
	repo  entitlementdomain.Repository
	accID snowflake.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&entitlementdomain.EntitlementRow{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	repo := repository.Provide()
	return &fixture{
		svc: &Service{
			db:           conn,
			log:          zaptest.NewLogger(t),
			clock:        clk,
			entitlements: repo,
		},
		conn:  conn,
		node:  node,
		clk:   clk,
		repo:  repo,
		accID: node.Generate(),
	}
}

func (f *fixture) addPassRow(t *testing.T, uses int64, createdAt time.Time) snowflake.ID {
	t.Helper()
	account := f.accID
	row := &entitlementdomain.EntitlementRow{
		ID:            f.node.Generate(),
		AccountID:     &account,
		RightsType:    entitlementdomain.RightsTypePass,
		RightsValue:   "test",
		UsesRemaining: uses,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
	require.NoError(t, f.repo.Create(context.Background(), f.conn, row))
	return row.ID
}

func (f *fixture) addEraRow(t *testing.T, identifier string, uses int64, voucherCode, purchaseRef *string) snowflake.ID {
	t.Helper()
	account := f.accID
	now := f.clk.Now()
	row := &entitlementdomain.EntitlementRow{
		ID:                f.node.Generate(),
		AccountID:         &account,
		RightsType:        entitlementdomain.RightsTypeEra,
		RightsValue:       identifier,
		UsesRemaining:     uses,
		SourceVoucherCode: voucherCode,
		PurchaseReference: purchaseRef,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, f.repo.Create(context.Background(), f.conn, row))
	return row.ID
}

func strptr(s string) *string { return &s }

var (
	piratesEra = era.Config{Identifier: "pirates", Exclusive: true, ExclusiveLabel: "Pirate Fleet Pack"}
	paidEra    = era.Config{Identifier: "midway-island", PassesRequired: 3}
	freeEra    = era.Config{Identifier: "wooden-ships"}
)

func TestResolveGuest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	decision, err := f.svc.Resolve(ctx, 0, freeEra)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodFree, decision.Method)

	decision, err = f.svc.Resolve(ctx, 0, paidEra)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodGuestBlocked, decision.Method)

	decision, err = f.svc.Resolve(ctx, 0, piratesEra)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodGuestBlocked, decision.Method)
}

func TestResolvePurchaseBeatsVoucher(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addEraRow(t, "pirates", 1, strptr("pirates-1-uuid"), nil)
	f.addEraRow(t, "pirates", entitlementdomain.UnlimitedUses, nil, strptr("pay_1"))

	decision, err := f.svc.Resolve(ctx, f.accID, piratesEra)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodPurchased, decision.Method)
}

func TestResolveVoucher(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rowID := f.addEraRow(t, "pirates", 3, strptr("pirates-3-uuid"), nil)

	decision, err := f.svc.Resolve(ctx, f.accID, piratesEra)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodVoucher, decision.Method)
	assert.Equal(t, rowID, decision.RowID)
	assert.Equal(t, int64(3), decision.UsesRemaining)
}

func TestResolveGenericVoucherUnlocksExclusiveOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addEraRow(t, entitlementdomain.GenericEraValue, 2, strptr("era-2-uuid"), nil)

	decision, err := f.svc.Resolve(ctx, f.accID, piratesEra)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodVoucher, decision.Method)

	// The generic fallback does not apply to non-exclusive eras; with no
	// balance the paid era resolves to an empty pass decision.
	decision, err = f.svc.Resolve(ctx, f.accID, paidEra)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodPasses, decision.Method)
	assert.Equal(t, int64(0), decision.PlaysAvailable)
	assert.False(t, decision.Allowed())
}

func TestResolveExclusivityBlocksPasses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addPassRow(t, 100, f.clk.Now().Add(-time.Hour))

	decision, err := f.svc.Resolve(ctx, f.accID, piratesEra)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodExclusiveBlocked, decision.Method)
	assert.Equal(t, "Pirate Fleet Pack", decision.ExclusiveLabel)
	assert.False(t, decision.Allowed())
}

func TestResolvePasses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addPassRow(t, 7, f.clk.Now().Add(-time.Hour))

	decision, err := f.svc.Resolve(ctx, f.accID, paidEra)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodPasses, decision.Method)
	assert.Equal(t, 3, decision.PassesRequired)
	assert.Equal(t, int64(7), decision.Balance)
	assert.Equal(t, int64(2), decision.PlaysAvailable)
	assert.True(t, decision.Allowed())
}

func TestConsumeFIFOAcrossRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.addPassRow(t, 5, f.clk.Now().Add(-48*time.Hour))
	second := f.addPassRow(t, 5, f.clk.Now().Add(-time.Hour))

	// 7 passes: all 5 from the older row, 2 from the newer.
	cfg := era.Config{Identifier: "armada", PassesRequired: 7}
	result, err := f.svc.Consume(ctx, f.accID, cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(7), result.UnitsConsumed)
	assert.Equal(t, []snowflake.ID{first, second}, result.ConsumedRowIDs)

	firstRow, err := f.repo.FindByID(ctx, f.conn, first)
	require.NoError(t, err)
	assert.Equal(t, int64(0), firstRow.UsesRemaining)

	secondRow, err := f.repo.FindByID(ctx, f.conn, second)
	require.NoError(t, err)
	assert.Equal(t, int64(3), secondRow.UsesRemaining)
}

func TestConsumeSingleUseVoucherOnlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addEraRow(t, "pirates", 1, strptr("pirates-1-uuid"), nil)

	result, err := f.svc.Consume(ctx, f.accID, piratesEra)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodVoucher, result.Method)
	assert.Equal(t, int64(1), result.UnitsConsumed)

	_, err = f.svc.Consume(ctx, f.accID, piratesEra)
	assert.ErrorIs(t, err, domain.ErrNoAccess)
}

func TestConsumeUnlimitedVoucherNeverDecrements(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rowID := f.addEraRow(t, "pirates", entitlementdomain.UnlimitedUses, strptr("pirates-days7-uuid"), nil)

	for i := 0; i < 3; i++ {
		result, err := f.svc.Consume(ctx, f.accID, piratesEra)
		require.NoError(t, err)
		assert.True(t, result.Unlimited)
	}

	row, err := f.repo.FindByID(ctx, f.conn, rowID)
	require.NoError(t, err)
	assert.Equal(t, entitlementdomain.UnlimitedUses, row.UsesRemaining)
}

func TestConsumePurchasedAndFreeAreFree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addEraRow(t, "pirates", entitlementdomain.UnlimitedUses, nil, strptr("pay_9"))

	result, err := f.svc.Consume(ctx, f.accID, piratesEra)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodPurchased, result.Method)
	assert.True(t, result.Unlimited)
	assert.Zero(t, result.UnitsConsumed)

	result, err = f.svc.Consume(ctx, f.accID, freeEra)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodFree, result.Method)
	assert.Zero(t, result.UnitsConsumed)
}

func TestConsumeGuestBlocked(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Consume(context.Background(), 0, paidEra)
	assert.ErrorIs(t, err, domain.ErrNoAccess)
}

// stalePassRepo inflates the advisory balance read so the walk sees less
// than resolution promised, as a concurrent spender would cause.
type stalePassRepo struct {
	entitlementdomain.Repository
	extra int64
}

func (r *stalePassRepo) PassBalance(ctx context.Context, conn *gorm.DB, accountID snowflake.ID, now time.Time) (entitlementdomain.PassBalance, error) {
	balance, err := r.Repository.PassBalance(ctx, conn, accountID, now)
	balance.Total += r.extra
	return balance, err
}

func TestConsumeUnderDeliveryFailsInsufficientBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addPassRow(t, 2, f.clk.Now().Add(-time.Hour))
	f.svc.entitlements = &stalePassRepo{Repository: f.repo, extra: 5}

	cfg := era.Config{Identifier: "armada", PassesRequired: 4}
	_, err := f.svc.Consume(ctx, f.accID, cfg)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
}
