package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/ironwake/broadside/internal/access/domain"
	"github.com/ironwake/broadside/internal/clock"
	entitlementdomain "github.com/ironwake/broadside/internal/entitlement/domain"
	"github.com/ironwake/broadside/internal/era"
	obsmetrics "github.com/ironwake/broadside/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	Entitlements entitlementdomain.Repository
	Metrics      *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	clock        clock.Clock
	entitlements entitlementdomain.Repository
	metrics      *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("access.service"),
		clock:        p.Clock,
		entitlements: p.Entitlements,
		metrics:      p.Metrics,
	}
}

// Resolve walks the access methods in strict priority order: guest gate,
// purchase, voucher (with the generic fallback for exclusive eras),
// exclusivity, pass balance, free. A purchase always wins over a voucher,
// and exclusivity blocks the cheaper pass path entirely.
func (s *Service) Resolve(ctx context.Context, accountID snowflake.ID, cfg era.Config) (domain.Decision, error) {
	decision, err := s.resolve(ctx, accountID, cfg)
	if err != nil {
		return domain.Decision{}, err
	}
	if s.metrics != nil {
		s.metrics.AccessDecisions.WithLabelValues(string(decision.Method)).Inc()
	}
	return decision, nil
}

func (s *Service) resolve(ctx context.Context, accountID snowflake.ID, cfg era.Config) (domain.Decision, error) {
	if accountID == 0 {
		if cfg.PassesRequired == 0 && !cfg.Exclusive {
			return domain.Decision{Method: domain.MethodFree}, nil
		}
		return domain.Decision{Method: domain.MethodGuestBlocked}, nil
	}

	now := s.clock.Now()
	rows, err := s.entitlements.ActiveEraRows(ctx, s.db, accountID, cfg.Identifier, now)
	if err != nil {
		return domain.Decision{}, err
	}

	for _, row := range rows {
		if row.PurchaseReference != nil {
			return domain.Decision{Method: domain.MethodPurchased}, nil
		}
	}

	voucherRow := firstVoucherRow(rows)
	if voucherRow == nil && cfg.Exclusive {
		// A voucher not tied to one specific era may unlock any
		// exclusive one. This fallback only applies to exclusive eras.
		generic, err := s.entitlements.ActiveEraRows(ctx, s.db, accountID, entitlementdomain.GenericEraValue, now)
		if err != nil {
			return domain.Decision{}, err
		}
		voucherRow = firstVoucherRow(generic)
	}
	if voucherRow != nil {
		return domain.Decision{
			Method:        domain.MethodVoucher,
			RowID:         voucherRow.ID,
			UsesRemaining: voucherRow.UsesRemaining,
			ExpiresAt:     voucherRow.ExpiresAt,
		}, nil
	}

	if cfg.Exclusive {
		return domain.Decision{
			Method:         domain.MethodExclusiveBlocked,
			ExclusiveLabel: cfg.ExclusiveLabel,
		}, nil
	}

	if cfg.PassesRequired > 0 {
		balance, err := s.entitlements.PassBalance(ctx, s.db, accountID, now)
		if err != nil {
			return domain.Decision{}, err
		}
		decision := domain.Decision{
			Method:           domain.MethodPasses,
			PassesRequired:   cfg.PassesRequired,
			Balance:          balance.Total,
			UnlimitedBalance: balance.Unlimited,
		}
		if !balance.Unlimited {
			decision.PlaysAvailable = balance.Total / int64(cfg.PassesRequired)
		}
		return decision, nil
	}

	return domain.Decision{Method: domain.MethodFree}, nil
}

// Consume charges the resolved method. The resolution read is advisory; every
// mutation below is a conditional update re-validated by the store, so two
// concurrent consumers of a single-use grant cannot both succeed.
func (s *Service) Consume(ctx context.Context, accountID snowflake.ID, cfg era.Config) (*domain.ConsumptionResult, error) {
	decision, err := s.resolve(ctx, accountID, cfg)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed() {
		return nil, domain.ErrNoAccess
	}

	switch decision.Method {
	case domain.MethodPurchased, domain.MethodFree:
		return &domain.ConsumptionResult{Method: decision.Method, Unlimited: decision.Method == domain.MethodPurchased}, nil

	case domain.MethodVoucher:
		return s.consumeVoucher(ctx, decision)

	case domain.MethodPasses:
		return s.consumePasses(ctx, accountID, decision)

	default:
		return nil, domain.ErrNoAccess
	}
}

func (s *Service) consumeVoucher(ctx context.Context, decision domain.Decision) (*domain.ConsumptionResult, error) {
	if decision.UsesRemaining == entitlementdomain.UnlimitedUses {
		return &domain.ConsumptionResult{Method: domain.MethodVoucher, Unlimited: true}, nil
	}

	ok, err := s.entitlements.DecrementUses(ctx, s.db, decision.RowID, 1, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the race on a nearly exhausted grant.
		return nil, domain.ErrNoAccess
	}
	return &domain.ConsumptionResult{
		Method:         domain.MethodVoucher,
		UnitsConsumed:  1,
		ConsumedRowIDs: []snowflake.ID{decision.RowID},
	}, nil
}

// consumePasses walks the account's active pass rows oldest-first, consuming
// from each until the requirement is met. Each row's decrement is its own
// conditional update; a row that fails is treated as exhausted and skipped,
// not fatal. Only running out of candidates before the requirement is met is.
func (s *Service) consumePasses(ctx context.Context, accountID snowflake.ID, decision domain.Decision) (*domain.ConsumptionResult, error) {
	if decision.UnlimitedBalance {
		return &domain.ConsumptionResult{Method: domain.MethodPasses, Unlimited: true}, nil
	}

	now := s.clock.Now()
	rows, err := s.entitlements.ActivePassRows(ctx, s.db, accountID, now)
	if err != nil {
		return nil, err
	}

	result := &domain.ConsumptionResult{Method: domain.MethodPasses}
	remaining := int64(decision.PassesRequired)
	for _, row := range rows {
		if remaining <= 0 {
			break
		}
		if row.UsesRemaining == entitlementdomain.UnlimitedUses {
			result.Unlimited = true
			return result, nil
		}

		take := row.UsesRemaining
		if take > remaining {
			take = remaining
		}
		ok, err := s.entitlements.DecrementUses(ctx, s.db, row.ID, take, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		remaining -= take
		result.UnitsConsumed += take
		result.ConsumedRowIDs = append(result.ConsumedRowIDs, row.ID)
	}

	if remaining > 0 {
		s.log.Warn("pass walk under-delivered",
			zap.String("account_id", accountID.String()),
			zap.Int64("consumed", result.UnitsConsumed),
			zap.Int64("short", remaining),
		)
		return nil, domain.ErrInsufficientBalance
	}

	if s.metrics != nil {
		s.metrics.PassesConsumed.Add(float64(result.UnitsConsumed))
	}
	return result, nil
}

func firstVoucherRow(rows []entitlementdomain.EntitlementRow) *entitlementdomain.EntitlementRow {
	for i := range rows {
		if rows[i].SourceVoucherCode != nil {
			return &rows[i]
		}
	}
	return nil
}
