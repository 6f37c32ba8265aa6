package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ironwake/broadside/internal/clock"
	"github.com/ironwake/broadside/internal/entitlement/domain"
	obsmetrics "github.com/ironwake/broadside/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	metrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("entitlement.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

func (s *Service) CreditPasses(ctx context.Context, req domain.CreditRequest) (*domain.EntitlementRow, error) {
	if req.AccountID == 0 {
		return nil, domain.ErrInvalidAccount
	}
	if req.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	sourceTag := strings.TrimSpace(req.SourceTag)
	if sourceTag == "" {
		sourceTag = "manual"
	}

	now := s.clock.Now()
	accountID := req.AccountID
	row := &domain.EntitlementRow{
		ID:            s.genID.Generate(),
		AccountID:     &accountID,
		RightsType:    domain.RightsTypePass,
		RightsValue:   sourceTag,
		UsesRemaining: req.Amount,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, s.db, row); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.PassesCredited.Add(float64(req.Amount))
	}
	s.log.Info("credited passes",
		zap.String("account_id", accountID.String()),
		zap.Int64("amount", req.Amount),
		zap.String("source", sourceTag),
	)
	return row, nil
}

func (s *Service) Issue(ctx context.Context, req domain.IssueRequest) (*domain.EntitlementRow, error) {
	switch req.RightsType {
	case domain.RightsTypePass, domain.RightsTypeEra:
	default:
		return nil, domain.ErrInvalidRights
	}
	if strings.TrimSpace(req.RightsValue) == "" {
		return nil, domain.ErrInvalidRights
	}
	if req.UsesRemaining != domain.UnlimitedUses && req.UsesRemaining <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	now := s.clock.Now()
	row := &domain.EntitlementRow{
		ID:                 s.genID.Generate(),
		AccountID:          req.AccountID,
		RightsType:         req.RightsType,
		RightsValue:        req.RightsValue,
		UsesRemaining:      req.UsesRemaining,
		ExpiresAt:          req.ExpiresAt,
		CreatedByAccountID: req.CreatedByAccountID,
		RecipientEmail:     normalizeEmail(req.RecipientEmail),
		SourceVoucherCode:  req.SourceVoucherCode,
		PurchaseReference:  req.PurchaseReference,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.Create(ctx, s.db, row); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *Service) Claim(ctx context.Context, rowID snowflake.ID, accountID snowflake.ID, expiresAt *time.Time) error {
	if accountID == 0 {
		return domain.ErrInvalidAccount
	}

	row, err := s.repo.FindByID(ctx, s.db, rowID)
	if err != nil {
		return err
	}
	if row == nil {
		return domain.ErrNotFound
	}

	claimed, err := s.repo.ClaimRedemption(ctx, s.db, rowID, accountID, expiresAt, s.clock.Now())
	if err != nil {
		return err
	}
	if !claimed {
		return domain.ErrAlreadyRedeemed
	}
	return nil
}

func (s *Service) Balance(ctx context.Context, accountID snowflake.ID) (domain.PassBalance, error) {
	if accountID == 0 {
		return domain.PassBalance{}, domain.ErrInvalidAccount
	}
	return s.repo.PassBalance(ctx, s.db, accountID, s.clock.Now())
}

func normalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	normalized := strings.ToLower(strings.TrimSpace(*email))
	if normalized == "" {
		return nil
	}
	return &normalized
}
