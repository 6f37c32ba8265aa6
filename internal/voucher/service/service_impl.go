package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/ironwake/broadside/internal/clock"
	entitlementdomain "github.com/ironwake/broadside/internal/entitlement/domain"
	obsmetrics "github.com/ironwake/broadside/internal/observability/metrics"
	"github.com/ironwake/broadside/internal/providers/email"
	"github.com/ironwake/broadside/internal/voucher/codec"
	"github.com/ironwake/broadside/internal/voucher/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	EntitlementSvc entitlementdomain.Service
	Entitlements   entitlementdomain.Repository
	Email          email.Provider
	Metrics        *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	clock          clock.Clock
	entitlementSvc entitlementdomain.Service
	entitlements   entitlementdomain.Repository
	email          email.Provider
	metrics        *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("voucher.service"),
		genID:          p.GenID,
		clock:          p.Clock,
		entitlementSvc: p.EntitlementSvc,
		entitlements:   p.Entitlements,
		email:          p.Email,
		metrics:        p.Metrics,
	}
}

func (s *Service) Issue(ctx context.Context, req domain.IssueRequest) (*domain.IssueResult, error) {
	if req.CreatorAccountID == 0 {
		return nil, entitlementdomain.ErrInvalidAccount
	}

	typeToken := strings.ToLower(strings.TrimSpace(req.TypeToken))
	valueToken := strings.TrimSpace(req.ValueToken)
	code := fmt.Sprintf("%s-%s-%s", typeToken, valueToken, uuid.NewString())

	desc, err := codec.Parse(code)
	if err != nil {
		return nil, err
	}
	if desc.ValueKind == codec.ValueKindCount && desc.UsesGranted <= 0 {
		return nil, domain.ErrInvalidValue
	}

	creatorID := req.CreatorAccountID
	issue := entitlementdomain.IssueRequest{
		UsesRemaining:      desc.UsesGranted,
		CreatedByAccountID: &creatorID,
		SourceVoucherCode:  &code,
	}
	if desc.Kind == codec.KindPass {
		issue.RightsType = entitlementdomain.RightsTypePass
		issue.RightsValue = "voucher"
	} else {
		issue.RightsType = entitlementdomain.RightsTypeEra
		issue.RightsValue = desc.Identifier
	}
	recipient := strings.TrimSpace(req.RecipientEmail)
	if recipient != "" {
		issue.RecipientEmail = &recipient
	}

	row, err := s.entitlementSvc.Issue(ctx, issue)
	if err != nil {
		return nil, err
	}

	result := &domain.IssueResult{
		Code:           code,
		RowID:          row.ID,
		RecipientEmail: recipient,
	}
	if recipient != "" {
		if err := s.email.Send(ctx, []string{recipient}, "You've been sent a Broadside voucher", voucherEmailBody(code)); err != nil {
			s.log.Warn("failed to send voucher email",
				zap.String("row_id", row.ID.String()),
				zap.Error(err),
			)
		} else {
			result.EmailSent = true
		}
	}

	if s.metrics != nil {
		s.metrics.VouchersIssued.Inc()
	}
	s.log.Info("issued voucher",
		zap.String("row_id", row.ID.String()),
		zap.String("creator_id", creatorID.String()),
		zap.String("rights_type", string(issue.RightsType)),
	)
	return result, nil
}

func (s *Service) Redeem(ctx context.Context, req domain.RedeemRequest) (*domain.RedeemResult, error) {
	if req.AccountID == 0 {
		return nil, entitlementdomain.ErrInvalidAccount
	}

	code := strings.TrimSpace(req.Code)
	desc, err := codec.Parse(code)
	if err != nil {
		return nil, err
	}

	row, err := s.entitlements.FindBySourceVoucherCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, domain.ErrVoucherNotFound
	}

	if err := domain.CheckRedeemable(row, req.AccountID, req.Email); err != nil {
		return nil, err
	}

	// Duration windows start at redemption, not issuance.
	var expiresAt *time.Time
	if desc.ValueKind == codec.ValueKindTime {
		expiry := s.clock.Now().Add(desc.Duration)
		expiresAt = &expiry
	}

	if err := s.entitlementSvc.Claim(ctx, row.ID, req.AccountID, expiresAt); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.VouchersRedeemed.Inc()
	}
	s.log.Info("redeemed voucher",
		zap.String("row_id", row.ID.String()),
		zap.String("account_id", req.AccountID.String()),
	)

	result := &domain.RedeemResult{
		RowID:         row.ID,
		RightsType:    string(row.RightsType),
		RightsValue:   row.RightsValue,
		UsesRemaining: row.UsesRemaining,
	}
	if expiresAt != nil {
		result.ExpiresAt = expiresAt
	} else {
		result.ExpiresAt = row.ExpiresAt
	}
	return result, nil
}

func voucherEmailBody(code string) string {
	return fmt.Sprintf(
		`<p>Ahoy! A fellow captain has sent you a voucher for Broadside.</p>
<p>Your code: <strong>%s</strong></p>
<p>Sign in and enter it on the fleet screen to claim your reward.</p>`,
		code,
	)
}
