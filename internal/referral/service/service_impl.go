package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/ironwake/broadside/internal/clock"
	"github.com/ironwake/broadside/internal/config"
	entitlementdomain "github.com/ironwake/broadside/internal/entitlement/domain"
	obsmetrics "github.com/ironwake/broadside/internal/observability/metrics"
	"github.com/ironwake/broadside/internal/referral/domain"
	"github.com/ironwake/broadside/internal/voucher/codec"
	voucherdomain "github.com/ironwake/broadside/internal/voucher/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	Clock          clock.Clock
	Config         config.Config
	EntitlementSvc entitlementdomain.Service
	Entitlements   entitlementdomain.Repository
	Metrics        *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	clock          clock.Clock
	bonusAmount    int64
	entitlementSvc entitlementdomain.Service
	entitlements   entitlementdomain.Repository
	metrics        *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("referral.service"),
		clock:          p.Clock,
		bonusAmount:    int64(p.Config.Referral.BonusAmount),
		entitlementSvc: p.EntitlementSvc,
		entitlements:   p.Entitlements,
		metrics:        p.Metrics,
	}
}

// ProcessSignup runs the three-step reward chain. The steps are deliberately
// not one transaction: each redemption is independently guarded by the
// claim's own precondition, so re-running a step against an already-redeemed
// row is a no-op failure, never a double credit.
func (s *Service) ProcessSignup(ctx context.Context, accountID snowflake.ID, email string) (*domain.Result, error) {
	if accountID == 0 {
		return nil, entitlementdomain.ErrInvalidAccount
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, entitlementdomain.ErrInvalidAccount
	}

	original, err := s.entitlements.FindUnredeemedReferral(ctx, s.db, email)
	if err != nil {
		return nil, err
	}
	if original == nil {
		return s.finish(&domain.Result{Outcome: domain.OutcomeNoReferral}), nil
	}

	if err := voucherdomain.CheckRedeemable(original, accountID, email); err != nil {
		if errors.Is(err, entitlementdomain.ErrAlreadyRedeemed) {
			return s.finish(&domain.Result{Outcome: domain.OutcomeAlreadyProcessed}), nil
		}
		return nil, err
	}

	referrerID := *original.CreatedByAccountID
	rewardType, rewardValue := s.rewardKind(original)

	result := &domain.Result{
		ReferrerID:   referrerID,
		RewardAmount: s.bonusAmount,
		RewardKind:   rewardValue,
	}

	// Reward the referrer. System rewards carry no creator so the
	// self-redemption guard does not misfire, and no recipient email.
	if err := s.issueAndClaim(ctx, rewardType, rewardValue, referrerID, nil); err != nil {
		s.log.Error("referrer reward failed",
			zap.String("referrer_id", referrerID.String()),
			zap.Error(err),
		)
		result.Outcome = domain.OutcomePartialFailure
		result.FailedStage = domain.StageRewardReferrer
		result.FailureReason = err.Error()
		return s.finish(result), nil
	}

	// Reward the new account, addressed to its verified email.
	if err := s.issueAndClaim(ctx, rewardType, rewardValue, accountID, &email); err != nil {
		s.log.Error("new account reward failed",
			zap.String("account_id", accountID.String()),
			zap.Error(err),
		)
		result.Outcome = domain.OutcomePartialFailure
		result.FailedStage = domain.StageRewardNewAccount
		result.FailureReason = err.Error()
		return s.finish(result), nil
	}

	// Redeem the original invite into the new account's balance. Best
	// effort: the two bonus rewards above are the economically
	// significant part and must not be lost over this cleanup. A failure
	// here still marks the row redeemed so the chain cannot re-run.
	if err := s.entitlementSvc.Claim(ctx, original.ID, accountID, nil); err != nil {
		s.log.Warn("original invite redemption failed, marking redeemed",
			zap.String("row_id", original.ID.String()),
			zap.Error(err),
		)
		if markErr := s.entitlements.MarkRedeemed(ctx, s.db, original.ID, accountID, s.clock.Now()); markErr != nil {
			s.log.Error("failed to mark invite redeemed", zap.Error(markErr))
		}
		result.Outcome = domain.OutcomePartialFailure
		result.FailedStage = domain.StageRedeemOriginal
		result.FailureReason = err.Error()
		return s.finish(result), nil
	}

	result.Outcome = domain.OutcomeRewarded
	s.log.Info("referral rewarded",
		zap.String("referrer_id", referrerID.String()),
		zap.String("account_id", accountID.String()),
		zap.Int64("amount", s.bonusAmount),
		zap.String("kind", rewardValue),
	)
	return s.finish(result), nil
}

// rewardKind preserves the original invite's kind: a referral for exclusive
// content rewards both parties with that same content family. An invite whose
// code cannot be parsed falls back to generic passes.
func (s *Service) rewardKind(original *entitlementdomain.EntitlementRow) (entitlementdomain.RightsType, string) {
	if original.SourceVoucherCode != nil {
		if desc, err := codec.Parse(*original.SourceVoucherCode); err == nil && desc.Kind == codec.KindEra {
			return entitlementdomain.RightsTypeEra, desc.Identifier
		}
	}
	return entitlementdomain.RightsTypePass, "referral"
}

func (s *Service) issueAndClaim(ctx context.Context, rightsType entitlementdomain.RightsType, rightsValue string, accountID snowflake.ID, recipientEmail *string) error {
	// Reward rows carry a minted code of the same shape user vouchers
	// have. Without one, access resolution would never surface an
	// era-kind reward: only rows with a source code count as voucher
	// access.
	code := fmt.Sprintf("%s-%d-%s", rightsValue, s.bonusAmount, uuid.NewString())
	row, err := s.entitlementSvc.Issue(ctx, entitlementdomain.IssueRequest{
		RightsType:        rightsType,
		RightsValue:       rightsValue,
		UsesRemaining:     s.bonusAmount,
		RecipientEmail:    recipientEmail,
		SourceVoucherCode: &code,
	})
	if err != nil {
		return err
	}

	if recipientEmail != nil {
		if err := voucherdomain.CheckRedeemable(row, accountID, *recipientEmail); err != nil {
			return err
		}
	}
	return s.entitlementSvc.Claim(ctx, row.ID, accountID, nil)
}

func (s *Service) finish(result *domain.Result) *domain.Result {
	if s.metrics != nil {
		s.metrics.ReferralsProcessed.WithLabelValues(string(result.Outcome)).Inc()
	}
	return result
}
