package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Outcome is the closed set of results a processed signup can have.
type Outcome string

const (
	// OutcomeNoReferral means no unredeemed invite was addressed to the
	// new account's email.
	OutcomeNoReferral Outcome = "no_referral"
	// OutcomeAlreadyProcessed means the invite was redeemed by the time
	// the chain tried to act on it.
	OutcomeAlreadyProcessed Outcome = "already_processed"
	// OutcomeRewarded means both bonus rewards were granted and the
	// original invite was redeemed.
	OutcomeRewarded Outcome = "rewarded"
	// OutcomePartialFailure means the chain stopped at FailedStage. The
	// stage tells an operator what to reconcile manually.
	OutcomePartialFailure Outcome = "partial_failure"
)

// Chain stages, reported on partial failure.
const (
	StageRewardReferrer   = "reward_referrer"
	StageRewardNewAccount = "reward_new_account"
	StageRedeemOriginal   = "redeem_original"
)

type Result struct {
	Outcome Outcome `json:"outcome"`

	ReferrerID   snowflake.ID `json:"referrer_id,omitempty"`
	RewardAmount int64        `json:"reward_amount,omitempty"`
	RewardKind   string       `json:"reward_kind,omitempty"`

	FailedStage   string `json:"failed_stage,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

type Service interface {
	// ProcessSignup runs the reward chain for a newly confirmed account:
	// reward the referrer, reward the new account, then redeem the
	// original invite. Expected to be called once per account, after the
	// email is verified.
	ProcessSignup(ctx context.Context, accountID snowflake.ID, email string) (*Result, error)
}
