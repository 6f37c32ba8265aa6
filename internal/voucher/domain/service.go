package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrSelfRedemption  = errors.New("self_redemption")
	ErrEmailMismatch   = errors.New("email_mismatch")
	ErrVoucherNotFound = errors.New("voucher_not_found")
	ErrInvalidValue    = errors.New("invalid_voucher_value")
)

// IssueRequest creates a shareable voucher. TypeToken is "pass" or an era
// identifier; ValueToken is a count ("10") or a duration ("days7").
type IssueRequest struct {
	CreatorAccountID snowflake.ID
	TypeToken        string
	ValueToken       string
	RecipientEmail   string
}

type IssueResult struct {
	Code           string       `json:"code"`
	RowID          snowflake.ID `json:"row_id"`
	RecipientEmail string       `json:"recipient_email,omitempty"`
	EmailSent      bool         `json:"email_sent"`
}

type RedeemRequest struct {
	Code      string
	AccountID snowflake.ID
	Email     string
}

type RedeemResult struct {
	RowID         snowflake.ID `json:"row_id"`
	RightsType    string       `json:"rights_type"`
	RightsValue   string       `json:"rights_value"`
	UsesRemaining int64        `json:"uses_remaining"`
	ExpiresAt     *time.Time   `json:"expires_at,omitempty"`
}

type Service interface {
	// Issue builds a voucher code, persists the unclaimed gift row, and
	// emails the code to the recipient when one is named.
	Issue(ctx context.Context, req IssueRequest) (*IssueResult, error)

	// Redeem claims the voucher's row into the account's balance. The
	// expiry of duration vouchers starts counting at redemption.
	Redeem(ctx context.Context, req RedeemRequest) (*RedeemResult, error)
}
