package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidAccount = errors.New("invalid_account")
	ErrInvalidAmount  = errors.New("invalid_amount")
	ErrInvalidRights  = errors.New("invalid_rights")
	ErrNotFound       = errors.New("entitlement_not_found")

	// ErrAlreadyRedeemed is returned when a claim targets a row whose
	// redeemed marker is already set.
	ErrAlreadyRedeemed = errors.New("already_redeemed")
)

// CreditRequest tops up an account's pass balance directly, bypassing the
// voucher flow. Used by rewards and administrative grants.
type CreditRequest struct {
	AccountID snowflake.ID
	Amount    int64
	SourceTag string
}

// IssueRequest creates an unattributed row that a later claim redeems into
// someone's balance.
type IssueRequest struct {
	RightsType         RightsType
	RightsValue        string
	UsesRemaining      int64
	CreatedByAccountID *snowflake.ID
	RecipientEmail     *string
	SourceVoucherCode  *string
	PurchaseReference  *string
	AccountID          *snowflake.ID
	ExpiresAt          *time.Time
}

type Service interface {
	// CreditPasses issues an active pass row attributed to the account.
	// Rejects non-positive amounts and guest accounts.
	CreditPasses(ctx context.Context, req CreditRequest) (*EntitlementRow, error)

	// Issue persists a new entitlement row as described.
	Issue(ctx context.Context, req IssueRequest) (*EntitlementRow, error)

	// Claim redeems an issued row into the account's balance. The expiry,
	// when non-nil, is stamped at claim time so duration vouchers start
	// counting from redemption rather than issuance.
	Claim(ctx context.Context, rowID snowflake.ID, accountID snowflake.ID, expiresAt *time.Time) error

	// Balance sums the account's active pass rows.
	Balance(ctx context.Context, accountID snowflake.ID) (PassBalance, error)
}
