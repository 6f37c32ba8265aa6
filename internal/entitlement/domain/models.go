package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// RightsType discriminates the two shapes of entitlement a row can carry.
type RightsType string

const (
	// RightsTypePass is the generic play currency, consumable on any
	// non-exclusive era.
	RightsTypePass RightsType = "pass"
	// RightsTypeEra grants plays on a specific era, or on any exclusive
	// era when the value is the generic sentinel.
	RightsTypeEra RightsType = "era"
)

// GenericEraValue is the rights value of an era grant not tied to one
// specific era. It is redeemable against any exclusive era.
const GenericEraValue = "era"

// UnlimitedUses marks a row whose uses never decrement. Such rows are
// bounded by expiry instead.
const UnlimitedUses int64 = -1

// EntitlementRow is the atomic unit of the rights ledger. Rows are created
// by purchase completion, voucher issuance, or referral rewards, and are
// mutated only by redemption claims and consumption decrements.
type EntitlementRow struct {
	ID snowflake.ID `gorm:"primaryKey"`

	// AccountID is the owning account. Nil until a gift or system reward
	// is redeemed into someone's balance.
	AccountID *snowflake.ID `gorm:"index"`

	RightsType RightsType `gorm:"type:text;not null;index"`

	// RightsValue is a free-text source tag for pass rows, and an era
	// identifier (or GenericEraValue) for era rows.
	RightsValue string `gorm:"type:text;not null"`

	// UsesRemaining is the number of plays left; UnlimitedUses means the
	// row never decrements.
	UsesRemaining int64 `gorm:"not null"`

	ExpiresAt *time.Time

	// CreatedByAccountID is the gifting account for person-to-person
	// vouchers. Nil for system-issued rewards so the self-redemption
	// guard does not misfire on them.
	CreatedByAccountID *snowflake.ID

	// RecipientEmail restricts redemption to an account whose verified
	// email matches, case-insensitively.
	RecipientEmail *string `gorm:"type:text"`

	// SourceVoucherCode is the code string this row was issued under.
	// Lookups on it detect duplicate redemption attempts.
	SourceVoucherCode *string `gorm:"type:text;uniqueIndex"`

	// PurchaseReference is the payment provider's reference for rows
	// created from a completed purchase. Its presence is the highest
	// access priority and such rows are never consumed.
	PurchaseReference *string `gorm:"type:text;uniqueIndex"`

	// RedeemedAt is set once a gift or reward row has been claimed into a
	// balance. A redeemed row can never be claimed again.
	RedeemedAt *time.Time

	// RedeemedByAccountID records who claimed the row.
	RedeemedByAccountID *snowflake.ID

	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (EntitlementRow) TableName() string { return "entitlement_rows" }

// Active reports whether the row still grants anything at the given instant:
// uses left (or unlimited) and not past expiry.
func (r *EntitlementRow) Active(now time.Time) bool {
	if r.UsesRemaining != UnlimitedUses && r.UsesRemaining <= 0 {
		return false
	}
	if r.ExpiresAt != nil && !r.ExpiresAt.After(now) {
		return false
	}
	return true
}

// Redeemed reports whether the row has already been claimed.
func (r *EntitlementRow) Redeemed() bool {
	return r.RedeemedAt != nil
}
