package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// PassBalance is the aggregate of an account's active pass rows. Unlimited
// is set when any active row carries UnlimitedUses; Total then only covers
// the counted rows.
type PassBalance struct {
	Total     int64
	Unlimited bool
}

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, row *EntitlementRow) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*EntitlementRow, error)
	FindBySourceVoucherCode(ctx context.Context, db *gorm.DB, code string) (*EntitlementRow, error)

	// FindUnredeemedReferral returns one unredeemed person-to-person row
	// addressed to the given email, or nil when none exists.
	FindUnredeemedReferral(ctx context.Context, db *gorm.DB, email string) (*EntitlementRow, error)

	// ActiveEraRows returns the account's active era rows whose rights
	// value matches the identifier.
	ActiveEraRows(ctx context.Context, db *gorm.DB, accountID snowflake.ID, identifier string, now time.Time) ([]EntitlementRow, error)

	// ActivePassRows returns the account's active pass rows ordered by
	// creation time ascending, oldest first.
	ActivePassRows(ctx context.Context, db *gorm.DB, accountID snowflake.ID, now time.Time) ([]EntitlementRow, error)

	PassBalance(ctx context.Context, db *gorm.DB, accountID snowflake.ID, now time.Time) (PassBalance, error)

	// DecrementUses applies "uses_remaining = uses_remaining - n, only if
	// uses_remaining >= n" as one conditional update. It reports false
	// when the row was already exhausted, expired, or unlimited.
	DecrementUses(ctx context.Context, db *gorm.DB, id snowflake.ID, n int64, now time.Time) (bool, error)

	// ClaimRedemption attributes an unredeemed row to the account and
	// stamps it redeemed, as one conditional update. It reports false
	// when the row was already claimed.
	ClaimRedemption(ctx context.Context, db *gorm.DB, id snowflake.ID, accountID snowflake.ID, expiresAt *time.Time, now time.Time) (bool, error)

	// MarkRedeemed unconditionally stamps the row redeemed. Used for the
	// best-effort cleanup at the end of the referral chain.
	MarkRedeemed(ctx context.Context, db *gorm.DB, id snowflake.ID, accountID snowflake.ID, now time.Time) error
}
