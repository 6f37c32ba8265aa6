package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Method is the closed set of ways an account may (or may not) access an
// era. Resolution picks exactly one, in strict priority order; consumption
// matches exhaustively so a new method cannot silently fall through to free.
type Method string

const (
	// MethodPurchased is a paid grant. Highest priority, never consumed.
	MethodPurchased Method = "purchased"
	// MethodVoucher is an era grant redeemed from a voucher code.
	MethodVoucher Method = "voucher"
	// MethodExclusiveBlocked denies an exclusive era with no dedicated grant.
	MethodExclusiveBlocked Method = "exclusive_blocked"
	// MethodPasses pays with the generic pass balance.
	MethodPasses Method = "passes"
	// MethodFree requires nothing.
	MethodFree Method = "free"
	// MethodGuestBlocked denies a guest anything that is not free and open.
	MethodGuestBlocked Method = "guest_blocked"
)

// Decision is the outcome of resolving an account against an era. Only the
// fields of the chosen method are populated.
type Decision struct {
	Method Method `json:"method"`

	// Voucher access.
	RowID         snowflake.ID `json:"row_id,omitempty"`
	UsesRemaining int64        `json:"uses_remaining,omitempty"`
	ExpiresAt     *time.Time   `json:"expires_at,omitempty"`

	// Pass access.
	PassesRequired   int   `json:"passes_required,omitempty"`
	Balance          int64 `json:"balance,omitempty"`
	UnlimitedBalance bool  `json:"unlimited_balance,omitempty"`
	PlaysAvailable   int64 `json:"plays_available,omitempty"`

	// Exclusive denial prompt.
	ExclusiveLabel string `json:"exclusive_label,omitempty"`
}

// Allowed reports whether the decision permits starting a game.
func (d Decision) Allowed() bool {
	switch d.Method {
	case MethodPurchased, MethodVoucher, MethodFree:
		return true
	case MethodPasses:
		return d.UnlimitedBalance || d.PlaysAvailable > 0
	default:
		return false
	}
}
