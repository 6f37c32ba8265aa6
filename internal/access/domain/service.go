package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/ironwake/broadside/internal/era"
)

var (
	// ErrNoAccess is the expected denial when resolution does not permit
	// play. It drives a UI prompt, not an error log.
	ErrNoAccess = errors.New("no_access")

	// ErrInsufficientBalance means the pass walk under-delivered because
	// the balance changed between resolution and consumption.
	ErrInsufficientBalance = errors.New("insufficient_balance")
)

// ConsumptionResult reports what a game start cost.
type ConsumptionResult struct {
	Method Method `json:"method"`

	// Unlimited is set when the grant never decrements.
	Unlimited bool `json:"unlimited"`

	// UnitsConsumed is the total decremented across all touched rows.
	UnitsConsumed int64 `json:"units_consumed"`

	// ConsumedRowIDs lists the rows decremented, in consumption order.
	ConsumedRowIDs []snowflake.ID `json:"consumed_row_ids,omitempty"`
}

type Service interface {
	// Resolve determines how the account may access the era. Read-only
	// and safe to call repeatedly; its answer is advisory, consumption
	// re-validates at the point of mutation.
	Resolve(ctx context.Context, accountID snowflake.ID, cfg era.Config) (Decision, error)

	// Consume charges the resolved access method for one game start.
	// Must be called exactly once per session start.
	Consume(ctx context.Context, accountID snowflake.ID, cfg era.Config) (*ConsumptionResult, error)
}
