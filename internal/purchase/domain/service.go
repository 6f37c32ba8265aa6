package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidReference = errors.New("invalid_purchase_reference")
	ErrInvalidEra       = errors.New("invalid_purchase_era")
)

// CompleteRequest records a purchase the payment provider reports as paid.
type CompleteRequest struct {
	AccountID     snowflake.ID
	EraIdentifier string
	Reference     string
}

type Result struct {
	RowID         snowflake.ID `json:"row_id"`
	EraIdentifier string       `json:"era_identifier"`
	// AlreadyRecorded is set when the provider retried a reference the
	// engine had already stored.
	AlreadyRecorded bool `json:"already_recorded"`
}

type Service interface {
	// Complete persists the purchase as an unlimited era grant. Idempotent
	// on the payment reference.
	Complete(ctx context.Context, req CompleteRequest) (*Result, error)
}
