package domain

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	entitlementdomain "github.com/ironwake/broadside/internal/entitlement/domain"
)

// CheckRedeemable validates that the redeeming account is an entitled
// recipient of the row. It runs before the atomic claim and is re-validated
// by the claim's own precondition, closing the window between check and act.
//
// Rules, in order: a gift-giver may never redeem their own gift; if the row
// names a recipient email and the redeemer supplied one, they must match
// case-insensitively; a row already claimed stays claimed.
func CheckRedeemable(row *entitlementdomain.EntitlementRow, accountID snowflake.ID, email string) error {
	if row.CreatedByAccountID != nil && *row.CreatedByAccountID == accountID {
		return ErrSelfRedemption
	}

	email = strings.TrimSpace(email)
	if email != "" && row.RecipientEmail != nil {
		if !strings.EqualFold(*row.RecipientEmail, email) {
			return ErrEmailMismatch
		}
	}

	if row.Redeemed() {
		return entitlementdomain.ErrAlreadyRedeemed
	}

	return nil
}
