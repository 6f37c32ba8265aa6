package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	accessdomain "github.com/ironwake/broadside/internal/access/domain"
	entitlementdomain "github.com/ironwake/broadside/internal/entitlement/domain"
	"github.com/ironwake/broadside/internal/era"
	purchasedomain "github.com/ironwake/broadside/internal/purchase/domain"
	"github.com/ironwake/broadside/internal/voucher/codec"
	voucherdomain "github.com/ironwake/broadside/internal/voucher/domain"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var ErrInvalidRequest = errors.New("invalid_request")

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

// mapError translates domain errors into the JSON envelope. Expected access
// denials carry a reason sufficient to render an actionable prompt; the
// engine never returns an opaque failure for an expected denial.
func mapError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, entitlementdomain.ErrInvalidAmount),
		errors.Is(err, entitlementdomain.ErrInvalidRights),
		errors.Is(err, purchasedomain.ErrInvalidReference):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: "invalid request",
		}

	case errors.Is(err, codec.ErrMalformedCode):
		return http.StatusBadRequest, errorPayload{
			Type:    "malformed_code",
			Message: "that voucher code is not in a recognized format",
		}
	case errors.Is(err, voucherdomain.ErrInvalidValue):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_voucher_value",
			Message: "voucher value must be a positive count or duration",
		}

	case errors.Is(err, voucherdomain.ErrSelfRedemption):
		return http.StatusForbidden, errorPayload{
			Type:    "self_redemption",
			Message: "you cannot redeem a voucher you sent",
		}
	case errors.Is(err, voucherdomain.ErrEmailMismatch):
		return http.StatusForbidden, errorPayload{
			Type:    "email_mismatch",
			Message: "this voucher was sent to a different email address",
		}
	case errors.Is(err, entitlementdomain.ErrAlreadyRedeemed):
		return http.StatusConflict, errorPayload{
			Type:    "already_redeemed",
			Message: "this voucher has already been redeemed",
		}

	case errors.Is(err, entitlementdomain.ErrInvalidAccount):
		return http.StatusUnauthorized, errorPayload{
			Type:    "sign_in_required",
			Message: "sign in to continue",
		}

	case errors.Is(err, accessdomain.ErrNoAccess):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "no_access",
			Message: "buy passes or enter a voucher to play this era",
		}
	case errors.Is(err, accessdomain.ErrInsufficientBalance):
		return http.StatusConflict, errorPayload{
			Type:    "insufficient_balance",
			Message: "your pass balance changed, try again",
		}

	case errors.Is(err, era.ErrUnknownEra),
		errors.Is(err, purchasedomain.ErrInvalidEra),
		errors.Is(err, voucherdomain.ErrVoucherNotFound),
		errors.Is(err, entitlementdomain.ErrNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}

	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}
