package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	purchasedomain "github.com/ironwake/broadside/internal/purchase/domain"
)

type completePurchaseRequest struct {
	AccountID string `json:"account_id"`
	Era       string `json:"era"`
	Reference string `json:"reference"`
}

// completePurchase is the payment provider's completion webhook. Retried
// deliveries are safe: the reference is idempotent.
func (s *Server) completePurchase(c *gin.Context) {
	var req completePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	accountID, err := parseAccountID(req.AccountID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.purchaseSvc.Complete(c.Request.Context(), purchasedomain.CompleteRequest{
		AccountID:     accountID,
		EraIdentifier: req.Era,
		Reference:     req.Reference,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
