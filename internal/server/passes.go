package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	entitlementdomain "github.com/ironwake/broadside/internal/entitlement/domain"
)

type creditPassesRequest struct {
	AccountID string `json:"account_id"`
	Amount    int64  `json:"amount"`
	SourceTag string `json:"source_tag"`
}

func (s *Server) creditPasses(c *gin.Context) {
	var req creditPassesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	accountID, err := parseAccountID(req.AccountID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	row, err := s.entitlementSvc.CreditPasses(c.Request.Context(), entitlementdomain.CreditRequest{
		AccountID: accountID,
		Amount:    req.Amount,
		SourceTag: req.SourceTag,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"row_id":         row.ID.String(),
		"uses_remaining": row.UsesRemaining,
		"source":         row.RightsValue,
	})
}

func (s *Server) accountBalance(c *gin.Context) {
	accountID, err := parseAccountID(c.Param("account_id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	balance, err := s.entitlementSvc.Balance(c.Request.Context(), accountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"balance":   balance.Total,
		"unlimited": balance.Unlimited,
	})
}
