package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type referralSignupRequest struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
}

// referralSignup is the hook the account-creation flow calls once a new
// account's identity and email are confirmed.
func (s *Server) referralSignup(c *gin.Context) {
	var req referralSignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	accountID, err := parseAccountID(req.AccountID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.referralSvc.ProcessSignup(c.Request.Context(), accountID, req.Email)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
