package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ironwake/broadside/internal/voucher/codec"
	voucherdomain "github.com/ironwake/broadside/internal/voucher/domain"
)

type issueVoucherRequest struct {
	AccountID      string `json:"account_id"`
	Type           string `json:"type"`
	Value          string `json:"value"`
	RecipientEmail string `json:"recipient_email"`
}

func (s *Server) issueVoucher(c *gin.Context) {
	var req issueVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	accountID, err := parseAccountID(req.AccountID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.voucherSvc.Issue(c.Request.Context(), voucherdomain.IssueRequest{
		CreatorAccountID: accountID,
		TypeToken:        req.Type,
		ValueToken:       req.Value,
		RecipientEmail:   req.RecipientEmail,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

type validateVoucherRequest struct {
	Code string `json:"code"`
}

func (s *Server) validateVoucher(c *gin.Context) {
	var req validateVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": codec.ValidateFormat(req.Code)})
}

type redeemVoucherRequest struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	Code      string `json:"code"`
}

func (s *Server) redeemVoucher(c *gin.Context) {
	var req redeemVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	accountID, err := parseAccountID(req.AccountID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.voucherSvc.Redeem(c.Request.Context(), voucherdomain.RedeemRequest{
		Code:      req.Code,
		AccountID: accountID,
		Email:     req.Email,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
