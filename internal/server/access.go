package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func (s *Server) listEras(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"eras": s.catalog.List()})
}

func (s *Server) resolveAccess(c *gin.Context) {
	cfg, err := s.catalog.Get(c.Param("identifier"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	accountID, err := parseAccountID(c.Query("account_id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	decision, err := s.accessSvc.Resolve(c.Request.Context(), accountID, cfg)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, decision)
}

type consumeRequest struct {
	AccountID string `json:"account_id"`
}

func (s *Server) consumeAccess(c *gin.Context) {
	cfg, err := s.catalog.Get(c.Param("identifier"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req consumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	accountID, err := parseAccountID(req.AccountID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.accessSvc.Consume(c.Request.Context(), accountID, cfg)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// parseAccountID maps an absent identity to the guest account (zero).
func parseAccountID(raw string) (snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return snowflake.ParseString(raw)
}
