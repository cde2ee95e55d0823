package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nicekwell/easyweb3-sentiment/internal/audit"
)

type TokenAuditor interface {
	Audit(ctx context.Context, subject string) (*audit.Result, error)
}

type AuditHandler struct {
	Auditor TokenAuditor
}

func (h *AuditHandler) Register(g *gin.RouterGroup) {
	g.POST("/audit", h.audit)
}

type auditRequest struct {
	TokenSymbol string `json:"token_symbol"`
}

// @Summary Audit a token
// @Description Market metrics from CoinGecko plus contract risk factors from GoPlus.
// @Tags audit
// @Accept json
// @Produce json
// @Param body body auditRequest true "token_symbol"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Failure 429 {object} apiResponse
// @Router /api/v1/audit [post]
func (h *AuditHandler) audit(c *gin.Context) {
	if h.Auditor == nil {
		Error(c, http.StatusInternalServerError, "auditor unavailable", nil)
		return
	}
	var req auditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.TokenSymbol) == "" {
		Error(c, http.StatusBadRequest, "token_symbol is required", nil)
		return
	}
	res, err := h.Auditor.Audit(c.Request.Context(), req.TokenSymbol)
	if err != nil {
		AppError(c, err)
		return
	}
	Ok(c, res, nil)
}
