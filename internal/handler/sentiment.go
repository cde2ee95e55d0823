package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nicekwell/easyweb3-sentiment/internal/sentiment"
)

type SentimentService interface {
	Classify(ctx context.Context, subject string) (*sentiment.Record, error)
	Stats(ctx context.Context, subject string) (*sentiment.CacheCounters, error)
}

type SentimentHandler struct {
	Service SentimentService
}

func (h *SentimentHandler) Register(g *gin.RouterGroup) {
	g.POST("/sentiment", h.classify)
}

type classifyRequest struct {
	TokenSymbol string `json:"token_symbol"`
}

// @Summary Classify token sentiment
// @Description Served from cache while the price has not drifted past the threshold.
// @Tags sentiment
// @Accept json
// @Produce json
// @Param body body classifyRequest true "token_symbol"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Failure 422 {object} apiResponse
// @Failure 429 {object} apiResponse
// @Failure 503 {object} apiResponse
// @Router /api/v1/sentiment [post]
func (h *SentimentHandler) classify(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	var req classifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.TokenSymbol) == "" {
		Error(c, http.StatusBadRequest, "token_symbol is required", nil)
		return
	}
	rec, err := h.Service.Classify(c.Request.Context(), req.TokenSymbol)
	if err != nil {
		AppError(c, err)
		return
	}
	Ok(c, rec, nil)
}

// AdminHandler serves operator-only views. Every route requires an admin token.
type AdminHandler struct {
	Service SentimentService
}

func (h *AdminHandler) Register(g *gin.RouterGroup) {
	g.GET("/cache-stats", h.cacheStats)
}

// @Summary Cache counters for a token
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param token query string true "token symbol"
// @Success 200 {object} apiResponse
// @Failure 401 {object} apiResponse
// @Failure 403 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/v1/admin/cache-stats [get]
func (h *AdminHandler) cacheStats(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		Error(c, http.StatusBadRequest, "token is required", nil)
		return
	}
	stats, err := h.Service.Stats(c.Request.Context(), token)
	if err != nil {
		AppError(c, err)
		return
	}
	if stats == nil {
		Error(c, http.StatusNotFound, "no stats for token", nil)
		return
	}
	Ok(c, stats, map[string]any{"token": sentiment.Canonical(token)})
}
