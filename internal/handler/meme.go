package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nicekwell/easyweb3-sentiment/internal/meme"
	"github.com/nicekwell/easyweb3-sentiment/internal/sentiment"
)

type MemeGenerator interface {
	Generate(ctx context.Context, req meme.Request) (*meme.Meme, error)
}

type Classifier interface {
	Classify(ctx context.Context, subject string) (*sentiment.Record, error)
}

type MemeHandler struct {
	Generator MemeGenerator
	// Classifier labels the token when the request carries no sentiment.
	Classifier Classifier
}

func (h *MemeHandler) Register(g *gin.RouterGroup) {
	g.POST("/meme", h.generate)
}

type memeRequest struct {
	TokenSymbol string `json:"token_symbol"`
	Sentiment   string `json:"sentiment"`
	Theme       string `json:"theme"`
}

// @Summary Generate a meme for a token
// @Description Classifies the token first when sentiment is omitted.
// @Tags meme
// @Accept json
// @Produce json
// @Param body body memeRequest true "token_symbol, optional sentiment and theme"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Failure 429 {object} apiResponse
// @Router /api/v1/meme [post]
func (h *MemeHandler) generate(c *gin.Context) {
	if h.Generator == nil {
		Error(c, http.StatusInternalServerError, "meme generator unavailable", nil)
		return
	}
	var req memeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.TokenSymbol) == "" {
		Error(c, http.StatusBadRequest, "token_symbol is required", nil)
		return
	}
	label := sentiment.Label(strings.TrimSpace(req.Sentiment))
	if label == "" && h.Classifier != nil {
		rec, err := h.Classifier.Classify(c.Request.Context(), req.TokenSymbol)
		if err != nil {
			AppError(c, err)
			return
		}
		label = rec.Label
	}
	m, err := h.Generator.Generate(c.Request.Context(), meme.Request{
		Subject: req.TokenSymbol,
		Label:   label,
		Theme:   req.Theme,
	})
	if err != nil {
		AppError(c, err)
		return
	}
	Ok(c, m, nil)
}
