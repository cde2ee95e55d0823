// Package oracle wraps the hosted language models used to classify and describe tokens.
package oracle

import (
	"context"
	"errors"
	"strings"

	"github.com/nicekwell/easyweb3-sentiment/internal/apperr"
)

// Prompt is a single system+user exchange.
type Prompt struct {
	System string
	User   string
}

// Client returns the raw text content of the model's reply. Errors are
// *apperr.Error of kind RateLimited, Unavailable or Upstream.
type Client interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// Func adapts a function to Client.
type Func func(ctx context.Context, p Prompt) (string, error)

func (f Func) Complete(ctx context.Context, p Prompt) (string, error) { return f(ctx, p) }

// Error codes some OpenAI-compatible gateways put in the error body.
const (
	codeRateLimitExceeded = "rate_limit_exceeded"
	codeModelUnavailable  = "model_unavailable"
	codeOverloaded        = "overloaded_error"
)

// classifyError maps a provider failure onto the error taxonomy.
func classifyError(op string, status int, code string, err error) error {
	code = strings.ToLower(strings.TrimSpace(code))
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return apperr.Upstream(op, "request timed out", err)
	case status == 429 || code == codeRateLimitExceeded:
		return apperr.RateLimited(op, err)
	case status == 503 || status == 529 || code == codeModelUnavailable || code == codeOverloaded:
		return apperr.Unavailable(op, err)
	case status > 0:
		return apperr.UpstreamStatus(op, status, err)
	default:
		return apperr.Upstream(op, "request failed", err)
	}
}
