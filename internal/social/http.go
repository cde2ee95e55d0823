package social

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nicekwell/easyweb3-sentiment/internal/apperr"
)

// HTTPProvider reads GET {BaseURL}/social/{subject}, which answers with a Data document.
type HTTPProvider struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func (p HTTPProvider) Fetch(ctx context.Context, subject string) (*Data, error) {
	base := strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	if base == "" {
		return nil, apperr.Upstream("social", "base url is empty", nil)
	}
	u := base + "/social/" + url.PathEscape(strings.ToLower(strings.TrimSpace(subject)))

	client := p.HTTP
	if client == nil {
		client = &http.Client{Timeout: 8 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, apperr.Upstream("social", "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if k := strings.TrimSpace(p.APIKey); k != "" {
		req.Header.Set("Authorization", "Bearer "+k)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, apperr.Upstream("social", "request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperr.Upstream("social", "read body", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperr.UpstreamStatus("social", resp.StatusCode, fmt.Errorf("%s", strings.TrimSpace(string(b))))
	}
	var d Data
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, apperr.Upstream("social", "decode response", err)
	}
	return &d, nil
}
