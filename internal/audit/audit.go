// Package audit reports market metrics and contract risk factors for a token.
package audit

import (
	"context"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nicekwell/easyweb3-sentiment/internal/apperr"
	"github.com/nicekwell/easyweb3-sentiment/internal/market"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

const (
	PatternHoneypot = "honeypot"

	maxSymbolLen       = 10
	smallCapUSD        = 1_000_000
	defaultCallTimeout = 10 * time.Second
)

type Risks struct {
	IsMintable            bool     `json:"isMintable"`
	HasOwnerOnlyFunctions bool     `json:"hasOwnerOnlyFunctions"`
	SuspiciousPatterns    []string `json:"suspiciousPatterns"`
}

type Metrics struct {
	Price     float64 `json:"price"`
	Volume    float64 `json:"volume"`
	MarketCap float64 `json:"marketCap"`
}

type Analysis struct {
	RiskLevel RiskLevel `json:"riskLevel"`
	Findings  []string  `json:"findings"`
}

type Result struct {
	Token    string   `json:"token"`
	Analysis Analysis `json:"analysis"`
	Metrics  Metrics  `json:"metrics"`
	Risks    Risks    `json:"risks"`
	// ContractChecked is false when no security report backs Risks.
	ContractChecked bool   `json:"contractChecked"`
	Summary         string `json:"summary"`
}

// MarketSource returns nil, nil for an unknown token.
type MarketSource interface {
	TokenData(ctx context.Context, subject string) (*market.Data, error)
}

// Scanner returns nil, nil when it has no report for the contract.
type Scanner interface {
	TokenSecurity(ctx context.Context, c Contract) (*Risks, error)
}

type Options struct {
	CallTimeout time.Duration
	// Contracts maps a lowercase symbol to its contract.
	Contracts map[string]Contract
	Logger    *zap.Logger
}

type Auditor struct {
	market      MarketSource
	scanner     Scanner
	contracts   map[string]Contract
	callTimeout time.Duration
	logger      *zap.Logger
}

// NewAuditor builds an Auditor. A nil scanner leaves contract risks unchecked.
func NewAuditor(m MarketSource, s Scanner, opts Options) *Auditor {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Auditor{
		market:      m,
		scanner:     s,
		contracts:   opts.Contracts,
		callTimeout: opts.CallTimeout,
		logger:      opts.Logger,
	}
}

func (a *Auditor) Audit(ctx context.Context, subject string) (*Result, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, apperr.Validation("audit", "token symbol is required")
	}
	if utf8.RuneCountInString(subject) > maxSymbolLen {
		return nil, apperr.Validation("audit", "token symbol must be at most 10 characters")
	}

	var (
		md    *market.Data
		risks *Risks
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cctx, cancel := context.WithTimeout(gctx, a.callTimeout)
		defer cancel()
		d, err := a.market.TokenData(cctx, subject)
		if err != nil {
			return apperr.WrapUpstream("audit", "market data", err)
		}
		md = d
		return nil
	})
	if c, ok := a.contracts[strings.ToLower(subject)]; ok && a.scanner != nil {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, a.callTimeout)
			defer cancel()
			r, err := a.scanner.TokenSecurity(cctx, c)
			if err != nil {
				return apperr.WrapUpstream("audit", "token security", err)
			}
			risks = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := assess(subject, md, risks)
	a.logger.Info("token audited",
		zap.String("token", res.Token),
		zap.String("risk_level", string(res.Analysis.RiskLevel)),
		zap.Bool("contract_checked", res.ContractChecked),
	)
	return res, nil
}

func assess(subject string, md *market.Data, risks *Risks) *Result {
	res := &Result{
		Token: strings.ToUpper(subject),
		Risks: Risks{SuspiciousPatterns: []string{}},
	}
	var findings []string
	if md != nil {
		res.Metrics = Metrics{Price: md.CurrentPrice, Volume: md.Volume24h, MarketCap: md.MarketCap}
	} else {
		findings = append(findings, "no market data available")
	}
	if risks != nil {
		res.Risks = *risks
		if res.Risks.SuspiciousPatterns == nil {
			res.Risks.SuspiciousPatterns = []string{}
		}
		res.ContractChecked = true
	} else {
		findings = append(findings, "contract risks not checked")
	}

	r := res.Risks
	if r.IsMintable {
		findings = append(findings, "token supply is mintable")
	}
	if r.HasOwnerOnlyFunctions {
		findings = append(findings, "owner-only functions present")
	}
	for _, p := range r.SuspiciousPatterns {
		findings = append(findings, "suspicious pattern: "+p)
	}
	if md != nil && md.MarketCap < smallCapUSD {
		findings = append(findings, "market cap below $1,000,000")
	}
	if len(findings) == 0 {
		findings = []string{"no risk factors found"}
	}

	res.Analysis = Analysis{RiskLevel: riskLevel(md, r, res.ContractChecked), Findings: findings}
	res.Summary = summarize(res)
	return res
}

func riskLevel(md *market.Data, r Risks, checked bool) RiskLevel {
	switch {
	case slices.Contains(r.SuspiciousPatterns, PatternHoneypot),
		r.IsMintable && r.HasOwnerOnlyFunctions,
		len(r.SuspiciousPatterns) >= 2:
		return RiskHigh
	case !checked,
		md == nil,
		r.IsMintable,
		r.HasOwnerOnlyFunctions,
		len(r.SuspiciousPatterns) > 0,
		md.MarketCap < smallCapUSD:
		return RiskMedium
	}
	return RiskLow
}

func summarize(res *Result) string {
	var sb strings.Builder
	sb.WriteString("Risk Level: " + string(res.Analysis.RiskLevel) + "\n")
	sb.WriteString("Price: $" + decimal.NewFromFloat(res.Metrics.Price).String() + "\n")
	sb.WriteString("Market Cap: $" + decimal.NewFromFloat(res.Metrics.MarketCap).String() + "\n")
	sb.WriteString("Key Findings:")
	for _, f := range res.Analysis.Findings {
		sb.WriteString("\n- " + f)
	}
	return sb.String()
}
