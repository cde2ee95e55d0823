// Package social supplies per-channel engagement context for sentiment analysis.
package social

import "context"

type Twitter struct {
	Followers      int64   `json:"followers"`
	Mentions       int64   `json:"mentions"`
	SentimentScore float64 `json:"sentiment_score"`
}

type Reddit struct {
	Subscribers    int64   `json:"subscribers"`
	ActiveUsers    int64   `json:"active_users"`
	SentimentScore float64 `json:"sentiment_score"`
}

type Telegram struct {
	Members       int64   `json:"members"`
	ActivityScore float64 `json:"activity_score"`
}

type Data struct {
	Twitter  Twitter  `json:"twitter"`
	Reddit   Reddit   `json:"reddit"`
	Telegram Telegram `json:"telegram"`
}

// Provider returns nil, nil when it has nothing for subject.
type Provider interface {
	Fetch(ctx context.Context, subject string) (*Data, error)
}

// Stub serves fixed engagement figures until a real social feed is configured.
type Stub struct{}

func (Stub) Fetch(ctx context.Context, subject string) (*Data, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Data{
		Twitter:  Twitter{Followers: 10000, Mentions: 500, SentimentScore: 0.7},
		Reddit:   Reddit{Subscribers: 5000, ActiveUsers: 300, SentimentScore: 0.6},
		Telegram: Telegram{Members: 3000, ActivityScore: 0.8},
	}, nil
}
