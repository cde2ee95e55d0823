package sentiment

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	recordKeyPrefix = "sentiment:"
	statsKeyPrefix  = "stats:sentiment:"
)

type Label string

const (
	Positive Label = "positive"
	Negative Label = "negative"
	Neutral  Label = "neutral"
)

func (l Label) Valid() bool {
	switch l {
	case Positive, Negative, Neutral:
		return true
	}
	return false
}

type Channel string

const (
	Twitter  Channel = "twitter"
	Reddit   Channel = "reddit"
	Telegram Channel = "telegram"
)

// RequiredChannels must all carry a numeric score in a freshly computed record.
var RequiredChannels = []Channel{Twitter, Reddit, Telegram}

// Record is the cached classification of one subject.
type Record struct {
	Subject       string              `json:"subject"`
	Label         Label               `json:"sentiment"`
	Score         float64             `json:"score"`
	ChannelScores map[Channel]float64 `json:"sources"`
	// ReferencePrice is the market price seen when the record was computed.
	ReferencePrice *float64  `json:"reference_price,omitempty"`
	ComputedAt     time.Time `json:"computed_at"`
}

// Validate enforces the invariants every stored record must satisfy.
func (r Record) Validate() error {
	if !r.Label.Valid() {
		return fmt.Errorf("invalid sentiment value %q", r.Label)
	}
	if math.IsNaN(r.Score) || r.Score < 0 || r.Score > 1 {
		return fmt.Errorf("score %v out of [0,1]", r.Score)
	}
	for _, ch := range RequiredChannels {
		v, ok := r.ChannelScores[ch]
		if !ok {
			return fmt.Errorf("missing platform data: %s", ch)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("invalid platform score for: %s", ch)
		}
	}
	return nil
}

// Clone returns a copy that shares no map or pointer with r.
func (r Record) Clone() *Record {
	out := r
	if r.ChannelScores != nil {
		out.ChannelScores = make(map[Channel]float64, len(r.ChannelScores))
		for ch, v := range r.ChannelScores {
			out.ChannelScores[ch] = v
		}
	}
	if r.ReferencePrice != nil {
		p := *r.ReferencePrice
		out.ReferencePrice = &p
	}
	return &out
}

// Canonical is the storage form of a subject identifier.
func Canonical(subject string) string {
	return strings.ToLower(strings.TrimSpace(subject))
}

func recordKey(subject string) string { return recordKeyPrefix + Canonical(subject) }

func statsKey(subject string) string { return statsKeyPrefix + Canonical(subject) }

// WatchListEntry seeds warmup. ExpectedLabel is optional.
type WatchListEntry struct {
	Subject       string
	ExpectedLabel Label
}

// ParseWatchList accepts "BTC" or "BTC:positive" items; blanks are skipped.
func ParseWatchList(items []string) []WatchListEntry {
	out := make([]WatchListEntry, 0, len(items))
	for _, it := range items {
		subject, label, _ := strings.Cut(strings.TrimSpace(it), ":")
		subject = strings.TrimSpace(subject)
		if subject == "" {
			continue
		}
		e := WatchListEntry{Subject: subject}
		if l := Label(strings.ToLower(strings.TrimSpace(label))); l.Valid() {
			e.ExpectedLabel = l
		}
		out = append(out, e)
	}
	return out
}
