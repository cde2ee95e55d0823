package sentiment

import (
	"fmt"
	"math"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/nicekwell/easyweb3-sentiment/internal/apperr"
)

// Analysis is a validated oracle verdict.
type Analysis struct {
	Label    Label
	Score    float64
	Channels map[Channel]float64
}

// ParseAnalysis extracts the JSON object from an oracle reply and validates it
// against {sentiment, score, platforms:{twitter, reddit, telegram}}. Any deviation
// is an apperr.ErrInvalidResponse; there is no partial result.
func ParseAnalysis(content string) (Analysis, error) {
	payload := extractJSON(content)
	if payload == "" || !gjson.Valid(payload) {
		return Analysis{}, invalid("response is not a JSON object")
	}
	root := gjson.Parse(payload)
	if !root.IsObject() {
		return Analysis{}, invalid("response is not a JSON object")
	}
	for _, field := range []string{"sentiment", "score", "platforms"} {
		if !root.Get(field).Exists() {
			return Analysis{}, invalid("missing required field: " + field)
		}
	}

	s := root.Get("sentiment")
	label := Label(s.Str)
	if s.Type != gjson.String || !label.Valid() {
		return Analysis{}, invalid("invalid sentiment value")
	}
	sc := root.Get("score")
	if sc.Type != gjson.Number || sc.Num < 0 || sc.Num > 1 {
		return Analysis{}, invalid("invalid score value")
	}

	platforms := root.Get("platforms")
	if !platforms.IsObject() {
		return Analysis{}, invalid("invalid platforms value")
	}
	channels := make(map[Channel]float64, len(RequiredChannels))
	for _, ch := range RequiredChannels {
		v := platforms.Get(string(ch))
		if !v.Exists() {
			return Analysis{}, invalid(fmt.Sprintf("missing platform data: %s", ch))
		}
		if v.Type != gjson.Number || math.IsInf(v.Num, 0) {
			return Analysis{}, invalid(fmt.Sprintf("invalid platform score for: %s", ch))
		}
		channels[ch] = v.Num
	}
	return Analysis{Label: label, Score: sc.Num, Channels: channels}, nil
}

func invalid(msg string) error {
	return apperr.InvalidResponse("parse analysis", msg, nil)
}

// extractJSON strips markdown fences and surrounding prose from a model reply.
func extractJSON(content string) string {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}
