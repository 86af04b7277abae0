package review

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codecritic/codecritic/internal/models"
)

const (
	// DefaultScore replaces a missing or out-of-range score.
	DefaultScore = 5

	defaultOverall = "No overall feedback provided."
)

// rawFeedback tolerates schema deviations: score may arrive as a float,
// string or be absent; list fields may be missing or not lists at all.
type rawFeedback struct {
	Score                      any             `json:"score"`
	Issues                     json.RawMessage `json:"issues"`
	Suggestions                json.RawMessage `json:"suggestions"`
	SecurityConcerns           json.RawMessage `json:"security_concerns"`
	PerformanceRecommendations json.RawMessage `json:"performance_recommendations"`
	OverallFeedback            string          `json:"overall_feedback"`
}

// ParseFeedback turns a raw provider response into well-formed feedback.
// It never fails: unparseable content yields a fallback object with a single
// high-severity issue, which counts as a degraded-but-successful review.
// The distinction matters: "provider unreachable" fails the job, "provider
// replied with garbage" completes it.
func ParseFeedback(raw string) *models.Feedback {
	cleaned := stripCodeFences(raw)

	var parsed rawFeedback
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return fallbackFeedback(fmt.Sprintf("provider response was not valid JSON: %v", err))
	}

	return &models.Feedback{
		Score:                      coerceScore(parsed.Score),
		Issues:                     decodeList[models.Issue](parsed.Issues),
		Suggestions:                decodeList[string](parsed.Suggestions),
		SecurityConcerns:           decodeList[string](parsed.SecurityConcerns),
		PerformanceRecommendations: decodeList[string](parsed.PerformanceRecommendations),
		OverallFeedback:            defaultIfEmpty(parsed.OverallFeedback),
	}
}

// fallbackFeedback is the well-formed substitute for unparseable content.
func fallbackFeedback(reason string) *models.Feedback {
	return &models.Feedback{
		Score: DefaultScore,
		Issues: []models.Issue{{
			Severity:    "high",
			Description: reason,
			Suggestion:  "Resubmit the code for another review.",
		}},
		Suggestions:                []string{},
		SecurityConcerns:           []string{},
		PerformanceRecommendations: []string{},
		OverallFeedback:            "The review could not be fully processed.",
	}
}

// coerceScore clamps the score to 1-10, replacing anything else (missing,
// non-numeric, out of range) with the default.
func coerceScore(v any) int {
	f, ok := v.(float64) // encoding/json decodes all numbers as float64
	if !ok {
		return DefaultScore
	}
	score := int(f)
	if score < 1 || score > 10 {
		return DefaultScore
	}
	return score
}

// decodeList decodes a JSON array, coercing missing or non-list values to an
// empty list.
func decodeList[T any](raw json.RawMessage) []T {
	if len(raw) == 0 {
		return []T{}
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return []T{}
	}
	return out
}

func defaultIfEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return defaultOverall
	}
	return s
}

// stripCodeFences removes a surrounding markdown code fence, which several
// providers wrap JSON responses in despite instructions.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop an optional language tag on the fence line.
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
