// Package models defines data structures for the codecritic review store.
package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// ReviewStatus is the lifecycle state of a review job.
type ReviewStatus string

const (
	StatusPending   ReviewStatus = "pending"
	StatusCompleted ReviewStatus = "completed"
	StatusFailed    ReviewStatus = "failed"
)

// Terminal reports whether no further transitions can occur.
func (s ReviewStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Issue is a single problem identified by the reviewer.
type Issue struct {
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Suggestion  string `json:"suggestion,omitempty"`
}

// Feedback is the structured review result. On failed jobs only Error is set.
type Feedback struct {
	Score                      int      `json:"score"`
	Issues                     []Issue  `json:"issues"`
	Suggestions                []string `json:"suggestions"`
	SecurityConcerns           []string `json:"security_concerns"`
	PerformanceRecommendations []string `json:"performance_recommendations"`
	OverallFeedback            string   `json:"overall_feedback"`
	Error                      string   `json:"error,omitempty"`
}

// HasValidScore reports whether the feedback carries a usable score.
// Cache lookups only reuse feedback that passes this check.
func (f *Feedback) HasValidScore() bool {
	return f != nil && f.Score >= 1 && f.Score <= 10
}

// Review is a persisted review job. Code, language, fingerprint, submitter
// and client address are immutable after creation; status transitions
// pending -> completed or pending -> failed exactly once.
type Review struct {
	ID          surrealmodels.RecordID `json:"id"`
	Code        string                 `json:"code"`
	Language    string                 `json:"language"`
	Status      ReviewStatus           `json:"status"`
	Fingerprint string                 `json:"fingerprint"`
	Submitter   *string                `json:"submitter,omitempty"`
	ClientAddr  string                 `json:"client_addr"`
	Feedback    *Feedback              `json:"feedback,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	FailedAt    *time.Time             `json:"failed_at,omitempty"`
}

// ReviewInput carries the fields set at creation time.
type ReviewInput struct {
	ID          string
	Code        string
	Language    string
	Status      ReviewStatus
	Fingerprint string
	Submitter   *string
	ClientAddr  string
	Feedback    *Feedback
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// ReviewFilter narrows listing and counting queries.
// Zero values mean "no filter"; Limit <= 0 falls back to a default.
type ReviewFilter struct {
	Language  string
	Status    ReviewStatus
	Submitter string
	From      *time.Time
	To        *time.Time
	Skip      int
	Limit     int
}

// LanguageStats aggregates completed reviews for one language.
type LanguageStats struct {
	Language string  `json:"language"`
	Count    int     `json:"count"`
	AvgScore float64 `json:"avg_score"`
}

// IssueCount is an issue description with its occurrence frequency.
type IssueCount struct {
	Description string `json:"description"`
	Count       int    `json:"count"`
}

// Stats is the aggregate statistics projection.
type Stats struct {
	TotalReviews int             `json:"total_reviews"`
	AvgScore     float64         `json:"avg_score"`
	TopIssues    []IssueCount    `json:"top_issues"`
	ByLanguage   []LanguageStats `json:"by_language"`
}
