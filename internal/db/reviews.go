package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/codecritic/codecritic/internal/models"
)

// reviewsDefaultLimit caps listing queries when the caller passes no limit.
const reviewsDefaultLimit = 10

// CreateReview inserts a new review record. The caller assigns the ID and
// all immutable fields; cache hits insert records already completed.
func (c *Client) CreateReview(ctx context.Context, in models.ReviewInput) (*models.Review, error) {
	sql := `
		CREATE type::record("review", $id) SET
			code = $code,
			language = $language,
			status = $status,
			fingerprint = $fingerprint,
			submitter = $submitter,
			client_addr = $client_addr,
			feedback = $feedback,
			created_at = type::datetime($created_at),
			completed_at = IF $completed_at THEN type::datetime($completed_at) ELSE NONE END
		RETURN AFTER
	`

	vars := map[string]any{
		"id":           in.ID,
		"code":         in.Code,
		"language":     in.Language,
		"status":       string(in.Status),
		"fingerprint":  in.Fingerprint,
		"submitter":    in.Submitter,
		"client_addr":  in.ClientAddr,
		"feedback":     in.Feedback,
		"created_at":   in.CreatedAt.UTC().Format(time.RFC3339Nano),
		"completed_at": nil,
	}
	if in.CompletedAt != nil {
		vars["completed_at"] = in.CompletedAt.UTC().Format(time.RFC3339Nano)
	}

	results, err := query[[]models.Review](ctx, c, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("create review: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("create review: no result returned")
	}
	return &(*results)[0].Result[0], nil
}

// GetReview retrieves a review by ID. Returns ErrNotFound when absent.
func (c *Client) GetReview(ctx context.Context, id string) (*models.Review, error) {
	results, err := query[[]models.Review](ctx, c, `
		SELECT * FROM type::record("review", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, ErrNotFound
	}
	return &(*results)[0].Result[0], nil
}

// FindCompletedByFingerprint returns the most recent completed review with
// this fingerprint whose feedback carries a valid score, or ErrNotFound.
func (c *Client) FindCompletedByFingerprint(ctx context.Context, fingerprint string) (*models.Review, error) {
	results, err := query[[]models.Review](ctx, c, `
		SELECT * FROM review
		WHERE fingerprint = $fingerprint
			AND status = "completed"
			AND feedback.score >= 1
			AND feedback.score <= 10
		ORDER BY created_at DESC
		LIMIT 1
	`, map[string]any{"fingerprint": fingerprint})
	if err != nil {
		return nil, fmt.Errorf("find by fingerprint: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, ErrNotFound
	}
	return &(*results)[0].Result[0], nil
}

// filterClauses builds WHERE clauses and vars shared by list and count.
func filterClauses(f models.ReviewFilter) (string, map[string]any) {
	clauses := []string{}
	vars := map[string]any{}

	if f.Language != "" {
		clauses = append(clauses, "language = $language")
		vars["language"] = f.Language
	}
	if f.Status != "" {
		clauses = append(clauses, "status = $status")
		vars["status"] = string(f.Status)
	}
	if f.Submitter != "" {
		clauses = append(clauses, "submitter = $submitter")
		vars["submitter"] = f.Submitter
	}
	if f.From != nil {
		clauses = append(clauses, "created_at >= type::datetime($from)")
		vars["from"] = f.From.UTC().Format(time.RFC3339Nano)
	}
	if f.To != nil {
		clauses = append(clauses, "created_at <= type::datetime($to)")
		vars["to"] = f.To.UTC().Format(time.RFC3339Nano)
	}

	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	return where, vars
}

// ListReviews returns reviews matching the filter, newest first, paginated
// with offset + limit.
func (c *Client) ListReviews(ctx context.Context, f models.ReviewFilter) ([]models.Review, error) {
	where, vars := filterClauses(f)

	limit := f.Limit
	if limit <= 0 {
		limit = reviewsDefaultLimit
	}
	vars["limit"] = limit
	vars["start"] = max(f.Skip, 0)

	sql := fmt.Sprintf(`
		SELECT * FROM review %s
		ORDER BY created_at DESC
		LIMIT $limit START $start
	`, where)

	results, err := query[[]models.Review](ctx, c, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return []models.Review{}, nil
	}
	return (*results)[0].Result, nil
}

// CountReviews counts reviews matching the filter.
func (c *Client) CountReviews(ctx context.Context, f models.ReviewFilter) (int, error) {
	where, vars := filterClauses(f)

	sql := fmt.Sprintf(`SELECT count() AS count FROM review %s GROUP ALL`, where)

	results, err := query[[]struct {
		Count int `json:"count"`
	}](ctx, c, sql, vars)
	if err != nil {
		return 0, fmt.Errorf("count reviews: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].Count, nil
}

// CountByClientSince counts reviews created by one client address after the
// given instant. Backs the sliding-window rate limiter; the window is
// computed by the caller at call time, not aligned to clock buckets.
func (c *Client) CountByClientSince(ctx context.Context, clientAddr string, since time.Time) (int, error) {
	results, err := query[[]struct {
		Count int `json:"count"`
	}](ctx, c, `
		SELECT count() AS count FROM review
		WHERE client_addr = $addr AND created_at > type::datetime($since)
		GROUP ALL
	`, map[string]any{
		"addr":  clientAddr,
		"since": since.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return 0, fmt.Errorf("count by client: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].Count, nil
}

// CompleteReview transitions a pending review to completed with its feedback.
// The status guard makes the transition one-directional: a review that
// already reached a terminal state is never overwritten (ErrNotFound).
func (c *Client) CompleteReview(ctx context.Context, id string, feedback models.Feedback, completedAt time.Time) error {
	results, err := query[[]models.Review](ctx, c, `
		UPDATE type::record("review", $id) SET
			status = "completed",
			feedback = $feedback,
			completed_at = type::datetime($at)
		WHERE status = "pending"
		RETURN AFTER
	`, map[string]any{
		"id":       id,
		"feedback": feedback,
		"at":       completedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("complete review: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return fmt.Errorf("complete review %s: %w", id, ErrNotFound)
	}
	return nil
}

// FailReview transitions a pending review to failed, storing the error
// description in the feedback payload. Same one-shot guard as CompleteReview.
func (c *Client) FailReview(ctx context.Context, id string, errMsg string, failedAt time.Time) error {
	results, err := query[[]models.Review](ctx, c, `
		UPDATE type::record("review", $id) SET
			status = "failed",
			feedback = { error: $error },
			failed_at = type::datetime($at)
		WHERE status = "pending"
		RETURN AFTER
	`, map[string]any{
		"id":    id,
		"error": errMsg,
		"at":    failedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("fail review: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return fmt.Errorf("fail review %s: %w", id, ErrNotFound)
	}
	return nil
}

// ReviewStats computes the aggregate statistics projection: overall count and
// average score, top-N issue descriptions by frequency, and per-language
// count and average score. Only completed reviews contribute.
func (c *Client) ReviewStats(ctx context.Context, topIssues int) (*models.Stats, error) {
	stats := &models.Stats{
		TopIssues:  []models.IssueCount{},
		ByLanguage: []models.LanguageStats{},
	}

	overall, err := query[[]struct {
		Count    int     `json:"count"`
		AvgScore float64 `json:"avg_score"`
	}](ctx, c, `
		SELECT count() AS count, math::mean(feedback.score) AS avg_score
		FROM review WHERE status = "completed" GROUP ALL
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("stats overall: %w", err)
	}
	if overall != nil && len(*overall) > 0 && len((*overall)[0].Result) > 0 {
		stats.TotalReviews = (*overall)[0].Result[0].Count
		stats.AvgScore = (*overall)[0].Result[0].AvgScore
	}

	// Explode the per-review issue description arrays, then group by value.
	issues, err := query[[]models.IssueCount](ctx, c, `
		SELECT description, count() AS count FROM (
			SELECT feedback.issues.description AS description
			FROM review WHERE status = "completed" SPLIT description
		)
		WHERE description != NONE AND description != ""
		GROUP BY description ORDER BY count DESC LIMIT $limit
	`, map[string]any{"limit": topIssues})
	if err != nil {
		return nil, fmt.Errorf("stats issues: %w", err)
	}
	if issues != nil && len(*issues) > 0 {
		stats.TopIssues = (*issues)[0].Result
	}

	byLang, err := query[[]models.LanguageStats](ctx, c, `
		SELECT language, count() AS count, math::mean(feedback.score) AS avg_score
		FROM review WHERE status = "completed"
		GROUP BY language ORDER BY count DESC
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("stats by language: %w", err)
	}
	if byLang != nil && len(*byLang) > 0 {
		stats.ByLanguage = (*byLang)[0].Result
	}

	return stats, nil
}
