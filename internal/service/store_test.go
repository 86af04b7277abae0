package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/codecritic/codecritic/internal/db"
	"github.com/codecritic/codecritic/internal/models"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// memStore is an in-memory Store for pipeline tests. It also implements the
// executor's JobStore so service, dispatcher and executor can be wired
// together without a database.
type memStore struct {
	mu      sync.RWMutex
	reviews map[string]*models.Review
}

func newMemStore() *memStore {
	return &memStore{reviews: map[string]*models.Review{}}
}

func (s *memStore) CreateReview(ctx context.Context, in models.ReviewInput) (*models.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := &models.Review{
		ID:          surrealmodels.RecordID{Table: "review", ID: in.ID},
		Code:        in.Code,
		Language:    in.Language,
		Status:      in.Status,
		Fingerprint: in.Fingerprint,
		Submitter:   in.Submitter,
		ClientAddr:  in.ClientAddr,
		Feedback:    in.Feedback,
		CreatedAt:   in.CreatedAt,
		CompletedAt: in.CompletedAt,
	}
	s.reviews[in.ID] = r
	return r, nil
}

func (s *memStore) GetReview(ctx context.Context, id string) (*models.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reviews[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) FindCompletedByFingerprint(ctx context.Context, fingerprint string) (*models.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *models.Review
	for _, r := range s.reviews {
		if r.Fingerprint != fingerprint || r.Status != models.StatusCompleted {
			continue
		}
		if !r.Feedback.HasValidScore() {
			continue
		}
		if best == nil || r.CreatedAt.After(best.CreatedAt) {
			best = r
		}
	}
	if best == nil {
		return nil, db.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func matches(r *models.Review, f models.ReviewFilter) bool {
	if f.Language != "" && r.Language != f.Language {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Submitter != "" && (r.Submitter == nil || *r.Submitter != f.Submitter) {
		return false
	}
	if f.From != nil && r.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && r.CreatedAt.After(*f.To) {
		return false
	}
	return true
}

func (s *memStore) ListReviews(ctx context.Context, f models.ReviewFilter) ([]models.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Review{}
	for _, r := range s.reviews {
		if matches(r, f) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	skip := f.Skip
	if skip > len(out) {
		skip = len(out)
	}
	end := skip + limit
	if end > len(out) {
		end = len(out)
	}
	return out[skip:end], nil
}

func (s *memStore) CountReviews(ctx context.Context, f models.ReviewFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.reviews {
		if matches(r, f) {
			n++
		}
	}
	return n, nil
}

func (s *memStore) CountByClientSince(ctx context.Context, clientAddr string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.reviews {
		if r.ClientAddr == clientAddr && r.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (s *memStore) CompleteReview(ctx context.Context, id string, feedback models.Feedback, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok || r.Status != models.StatusPending {
		return db.ErrNotFound
	}
	r.Status = models.StatusCompleted
	r.Feedback = &feedback
	r.CompletedAt = &completedAt
	return nil
}

func (s *memStore) FailReview(ctx context.Context, id string, errMsg string, failedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok || r.Status != models.StatusPending {
		return db.ErrNotFound
	}
	r.Status = models.StatusFailed
	r.Feedback = &models.Feedback{Error: errMsg}
	r.FailedAt = &failedAt
	return nil
}

func (s *memStore) ReviewStats(ctx context.Context, topIssues int) (*models.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.Stats{TopIssues: []models.IssueCount{}, ByLanguage: []models.LanguageStats{}}
	byLang := map[string]*models.LanguageStats{}
	issueFreq := map[string]int{}
	scoreSum := 0

	for _, r := range s.reviews {
		if r.Status != models.StatusCompleted || r.Feedback == nil {
			continue
		}
		stats.TotalReviews++
		scoreSum += r.Feedback.Score

		ls := byLang[r.Language]
		if ls == nil {
			ls = &models.LanguageStats{Language: r.Language}
			byLang[r.Language] = ls
		}
		ls.Count++
		ls.AvgScore += float64(r.Feedback.Score)

		for _, issue := range r.Feedback.Issues {
			if strings.TrimSpace(issue.Description) != "" {
				issueFreq[issue.Description]++
			}
		}
	}

	if stats.TotalReviews > 0 {
		stats.AvgScore = float64(scoreSum) / float64(stats.TotalReviews)
	}
	for _, ls := range byLang {
		ls.AvgScore /= float64(ls.Count)
		stats.ByLanguage = append(stats.ByLanguage, *ls)
	}
	for desc, n := range issueFreq {
		stats.TopIssues = append(stats.TopIssues, models.IssueCount{Description: desc, Count: n})
	}
	sort.Slice(stats.TopIssues, func(i, j int) bool { return stats.TopIssues[i].Count > stats.TopIssues[j].Count })
	if len(stats.TopIssues) > topIssues {
		stats.TopIssues = stats.TopIssues[:topIssues]
	}
	return stats, nil
}

// backdate rewrites a review's creation time, for window-expiry tests.
func (s *memStore) backdate(id string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.reviews[id]; ok {
		r.CreatedAt = t
	}
}
