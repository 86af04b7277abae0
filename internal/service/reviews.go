// Package service provides the review submission pipeline: validation, rate
// limiting, fingerprint cache lookup, and dispatch to background execution.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/codecritic/codecritic/internal/db"
	"github.com/codecritic/codecritic/internal/metrics"
	"github.com/codecritic/codecritic/internal/models"
	"github.com/codecritic/codecritic/internal/review"
	"github.com/google/uuid"
)

// Sentinel errors surfaced synchronously to the submitter. Both occur before
// any persistent state is created, so rejected requests leave no trace.
var (
	ErrValidation  = errors.New("validation failed")
	ErrRateLimited = errors.New("rate limit exceeded")
)

// Store is the durable review collection the pipeline reads and writes.
// db.Client is the production implementation.
type Store interface {
	CreateReview(ctx context.Context, in models.ReviewInput) (*models.Review, error)
	GetReview(ctx context.Context, id string) (*models.Review, error)
	FindCompletedByFingerprint(ctx context.Context, fingerprint string) (*models.Review, error)
	ListReviews(ctx context.Context, f models.ReviewFilter) ([]models.Review, error)
	CountReviews(ctx context.Context, f models.ReviewFilter) (int, error)
	CountByClientSince(ctx context.Context, clientAddr string, since time.Time) (int, error)
	ReviewStats(ctx context.Context, topIssues int) (*models.Stats, error)
}

// Enqueuer hands a persisted pending job to background execution.
type Enqueuer interface {
	Enqueue(jobID, language, code string) error
}

// ReviewService owns the synchronous half of the pipeline.
type ReviewService struct {
	store      Store
	dispatcher Enqueuer
	metrics    *metrics.Collector

	rateLimit  int
	rateWindow time.Duration
	topIssues  int
}

// NewReviewService creates the service. rateLimit <= 0 disables the limiter
// (useful in tests); rateWindow <= 0 falls back to one hour.
func NewReviewService(store Store, dispatcher Enqueuer, mc *metrics.Collector, rateLimit int, rateWindow time.Duration, topIssues int) *ReviewService {
	if rateWindow <= 0 {
		rateWindow = time.Hour
	}
	if topIssues <= 0 {
		topIssues = 10
	}
	return &ReviewService{
		store:      store,
		dispatcher: dispatcher,
		metrics:    mc,
		rateLimit:  rateLimit,
		rateWindow: rateWindow,
		topIssues:  topIssues,
	}
}

// SubmitInput carries one submission. ClientAddr is used for rate limiting
// only; Submitter is nil for anonymous submissions.
type SubmitInput struct {
	Code       string
	Language   string
	Submitter  *string
	ClientAddr string
}

// Submit runs the fast synchronous path: validate, rate-limit, check the
// fingerprint cache, persist, dispatch. It returns the created job
// immediately - pending for fresh submissions, completed for cache hits.
//
// Known limitation: the window count and the insert are not atomic, so two
// concurrent submissions can both read a count just under the threshold and
// both be admitted. Same for the cache check: concurrent identical
// submissions may each miss and trigger duplicate provider calls. Both races
// are accepted best-effort semantics, not hard bounds.
func (s *ReviewService) Submit(ctx context.Context, in SubmitInput) (*models.Review, error) {
	if strings.TrimSpace(in.Code) == "" {
		return nil, fmt.Errorf("%w: code is required", ErrValidation)
	}
	if strings.TrimSpace(in.Language) == "" {
		return nil, fmt.Errorf("%w: language is required", ErrValidation)
	}

	clientAddr := in.ClientAddr
	if clientAddr == "" {
		clientAddr = "unknown"
	}

	if s.rateLimit > 0 {
		since := time.Now().Add(-s.rateWindow)
		count, err := s.store.CountByClientSince(ctx, clientAddr, since)
		if err != nil {
			return nil, fmt.Errorf("rate limit check: %w", err)
		}
		if count >= s.rateLimit {
			if s.metrics != nil {
				s.metrics.Increment(metrics.CounterRateLimited)
			}
			slog.Info("submission rate limited", "client", clientAddr, "count", count, "limit", s.rateLimit)
			return nil, fmt.Errorf("%w: %d submissions in the last %s", ErrRateLimited, count, s.rateWindow)
		}
	}

	fingerprint := review.Fingerprint(in.Language, in.Code)

	if cached, err := s.lookupCache(ctx, fingerprint); err != nil {
		return nil, err
	} else if cached != nil {
		// Synthesize a new, immediately-completed job that copies the cached
		// feedback. The original record is never mutated.
		now := time.Now()
		job, err := s.store.CreateReview(ctx, models.ReviewInput{
			ID:          uuid.New().String(),
			Code:        in.Code,
			Language:    in.Language,
			Status:      models.StatusCompleted,
			Fingerprint: fingerprint,
			Submitter:   in.Submitter,
			ClientAddr:  clientAddr,
			Feedback:    cached.Feedback,
			CreatedAt:   now,
			CompletedAt: &now,
		})
		if err != nil {
			return nil, fmt.Errorf("create cached review: %w", err)
		}
		if s.metrics != nil {
			s.metrics.Increment(metrics.CounterCacheHits)
		}
		slog.Info("cache hit", "job_id", job.ID, "fingerprint", fingerprint[:12])
		return job, nil
	}

	job, err := s.store.CreateReview(ctx, models.ReviewInput{
		ID:          uuid.New().String(),
		Code:        in.Code,
		Language:    in.Language,
		Status:      models.StatusPending,
		Fingerprint: fingerprint,
		Submitter:   in.Submitter,
		ClientAddr:  clientAddr,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}

	// The insert above has returned, so the pending record is durably
	// visible before the handoff; a status query right after submission
	// finds at least the pending state.
	jobID := models.MustRecordIDString(job.ID)
	if err := s.dispatcher.Enqueue(jobID, in.Language, in.Code); err != nil {
		slog.Error("dispatch failed, job stays pending", "job_id", jobID, "error", err)
	} else {
		slog.Info("review dispatched", "job_id", jobID, "language", in.Language)
	}

	return job, nil
}

// lookupCache finds a prior completed review for the fingerprint with usable
// feedback. A miss is a normal outcome, never an error.
func (s *ReviewService) lookupCache(ctx context.Context, fingerprint string) (*models.Review, error) {
	cached, err := s.store.FindCompletedByFingerprint(ctx, fingerprint)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}
	if !cached.Feedback.HasValidScore() {
		return nil, nil
	}
	return cached, nil
}

// Get retrieves one review by ID. Returns db.ErrNotFound when absent.
func (s *ReviewService) Get(ctx context.Context, id string) (*models.Review, error) {
	return s.store.GetReview(ctx, id)
}

// List returns the filtered page, newest first, plus the total match count.
func (s *ReviewService) List(ctx context.Context, f models.ReviewFilter) ([]models.Review, int, error) {
	items, err := s.store.ListReviews(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountReviews(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Stats returns the aggregate statistics projection.
func (s *ReviewService) Stats(ctx context.Context) (*models.Stats, error) {
	return s.store.ReviewStats(ctx, s.topIssues)
}
