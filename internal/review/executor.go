package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/codecritic/codecritic/internal/metrics"
	"github.com/codecritic/codecritic/internal/models"
)

// Generator is the single-method capability a model provider must offer.
// llm.Model satisfies it; tests substitute fakes.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// JobStore is the slice of the review store the executor writes to.
type JobStore interface {
	CompleteReview(ctx context.Context, id string, feedback models.Feedback, completedAt time.Time) error
	FailReview(ctx context.Context, id string, errMsg string, failedAt time.Time) error
}

const (
	defaultAttempts = 3
	defaultBackoff  = 800 * time.Millisecond
)

// Executor transforms (language, code) into structured feedback via the
// configured provider and transitions the job to its terminal state. It
// holds no mutable state and is safe to invoke concurrently for many jobs.
type Executor struct {
	gen      Generator
	store    JobStore
	metrics  *metrics.Collector
	attempts int
	backoff  time.Duration
}

// NewExecutor creates an executor. attempts <= 0 and backoff <= 0 fall back
// to the defaults (3 attempts, 800ms initial backoff, doubling).
func NewExecutor(gen Generator, store JobStore, mc *metrics.Collector, attempts int, backoff time.Duration) *Executor {
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	return &Executor{
		gen:      gen,
		store:    store,
		metrics:  mc,
		attempts: attempts,
		backoff:  backoff,
	}
}

// Execute runs the review for one job to its terminal state. Provider
// exhaustion fails the job; any non-empty response completes it, degrading
// to fallback feedback when the content can't be parsed. Errors never
// propagate to the submission path - the job record is the result channel.
func (e *Executor) Execute(ctx context.Context, jobID, language, code string) {
	start := time.Now()

	raw, err := e.callWithRetry(ctx, BuildPrompt(language, code))
	if err != nil {
		slog.Error("review failed", "job_id", jobID, "error", err)
		if e.metrics != nil {
			e.metrics.Increment(metrics.CounterFailed)
		}
		if storeErr := e.store.FailReview(ctx, jobID, err.Error(), time.Now()); storeErr != nil {
			slog.Warn("failed to persist review failure", "job_id", jobID, "error", storeErr)
		}
		return
	}

	feedback := ParseFeedback(raw)

	if storeErr := e.store.CompleteReview(ctx, jobID, *feedback, time.Now()); storeErr != nil {
		slog.Warn("failed to persist review completion", "job_id", jobID, "error", storeErr)
		return
	}

	if e.metrics != nil {
		e.metrics.Increment(metrics.CounterCompleted)
		e.metrics.RecordTiming(metrics.OpReviewJob, time.Since(start))
	}
	slog.Info("review completed", "job_id", jobID, "score", feedback.Score, "issues", len(feedback.Issues))
}

// callWithRetry invokes the provider with exponential backoff: attempts
// total calls, sleeping backoff, 2*backoff, ... between them. An empty
// response counts as a failed attempt. Returns the last error on exhaustion.
func (e *Executor) callWithRetry(ctx context.Context, prompt string) (string, error) {
	var lastErr error

	wait := e.backoff
	for attempt := 1; attempt <= e.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			wait *= 2
		}

		raw, err := e.gen.Generate(ctx, prompt)
		if err != nil {
			lastErr = err
			slog.Warn("provider call failed", "attempt", attempt, "error", err)
			continue
		}
		if strings.TrimSpace(raw) == "" {
			lastErr = errors.New("empty response from provider")
			slog.Warn("provider returned empty response", "attempt", attempt)
			continue
		}
		return raw, nil
	}

	return "", fmt.Errorf("provider failed after %d attempts: %w", e.attempts, lastErr)
}
