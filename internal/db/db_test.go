// Package db provides integration tests for SurrealDB operations.
package db

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/codecritic/codecritic/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testDB *Client
var testContainer testcontainers.Container

// TestMain sets up and tears down the SurrealDB container for all tests.
func TestMain(m *testing.M) {
	// Disable ryuk (cleanup container) as it can cause issues in some environments
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	var err error
	testContainer, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start SurrealDB container: %v", err)
	}

	host, err := testContainer.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	// Workaround: testcontainers may return "null" as host in some environments
	if host == "" || host == "null" {
		host = "localhost"
	}
	mappedPort, err := testContainer.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testDB, err = NewClient(ctx, Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, mappedPort.Port()),
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}, nil, nil)
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := testDB.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	code := m.Run()

	_ = testDB.Close(ctx)
	_ = testContainer.Terminate(ctx)

	os.Exit(code)
}

func pendingInput(code, language, clientAddr string) models.ReviewInput {
	return models.ReviewInput{
		ID:          uuid.New().String(),
		Code:        code,
		Language:    language,
		Status:      models.StatusPending,
		Fingerprint: "fp-" + uuid.New().String(),
		ClientAddr:  clientAddr,
		CreatedAt:   time.Now(),
	}
}

func TestCreateAndGetReview(t *testing.T) {
	ctx := context.Background()

	in := pendingInput("fmt.Println(1)", "go", "10.0.0.1")
	created, err := testDB.CreateReview(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, created.Status)
	assert.Equal(t, in.Code, created.Code)
	assert.Nil(t, created.Feedback)
	assert.Nil(t, created.CompletedAt)

	got, err := testDB.GetReview(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, in.Fingerprint, got.Fingerprint)
	assert.Equal(t, in.ClientAddr, got.ClientAddr)
	assert.WithinDuration(t, in.CreatedAt, got.CreatedAt, time.Second)
}

func TestGetReviewNotFound(t *testing.T) {
	_, err := testDB.GetReview(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCompleteReviewOnce(t *testing.T) {
	ctx := context.Background()

	in := pendingInput("x()", "go", "10.0.0.2")
	_, err := testDB.CreateReview(ctx, in)
	require.NoError(t, err)

	feedback := models.Feedback{
		Score: 8,
		Issues: []models.Issue{
			{Severity: "medium", Description: "unchecked error", Suggestion: "handle it"},
		},
		Suggestions:     []string{"add tests"},
		OverallFeedback: "solid",
	}
	require.NoError(t, testDB.CompleteReview(ctx, in.ID, feedback, time.Now()))

	got, err := testDB.GetReview(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	require.NotNil(t, got.Feedback)
	assert.Equal(t, 8, got.Feedback.Score)
	require.Len(t, got.Feedback.Issues, 1)
	assert.Equal(t, "unchecked error", got.Feedback.Issues[0].Description)
	assert.NotNil(t, got.CompletedAt)
	assert.Nil(t, got.FailedAt)

	// Terminal states are final: neither transition applies twice.
	assert.ErrorIs(t, testDB.CompleteReview(ctx, in.ID, feedback, time.Now()), ErrNotFound)
	assert.ErrorIs(t, testDB.FailReview(ctx, in.ID, "late", time.Now()), ErrNotFound)
}

func TestFailReview(t *testing.T) {
	ctx := context.Background()

	in := pendingInput("y()", "go", "10.0.0.3")
	_, err := testDB.CreateReview(ctx, in)
	require.NoError(t, err)

	require.NoError(t, testDB.FailReview(ctx, in.ID, "provider exhausted", time.Now()))

	got, err := testDB.GetReview(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	require.NotNil(t, got.Feedback)
	assert.Equal(t, "provider exhausted", got.Feedback.Error)
	assert.NotNil(t, got.FailedAt)
	assert.Nil(t, got.CompletedAt)
}

func TestFindCompletedByFingerprint(t *testing.T) {
	ctx := context.Background()

	in := pendingInput("z()", "go", "10.0.0.4")
	in.Fingerprint = "shared-fp-" + uuid.New().String()
	_, err := testDB.CreateReview(ctx, in)
	require.NoError(t, err)

	// Pending records never serve the cache.
	_, err = testDB.FindCompletedByFingerprint(ctx, in.Fingerprint)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, testDB.CompleteReview(ctx, in.ID, models.Feedback{Score: 6}, time.Now()))

	hit, err := testDB.FindCompletedByFingerprint(ctx, in.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, 6, hit.Feedback.Score)
}

func TestListAndCountReviews(t *testing.T) {
	ctx := context.Background()

	language := "lang-" + uuid.New().String()[:8]
	for i := 0; i < 3; i++ {
		in := pendingInput(fmt.Sprintf("f%d()", i), language, "10.0.0.5")
		_, err := testDB.CreateReview(ctx, in)
		require.NoError(t, err)
	}

	items, err := testDB.ListReviews(ctx, models.ReviewFilter{Language: language, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	// Newest first.
	if len(items) == 2 {
		assert.True(t, !items[0].CreatedAt.Before(items[1].CreatedAt))
	}

	total, err := testDB.CountReviews(ctx, models.ReviewFilter{Language: language})
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	page, err := testDB.ListReviews(ctx, models.ReviewFilter{Language: language, Skip: 2, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestCountByClientSince(t *testing.T) {
	ctx := context.Background()

	clientAddr := "198.51.100." + uuid.New().String()[:4]
	for i := 0; i < 2; i++ {
		in := pendingInput(fmt.Sprintf("c%d()", i), "go", clientAddr)
		_, err := testDB.CreateReview(ctx, in)
		require.NoError(t, err)
	}

	n, err := testDB.CountByClientSince(ctx, clientAddr, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Outside the window nothing counts.
	n, err = testDB.CountByClientSince(ctx, clientAddr, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestReviewStats(t *testing.T) {
	ctx := context.Background()

	language := "stats-" + uuid.New().String()[:8]
	scores := []int{4, 8}
	for i, score := range scores {
		in := pendingInput(fmt.Sprintf("s%d()", i), language, "10.0.0.6")
		_, err := testDB.CreateReview(ctx, in)
		require.NoError(t, err)
		require.NoError(t, testDB.CompleteReview(ctx, in.ID, models.Feedback{
			Score:  score,
			Issues: []models.Issue{{Severity: "low", Description: "stats issue"}},
		}, time.Now()))
	}

	stats, err := testDB.ReviewStats(ctx, 10)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.TotalReviews, 2)

	var found *models.LanguageStats
	for i := range stats.ByLanguage {
		if stats.ByLanguage[i].Language == language {
			found = &stats.ByLanguage[i]
		}
	}
	require.NotNil(t, found, "per-language bucket should exist")
	assert.Equal(t, 2, found.Count)
	assert.InDelta(t, 6.0, found.AvgScore, 0.001)
}

func TestCreateUserAndLookup(t *testing.T) {
	ctx := context.Background()

	email := fmt.Sprintf("u%s@example.com", uuid.New().String()[:8])
	hash := "bcrypt-hash"
	created, err := testDB.CreateUser(ctx, email, &hash, false)
	require.NoError(t, err)
	assert.Equal(t, email, created.Email)

	_, err = testDB.CreateUser(ctx, email, &hash, false)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	got, err := testDB.GetUserByEmail(ctx, email)
	require.NoError(t, err)
	require.NotNil(t, got.PasswordHash)
	assert.Equal(t, hash, *got.PasswordHash)

	_, err = testDB.GetUserByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}
