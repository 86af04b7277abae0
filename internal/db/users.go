package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/codecritic/codecritic/internal/models"
)

// CreateUser inserts a new account keyed by email. Returns ErrAlreadyExists
// if the email is taken. passwordHash is nil for federated accounts.
func (c *Client) CreateUser(ctx context.Context, email string, passwordHash *string, google bool) (*models.User, error) {
	email = normalizeEmail(email)

	results, err := query[[]models.User](ctx, c, `
		CREATE type::record("user", $email) SET
			email = $email,
			password_hash = $password_hash,
			google = $google,
			created_at = time::now()
		RETURN AFTER
	`, map[string]any{
		"email":         email,
		"password_hash": passwordHash,
		"google":        google,
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("create user: no result returned")
	}
	return &(*results)[0].Result[0], nil
}

// GetUserByEmail retrieves an account. Returns ErrNotFound when absent.
func (c *Client) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	results, err := query[[]models.User](ctx, c, `
		SELECT * FROM type::record("user", $email)
	`, map[string]any{"email": normalizeEmail(email)})
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, ErrNotFound
	}
	return &(*results)[0].Result[0], nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
