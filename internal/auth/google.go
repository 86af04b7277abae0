package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const tokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

// googleVerifier validates Google ID tokens against the tokeninfo endpoint
// and checks the audience against our OAuth client ID.
type googleVerifier struct {
	clientID string
	client   *http.Client
	endpoint string
}

func newGoogleVerifier(clientID string) *googleVerifier {
	return &googleVerifier{
		clientID: clientID,
		client:   &http.Client{Timeout: 10 * time.Second},
		endpoint: tokenInfoURL,
	}
}

type tokenInfo struct {
	Audience string `json:"aud"`
	Email    string `json:"email"`
}

// verify returns the lowercase email bound to a valid ID token.
func (g *googleVerifier) verify(ctx context.Context, idToken string) (string, error) {
	if idToken == "" || g.clientID == "" {
		return "", fmt.Errorf("%w: missing google id_token or client id", ErrInvalidToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		g.endpoint+"?id_token="+url.QueryEscape(idToken), nil)
	if err != nil {
		return "", fmt.Errorf("build tokeninfo request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("verify google token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", ErrInvalidToken
	}

	var info tokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("decode tokeninfo response: %w", err)
	}
	if info.Audience != g.clientID {
		return "", fmt.Errorf("%w: audience mismatch", ErrInvalidToken)
	}

	email := strings.ToLower(strings.TrimSpace(info.Email))
	if email == "" {
		return "", errors.New("google token has no email")
	}
	return email, nil
}
