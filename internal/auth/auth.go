// Package auth implements account registration, credential login and JWT
// issuance, plus Google ID-token sign-in.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/codecritic/codecritic/internal/db"
	"github.com/codecritic/codecritic/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid token")
)

// UserStore is the account collection. db.Client is the production
// implementation.
type UserStore interface {
	CreateUser(ctx context.Context, email string, passwordHash *string, google bool) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Service issues and verifies bearer tokens. Tokens are HS256 JWTs whose
// subject is the account email.
type Service struct {
	store  UserStore
	secret []byte
	expiry time.Duration
	google *googleVerifier
}

// NewService creates the auth service. An empty secret is replaced with a
// random one, which invalidates all tokens on restart; set JWT_SECRET in
// production.
func NewService(store UserStore, secret string, expiry time.Duration, googleClientID string) *Service {
	if secret == "" {
		secret = randomSecret()
		slog.Warn("JWT_SECRET not set, using a random secret; tokens will not survive restarts")
	}
	if expiry <= 0 {
		expiry = 120 * time.Minute
	}
	return &Service{
		store:  store,
		secret: []byte(secret),
		expiry: expiry,
		google: newGoogleVerifier(googleClientID),
	}
}

// TokenPair is the issued credential returned by register/login.
type TokenPair struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Register creates an account and logs it in. Returns ErrValidation-style
// errors for missing fields and ErrEmailTaken for duplicates.
func (s *Service) Register(ctx context.Context, email, password string) (*TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidCredentials)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	hashStr := string(hash)

	if _, err := s.store.CreateUser(ctx, email, &hashStr, false); err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	slog.Info("user registered", "email", email)
	return s.issue(email)
}

// Login verifies the password against the stored bcrypt hash. Unknown
// emails and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, db.ErrNotFound) {
		// Burn a comparison so the miss costs the same as a mismatch.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$000000000000000000000u"), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user.PasswordHash == nil {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issue(email)
}

// LoginWithGoogle verifies a Google ID token and provisions the account on
// first sign-in. Federated accounts have no password hash.
func (s *Service) LoginWithGoogle(ctx context.Context, idToken string) (*TokenPair, error) {
	email, err := s.google.verify(ctx, idToken)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetUserByEmail(ctx, email); errors.Is(err, db.ErrNotFound) {
		if _, err := s.store.CreateUser(ctx, email, nil, true); err != nil && !errors.Is(err, db.ErrAlreadyExists) {
			return nil, fmt.Errorf("provision google user: %w", err)
		}
		slog.Info("google user provisioned", "email", email)
	} else if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	return s.issue(email)
}

// ParseToken validates a bearer token and returns the subject email.
func (s *Service) ParseToken(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", ErrInvalidToken
	}
	return subject, nil
}

func (s *Service) issue(email string) (*TokenPair, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &TokenPair{AccessToken: signed, TokenType: "bearer"}, nil
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("read random secret: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
