package auth

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/recompkit/rkl/db"
	"github.com/recompkit/rkl/pkg/gameerr"
	"github.com/rs/zerolog/log"
)

// Source tells where a resolved token came from.
type Source string

const (
	SourceNone   Source = "none"
	SourceConfig Source = "config"
	SourceEnv    Source = "env"
	SourceStored Source = "stored"
)

// Service resolves, stores and verifies the GitHub access token.
type Service struct {
	Storer   TokenStorer
	Verifier TokenVerifier
	Getenv   func(string) string
}

// NewService is the constructor for our auth service.
func NewService(storer TokenStorer, verifier TokenVerifier) *Service {
	return &Service{
		Storer:   storer,
		Verifier: verifier,
		Getenv:   os.Getenv,
	}
}

// NewServiceWithRepo constructs Service using a TokenRepository directly.
func NewServiceWithRepo(tokenRepo db.TokenRepository, verifier TokenVerifier) *Service {
	return NewService(&tokenRepoStorer{repo: tokenRepo}, verifier)
}

// ResolveToken picks the token to use for API calls. A configured token wins, then
// GITHUB_TOKEN from the environment, then the token saved by Login. Anonymous access
// (empty token) is valid and only lowers the rate limit.
func (s *Service) ResolveToken(configured string) (string, Source) {
	if t := strings.TrimSpace(configured); t != "" {
		return t, SourceConfig
	}
	if s.Getenv != nil {
		if t := strings.TrimSpace(s.Getenv("GITHUB_TOKEN")); t != "" {
			return t, SourceEnv
		}
	}
	if s.Storer == nil {
		return "", SourceNone
	}
	tok, err := s.Storer.GetTokenRecord()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read stored token; continuing anonymously")
		return "", SourceNone
	}
	if tok == nil || tok.AccessToken == "" {
		return "", SourceNone
	}
	return tok.AccessToken, SourceStored
}

// Login verifies token and saves it for later runs.
func (s *Service) Login(ctx context.Context, token string) (*db.Token, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, gameerr.New(gameerr.Validation, "token must not be empty", nil)
	}
	status, err := s.Verifier.VerifyToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to verify token: %w", err)
	}

	record := &db.Token{AccessToken: token, RateLimit: status.Limit, VerifiedAt: time.Now().UTC()}
	if err := s.Storer.UpsertTokenRecord(record); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}
	log.Info().Int("rate_limit", status.Limit).Msg("Token verified and saved successfully.")
	return record, nil
}

// Logout forgets the stored token.
func (s *Service) Logout() error {
	if err := s.Storer.ClearTokenRecord(); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}

// tokenRepoStorer adapts db.TokenRepository to TokenStorer.
type tokenRepoStorer struct{ repo db.TokenRepository }

func (s *tokenRepoStorer) GetTokenRecord() (*db.Token, error) {
	return s.repo.Get(context.Background())
}

func (s *tokenRepoStorer) UpsertTokenRecord(token *db.Token) error {
	return s.repo.Upsert(context.Background(), token)
}

func (s *tokenRepoStorer) ClearTokenRecord() error {
	return s.repo.Clear(context.Background())
}
