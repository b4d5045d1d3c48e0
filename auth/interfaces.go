package auth

import (
	"context"

	"github.com/recompkit/rkl/client"
	"github.com/recompkit/rkl/db"
)

// TokenStorer defines the contract for any component that can store and retrieve a token.
type TokenStorer interface {
	GetTokenRecord() (*db.Token, error)
	UpsertTokenRecord(token *db.Token) error
	ClearTokenRecord() error
}

// TokenVerifier checks a token against GitHub and reports its API quota.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*client.RateLimitStatus, error)
}

// ClientVerifier verifies tokens through the /rate_limit endpoint.
type ClientVerifier struct {
	Client *client.Client
}

func (v ClientVerifier) VerifyToken(ctx context.Context, token string) (*client.RateLimitStatus, error) {
	return v.Client.WithToken(token).RateLimit(ctx)
}
