package interfaces

import (
	"context"

	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/types"
)

// AuthService defines the interface for authentication operations
type AuthService interface {
	Register(ctx context.Context, req *types.RegisterRequest) (*types.UserProfile, error)
	Login(ctx context.Context, req *types.LoginRequest) (*types.TokenResponse, error)
	GetProfile(ctx context.Context, userID string) (*types.UserProfile, error)
	Logout(ctx context.Context, token string) error
	ValidateToken(ctx context.Context, token string) (*types.UserProfile, error)
}

// PasswordManager defines the interface for password operations
type PasswordManager interface {
	HashPassword(password string) (string, error)
	VerifyPassword(hashedPassword, password string) (bool, error)
}

// TokenRevocationStore tracks revoked token identifiers until they expire
type TokenRevocationStore interface {
	Revoke(ctx context.Context, jti string, ttlSeconds int) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
