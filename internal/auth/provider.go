package auth

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/aura-stage/backend/internal/apperror"
	"github.com/aura-stage/backend/internal/models"
	"github.com/aura-stage/backend/pkg/utils"
)

// Credentials are the handshake secrets a socket presented.
type Credentials struct {
	Token    string
	Password string
}

// Identity is a verified actor.
type Identity struct {
	ActorID string
	Role    models.Role
}

// PasswordStore looks up per-event A/V technician password hashes.
type PasswordStore interface {
	AVTechPasswordHash(ctx context.Context, eventID string) (string, error)
}

// Provider verifies privileged handshake credentials.
type Provider struct {
	jwt          *JWTService
	passwords    PasswordStore
	fallbackHash string
	logger       *zap.Logger
}

// NewProvider creates an identity provider. passwords may be nil, in which case only
// fallbackHash is checked for A/V technicians.
func NewProvider(jwt *JWTService, passwords PasswordStore, fallbackHash string, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{jwt: jwt, passwords: passwords, fallbackHash: fallbackHash, logger: logger}
}

// Verify checks the credentials required for role on eventID. Audience and display
// roles need none and get an empty actor id.
func (p *Provider) Verify(ctx context.Context, eventID string, role models.Role, creds Credentials) (Identity, error) {
	switch role {
	case models.RoleProducer:
		return p.VerifyProducer(creds.Token)
	case models.RoleAVTech:
		return p.VerifyAVTech(ctx, eventID, creds.Password)
	case models.RoleAudience, models.RoleDisplay:
		return Identity{Role: role}, nil
	}
	return Identity{}, apperror.Validation("role", "unknown role")
}

// VerifyProducer validates a producer JWT.
func (p *Provider) VerifyProducer(token string) (Identity, error) {
	if token == "" {
		return Identity{}, apperror.Unauthorized("producer token required")
	}
	claims, err := p.jwt.Validate(token)
	if err != nil {
		return Identity{}, apperror.Unauthorized("invalid token")
	}
	if claims.Role != string(models.RoleProducer) {
		return Identity{}, apperror.Unauthorized("token is not a producer token")
	}
	return Identity{ActorID: claims.UserID, Role: models.RoleProducer}, nil
}

// VerifyAVTech checks the event password against the stored hash, then the fallback.
func (p *Provider) VerifyAVTech(ctx context.Context, eventID, password string) (Identity, error) {
	if password == "" {
		return Identity{}, apperror.Unauthorized("avtech password required")
	}
	hash, err := p.lookup(ctx, eventID)
	if err != nil {
		p.logger.Error("avtech password lookup failed", zap.String("event_id", eventID), zap.Error(err))
		return Identity{}, apperror.Internal("avtech password lookup failed")
	}
	if hash == "" || !utils.CheckPassword(password, hash) {
		return Identity{}, apperror.Unauthorized("invalid avtech password")
	}
	return Identity{ActorID: "avtech:" + eventID, Role: models.RoleAVTech}, nil
}

func (p *Provider) lookup(ctx context.Context, eventID string) (string, error) {
	if p.passwords == nil {
		return p.fallbackHash, nil
	}
	hash, err := p.passwords.AVTechPasswordHash(ctx, eventID)
	if errors.Is(err, ErrNoPassword) {
		return p.fallbackHash, nil
	}
	return hash, err
}
