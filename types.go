package upkeep

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Logger accepts a message followed by alternating key/value pairs
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// TokenService mints and validates the short-lived signed access tokens.
// Access tokens are stateless and not individually revocable.
type TokenService interface {
	Issue(userID uuid.UUID, email string) (string, error)
	Validate(token string) (*SessionClaims, error)
	TTL() time.Duration
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// Authenticator holds the session lifecycle operations the HTTP boundary
// invokes. All operations expect an AuditContext on ctx.
type Authenticator interface {
	Register(ctx context.Context, input RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, input LoginInput) (*AuthResult, error)
	RefreshSession(ctx context.Context, refreshToken, ip string) (*AuthResult, error)
	RevokeSession(ctx context.Context, refreshToken, ip string) error
}

// Config holds the deployment surface required at startup.
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAudience() []string
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	IP       string
}

type LoginInput struct {
	Email    string
	Password string
	IP       string
}

// UserSummary is the identity payload returned to clients.
type UserSummary struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
}

// AuthResult is the outcome of a successful lifecycle operation. RefreshToken
// is transported via cookie by the HTTP boundary and stripped from JSON.
type AuthResult struct {
	AccessToken  string      `json:"token"`
	ExpiresIn    int         `json:"expires_in"`
	User         UserSummary `json:"user"`
	RefreshToken string      `json:"-"`
	HouseID      *uuid.UUID  `json:"house_id,omitempty"`
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	logLine("[ERR] UPKEEP ", msg, args...)
}

func (d defLogger) Warn(msg string, args ...any) {
	logLine("[WRN] UPKEEP ", msg, args...)
}

func (d defLogger) Info(msg string, args ...any) {
	logLine("[INF] UPKEEP ", msg, args...)
}

func (d defLogger) Debug(msg string, args ...any) {
	logLine("[DBG] UPKEEP ", msg, args...)
}

func logLine(prefix, msg string, args ...any) {
	if len(args) == 0 {
		fmt.Println(prefix + msg)
		return
	}
	fmt.Println(prefix+msg, args)
}
