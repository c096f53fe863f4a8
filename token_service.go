package upkeep

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// AccessTokenTTL is how long a minted access token stays valid. Access tokens
// cannot be revoked before expiry, so the window stays short.
const AccessTokenTTL = 15 * time.Minute

// MinSigningKeyBytes is the minimum HS256 key length accepted at startup
const MinSigningKeyBytes = 32

// SessionClaims are the claims carried by an access token
type SessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// UserUUID parses the subject claim back into the user id
func (c *SessionClaims) UserUUID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
}

// NewTokenService creates a new TokenService instance. It refuses signing
// keys shorter than MinSigningKeyBytes so a weak deployment fails fast.
func NewTokenService(signingKey []byte, issuer string, audience []string, logger Logger) (*TokenServiceImpl, error) {
	if len(signingKey) < MinSigningKeyBytes {
		return nil, errors.New(
			fmt.Sprintf("signing key must be at least %d bytes, got %d", MinSigningKeyBytes, len(signingKey)),
			errors.CategoryValidation,
		)
	}
	if issuer == "" || len(audience) == 0 {
		return nil, errors.New("token issuer and audience are required", errors.CategoryValidation)
	}
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenServiceImpl{
		signingKey: signingKey,
		ttl:        AccessTokenTTL,
		issuer:     issuer,
		audience:   jwt.ClaimStrings(audience),
		logger:     logger,
	}, nil
}

// TTL returns the access token lifetime
func (ts *TokenServiceImpl) TTL() time.Duration {
	return ts.ttl
}

// Issue mints a signed access token for the given subject. Each token gets a
// unique jti claim for traceability; revocation happens only through expiry.
func (ts *TokenServiceImpl) Issue(userID uuid.UUID, email string) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   userID.String(),
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.ttl)),
			ID:        uuid.NewString(),
		},
		Email: email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signed, nil
}

// Validate parses and validates a token string with zero clock-skew leeway,
// rejecting bad signatures and issuer/audience mismatches.
func (ts *TokenServiceImpl) Validate(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	},
		jwt.WithIssuer(ts.issuer),
		jwt.WithAudience(ts.audience...),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).WithTextCode(ErrTokenMalformed.TextCode)
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("TokenService validate could not decode or validate claims")
	return nil, ErrTokenMalformed
}

var _ TokenService = (*TokenServiceImpl)(nil)
