package upkeep

import (
	"context"
	"errors"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultHouseName is the conventional name of the house created on signup
const DefaultHouseName = "Ma Maison"

// Auther composes the credential store, the token service, and the refresh
// ledger into the session lifecycle operations. Each operation runs inside a
// single request-scoped transaction; the audit trail is flushed best-effort
// once that transaction commits.
type Auther struct {
	repo   RepositoryManager
	tokens TokenService
	hasher PasswordAuthenticator
	logger Logger
}

// NewAuthenticator returns a new Auther
func NewAuthenticator(repo RepositoryManager, tokens TokenService) *Auther {
	return &Auther{
		repo:   repo,
		tokens: tokens,
		hasher: NewPasswordHasher(),
		logger: defLogger{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

func (s *Auther) WithPasswordAuthenticator(hasher PasswordAuthenticator) *Auther {
	if hasher != nil {
		s.hasher = hasher
	}
	return s
}

// TokenService returns the TokenService instance used by this Auther
func (s *Auther) TokenService() TokenService {
	return s.tokens
}

// Register provisions a new account in one atomic unit: the user, a default
// organization on the free tier, a first house, and an owner membership. The
// response includes the house id so clients can route straight into device
// setup.
func (s *Auther) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	s.logger.Info("registration attempt", "email", input.Email)

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	// Registration is anonymous until the save assigns the user id; the
	// audit drafts pick the id up at flush time.
	audit := s.ensureAuditContext(&ctx, input.IP)
	audit.SetActor(nil, input.Email)

	var (
		user    *User
		refresh *RefreshToken
		houseID uuid.UUID
	)

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		taken, err := s.repo.Users().EmailTakenTx(ctx, tx, input.Email)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not check email availability")
		}
		if taken {
			s.logger.Warn("registration rejected, email exists", "email", input.Email)
			return ErrDuplicateEmail
		}

		hash, err := s.hasher.HashPassword(input.Password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
		}

		user = &User{
			Email:        input.Email,
			Name:         input.Name,
			PasswordHash: hash,
		}
		if user, err = s.repo.Users().CreateTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		org := &Organization{
			Name:               fmt.Sprintf("%s's Organization", input.Name),
			IsDefault:          true,
			OwnerID:            user.ID,
			SubscriptionStatus: SubscriptionFree,
		}
		if org, err = s.repo.Organizations().CreateTx(ctx, tx, org); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create default organization")
		}

		user.DefaultOrganizationID = &org.ID
		if user, err = s.repo.Users().UpdateTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not link default organization")
		}

		house := &House{
			Name:           DefaultHouseName,
			OrganizationID: org.ID,
		}
		if house, err = s.repo.Houses().CreateTx(ctx, tx, house); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create first house")
		}
		houseID = house.ID

		now := time.Now()
		member := &HouseMember{
			HouseID:    house.ID,
			UserID:     user.ID,
			Role:       HouseRoleOwner,
			Status:     InvitationAccepted,
			AcceptedAt: &now,
		}
		if _, err = s.repo.HouseMembers().CreateTx(ctx, tx, member); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create house membership")
		}

		refresh, err = s.repo.RefreshTokens().IssueTx(ctx, tx, user.ID, input.IP)
		return err
	})
	if err != nil {
		return nil, err
	}

	audit.SetActor(&user.ID, user.Email)
	s.flushAudit(ctx)

	access, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID, "email", user.Email)

	return &AuthResult{
		AccessToken:  access,
		ExpiresIn:    int(s.tokens.TTL().Seconds()),
		User:         user.Summary(),
		RefreshToken: refresh.Token,
		HouseID:      &houseID,
	}, nil
}

// Login verifies the credentials and issues a fresh access/refresh pair. An
// unknown email and a wrong password are indistinguishable to the caller.
func (s *Auther) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	s.logger.Info("login attempt", "email", input.Email)

	user, err := s.repo.Users().GetByEmail(ctx, input.Email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			s.logger.Warn("login failed, user not found", "email", input.Email)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.hasher.ComparePasswordAndHash(input.Password, user.PasswordHash); err != nil {
		s.logger.Warn("login failed, password mismatch", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	audit := s.ensureAuditContext(&ctx, input.IP)
	audit.SetActor(&user.ID, user.Email)

	var refresh *RefreshToken
	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		refresh, err = s.repo.RefreshTokens().IssueTx(ctx, tx, user.ID, input.IP)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.flushAudit(ctx)

	access, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", "user_id", user.ID)

	return &AuthResult{
		AccessToken:  access,
		ExpiresIn:    int(s.tokens.TTL().Seconds()),
		User:         user.Summary(),
		RefreshToken: refresh.Token,
	}, nil
}

// RefreshSession rotates the presented refresh token and mints a new access
// token. Any ledger failure surfaces as the invalid-token error.
func (s *Auther) RefreshSession(ctx context.Context, refreshToken, ip string) (*AuthResult, error) {
	audit := s.ensureAuditContext(&ctx, ip)

	var (
		replacement *RefreshToken
		user        *User
	)

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		replacement, err = s.repo.RefreshTokens().RotateTx(ctx, tx, refreshToken, ip)
		if err != nil {
			return err
		}

		user, err = s.repo.Users().GetByIDTx(ctx, tx, replacement.UserID)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrInvalidToken
			}
			return err
		}

		audit.SetActor(&user.ID, user.Email)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	s.flushAudit(ctx)

	access, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	s.logger.Info("session refreshed", "user_id", user.ID)

	return &AuthResult{
		AccessToken:  access,
		ExpiresIn:    int(s.tokens.TTL().Seconds()),
		User:         user.Summary(),
		RefreshToken: replacement.Token,
	}, nil
}

// RevokeSession revokes the presented refresh token on the user's behalf
func (s *Auther) RevokeSession(ctx context.Context, refreshToken, ip string) error {
	audit := s.ensureAuditContext(&ctx, ip)

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// the boundary already resolved the actor from the bearer claims;
		// fall back to the token's owner only when nobody is stamped yet
		if id, _ := audit.Actor(); id == nil {
			if token, err := s.repo.RefreshTokens().getByValueTx(ctx, tx, refreshToken); err == nil {
				audit.SetActor(&token.UserID, "")
			}
		}
		return s.repo.RefreshTokens().RevokeTx(ctx, tx, refreshToken, ip, ReasonRevokedByUser)
	})
	if err != nil {
		return err
	}

	s.flushAudit(ctx)
	return nil
}

// ensureAuditContext guarantees an audit context is present for operations
// invoked outside the HTTP boundary (tests, jobs). It mutates ctx in place so
// the transaction closure sees the same context value.
func (s *Auther) ensureAuditContext(ctx *context.Context, ip string) *AuditContext {
	if ac, ok := AuditContextFrom(*ctx); ok {
		return ac
	}
	ac := NewAuditContext(ip, "")
	*ctx = WithAuditContext(*ctx, ac)
	return ac
}

// flushAudit persists the audit trail after the primary commit. Failures are
// logged, not propagated: the mutation already succeeded and stays committed.
func (s *Auther) flushAudit(ctx context.Context) {
	if err := s.repo.SaveAuditTrail(ctx); err != nil {
		s.logger.Error("audit trail flush failed", "error", err)
	}
}

var _ Authenticator = (*Auther)(nil)
