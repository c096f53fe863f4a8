package upkeep

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	// RefreshTokenTTL is the lifetime of a refresh token
	RefreshTokenTTL = 7 * 24 * time.Hour
	// RefreshTokenBytes is the entropy of the opaque token value
	RefreshTokenBytes = 64
	// MaxRefreshTokensPerUser caps how many tokens are retained per user;
	// older ones are pruned on each issuance.
	MaxRefreshTokensPerUser = 5

	reasonRotated = "Replaced by new token"
	// ReasonRevokedByUser is stamped on explicit logout/revoke
	ReasonRevokedByUser = "Revoked by user"
)

// RefreshTokenLedger persists refresh tokens and drives the
// rotation-on-use protocol. The database is the single source of truth:
// revocation is visible to the very next request, nothing is cached.
type RefreshTokenLedger struct {
	db     *bun.DB
	logger Logger
	now    func() time.Time
}

func NewRefreshTokenLedger(db *bun.DB) *RefreshTokenLedger {
	return &RefreshTokenLedger{
		db:     db,
		logger: defLogger{},
		now:    time.Now,
	}
}

func (l *RefreshTokenLedger) WithLogger(logger Logger) *RefreshTokenLedger {
	if logger != nil {
		l.logger = logger
	}
	return l
}

// Issue generates and persists a new refresh token for the user, then prunes
// all but the most recent MaxRefreshTokensPerUser tokens.
func (l *RefreshTokenLedger) Issue(ctx context.Context, userID uuid.UUID, clientIP string) (*RefreshToken, error) {
	return l.IssueTx(ctx, l.db, userID, clientIP)
}

func (l *RefreshTokenLedger) IssueTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, clientIP string) (*RefreshToken, error) {
	value, err := generateTokenValue()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not generate refresh token")
	}
	return l.issueValueTx(ctx, tx, userID, clientIP, value)
}

func (l *RefreshTokenLedger) issueValueTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, clientIP, value string) (*RefreshToken, error) {
	now := l.now()
	token := &RefreshToken{
		ID:          uuid.New(),
		UserID:      userID,
		Token:       value,
		ExpiresAt:   now.Add(RefreshTokenTTL),
		CreatedAt:   now,
		CreatedByIP: clientIP,
	}

	prepareInsert(ctx, token)
	if _, err := tx.NewInsert().Model(token).Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not persist refresh token")
	}

	if err := l.pruneTx(ctx, tx, userID); err != nil {
		return nil, err
	}

	return token, nil
}

// Rotate invalidates the presented token and issues its replacement in one
// step, inside its own transaction. The presented token must currently be
// active: a token that was already rotated or revoked is rejected whether it
// comes from a stale client or a replay, because the two are
// indistinguishable here.
func (l *RefreshTokenLedger) Rotate(ctx context.Context, presented, clientIP string) (*RefreshToken, error) {
	var replacement *RefreshToken

	err := l.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		replacement, err = l.RotateTx(ctx, tx, presented, clientIP)
		return err
	})
	if err != nil {
		return nil, err
	}

	return replacement, nil
}

func (l *RefreshTokenLedger) RotateTx(ctx context.Context, tx bun.IDB, presented, clientIP string) (*RefreshToken, error) {
	now := l.now()

	current, err := l.getByValueTx(ctx, tx, presented)
	if err != nil {
		return nil, err
	}
	if !current.Active(now) {
		l.logger.Warn("refresh token rotation rejected, token inactive", "user_id", current.UserID)
		return nil, ErrInvalidToken
	}

	value, err := generateTokenValue()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not generate refresh token")
	}

	// The conditional revoke is the race arbiter and runs before anything is
	// persisted: only an active row can be claimed, so of two callers racing
	// on the same token value the loser backs out without having written a
	// replacement.
	if err := l.revokeActiveTx(ctx, tx, current, clientIP, reasonRotated, value, now); err != nil {
		return nil, err
	}

	return l.issueValueTx(ctx, tx, current.UserID, clientIP, value)
}

// Revoke marks the token revoked with the supplied reason. Revoking a token
// that is missing, expired, or already revoked fails; it never silently
// succeeds twice.
func (l *RefreshTokenLedger) Revoke(ctx context.Context, tokenValue, clientIP, reason string) error {
	return l.RevokeTx(ctx, l.db, tokenValue, clientIP, reason)
}

func (l *RefreshTokenLedger) RevokeTx(ctx context.Context, tx bun.IDB, tokenValue, clientIP, reason string) error {
	now := l.now()

	current, err := l.getByValueTx(ctx, tx, tokenValue)
	if err != nil {
		return err
	}
	if !current.Active(now) {
		return ErrInvalidToken
	}

	return l.revokeActiveTx(ctx, tx, current, clientIP, reason, "", now)
}

// GetByValue loads a token by its opaque value regardless of state
func (l *RefreshTokenLedger) GetByValue(ctx context.Context, tokenValue string) (*RefreshToken, error) {
	return l.getByValueTx(ctx, l.db, tokenValue)
}

func (l *RefreshTokenLedger) getByValueTx(ctx context.Context, tx bun.IDB, tokenValue string) (*RefreshToken, error) {
	token := &RefreshToken{}

	err := tx.NewSelect().
		Model(token).
		Where("?TableAlias.token = ?", tokenValue).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrInvalidToken
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not load refresh token")
	}

	return token, nil
}

// revokeActiveTx performs the atomic compare-and-revoke. The WHERE clause
// re-checks that the row is still active at write time; zero rows affected
// means another caller won the race and the rotation must fail.
func (l *RefreshTokenLedger) revokeActiveTx(ctx context.Context, tx bun.IDB, current *RefreshToken, clientIP, reason, replacedBy string, now time.Time) error {
	res, err := tx.NewUpdate().
		Model((*RefreshToken)(nil)).
		Set("revoked_at = ?", now).
		Set("revoked_by_ip = ?", clientIP).
		Set("reason_revoked = ?", reason).
		Set("replaced_by_token = ?", replacedBy).
		Where("?TableAlias.token = ?", current.Token).
		Where("?TableAlias.revoked_at IS NULL").
		Where("?TableAlias.expires_at > ?", now).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not revoke refresh token")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not verify refresh token revocation")
	}
	if affected == 0 {
		l.logger.Warn("refresh token already claimed", "user_id", current.UserID)
		return ErrInvalidToken
	}

	if ac, ok := AuditContextFrom(ctx); ok {
		revoked := *current
		revoked.RevokedAt = &now
		revoked.RevokedByIP = clientIP
		revoked.ReasonRevoked = reason
		revoked.ReplacedByToken = replacedBy
		prepareUpdateDraft(ac, current, &revoked, now)
	}

	return nil
}

// pruneTx removes every token for the user beyond the newest
// MaxRefreshTokensPerUser. The survivors are selected with an explicit LIMIT
// subquery; sqlite has no bare OFFSET.
func (l *RefreshTokenLedger) pruneTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error {
	keep := tx.NewSelect().
		Model((*RefreshToken)(nil)).
		Column("id").
		Where("?TableAlias.user_id = ?", userID).
		OrderExpr("?TableAlias.created_at DESC").
		Limit(MaxRefreshTokensPerUser)

	var stale []*RefreshToken
	err := tx.NewSelect().
		Model(&stale).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.id NOT IN (?)", keep).
		Scan(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not load stale refresh tokens")
	}
	if len(stale) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(stale))
	for _, token := range stale {
		prepareDelete(ctx, token)
		ids = append(ids, token.ID)
	}

	_, err = tx.NewDelete().
		Model((*RefreshToken)(nil)).
		Where("?TableAlias.id IN (?)", bun.In(ids)).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not prune refresh tokens")
	}

	return nil
}

func generateTokenValue() (string, error) {
	buf := make([]byte, RefreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}
