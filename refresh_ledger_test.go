package upkeep_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upkeephq/upkeep"
)

func TestRefreshTokenLedgerIssue(t *testing.T) {
	db := newTestDB(t)
	ledger := upkeep.NewRefreshTokenLedger(db)
	ctx := context.Background()
	userID := uuid.New()

	token, err := ledger.Issue(ctx, userID, "192.0.2.1")
	require.NoError(t, err)

	// 64 random bytes base64-encode to 88 characters
	assert.Len(t, token.Token, 88)
	assert.Equal(t, userID, token.UserID)
	assert.Equal(t, "192.0.2.1", token.CreatedByIP)
	assert.Nil(t, token.RevokedAt)
	assert.True(t, token.Active(time.Now()))
	assert.WithinDuration(t, time.Now().Add(upkeep.RefreshTokenTTL), token.ExpiresAt, time.Minute)

	loaded, err := ledger.GetByValue(ctx, token.Token)
	require.NoError(t, err)
	assert.Equal(t, token.ID, loaded.ID)

	// issuing below the retention cap prunes nothing
	other, err := ledger.Issue(ctx, userID, "192.0.2.1")
	require.NoError(t, err)
	assert.NotEqual(t, token.Token, other.Token)

	count, err := db.NewSelect().
		Model((*upkeep.RefreshToken)(nil)).
		Where("user_id = ?", userID).
		Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRefreshTokenLedgerGetByValueUnknown(t *testing.T) {
	db := newTestDB(t)
	ledger := upkeep.NewRefreshTokenLedger(db)

	_, err := ledger.GetByValue(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, upkeep.ErrInvalidToken)
}

func TestRefreshTokenLedgerRotate(t *testing.T) {
	db := newTestDB(t)
	ledger := upkeep.NewRefreshTokenLedger(db)
	ctx := context.Background()
	userID := uuid.New()

	t0, err := ledger.Issue(ctx, userID, "192.0.2.1")
	require.NoError(t, err)

	t1, err := ledger.Rotate(ctx, t0.Token, "192.0.2.2")
	require.NoError(t, err)
	assert.Equal(t, userID, t1.UserID)
	assert.NotEqual(t, t0.Token, t1.Token)

	// the presented token is now revoked and points at its replacement
	rotated, err := ledger.GetByValue(ctx, t0.Token)
	require.NoError(t, err)
	assert.NotNil(t, rotated.RevokedAt)
	assert.Equal(t, "Replaced by new token", rotated.ReasonRevoked)
	assert.Equal(t, t1.Token, rotated.ReplacedByToken)
	assert.Equal(t, "192.0.2.2", rotated.RevokedByIP)

	// replaying the rotated token fails, the replacement still rotates
	_, err = ledger.Rotate(ctx, t0.Token, "192.0.2.3")
	assert.ErrorIs(t, err, upkeep.ErrInvalidToken)

	t2, err := ledger.Rotate(ctx, t1.Token, "192.0.2.2")
	require.NoError(t, err)
	assert.NotEqual(t, t1.Token, t2.Token)
}

func TestRefreshTokenLedgerFailedRotationPersistsNothing(t *testing.T) {
	db := newTestDB(t)
	ledger := upkeep.NewRefreshTokenLedger(db)
	ctx := context.Background()
	userID := uuid.New()

	t0, err := ledger.Issue(ctx, userID, "192.0.2.1")
	require.NoError(t, err)
	_, err = ledger.Rotate(ctx, t0.Token, "192.0.2.1")
	require.NoError(t, err)

	// a losing rotation must not leave a stray replacement behind: exactly
	// one active chain survives
	_, err = ledger.Rotate(ctx, t0.Token, "192.0.2.9")
	require.ErrorIs(t, err, upkeep.ErrInvalidToken)

	count, err := db.NewSelect().
		Model((*upkeep.RefreshToken)(nil)).
		Where("user_id = ?", userID).
		Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	active, err := db.NewSelect().
		Model((*upkeep.RefreshToken)(nil)).
		Where("user_id = ?", userID).
		Where("revoked_at IS NULL").
		Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, active)
}

func TestRefreshTokenLedgerRotateExpired(t *testing.T) {
	db := newTestDB(t)
	ledger := upkeep.NewRefreshTokenLedger(db)
	ctx := context.Background()

	token, err := ledger.Issue(ctx, uuid.New(), "192.0.2.1")
	require.NoError(t, err)

	_, err = db.NewUpdate().
		Model((*upkeep.RefreshToken)(nil)).
		Set("expires_at = ?", time.Now().Add(-time.Minute)).
		Where("token = ?", token.Token).
		Exec(ctx)
	require.NoError(t, err)

	_, err = ledger.Rotate(ctx, token.Token, "192.0.2.1")
	assert.ErrorIs(t, err, upkeep.ErrInvalidToken)
}

func TestRefreshTokenLedgerRevoke(t *testing.T) {
	db := newTestDB(t)
	ledger := upkeep.NewRefreshTokenLedger(db)
	ctx := context.Background()

	token, err := ledger.Issue(ctx, uuid.New(), "192.0.2.1")
	require.NoError(t, err)

	err = ledger.Revoke(ctx, token.Token, "192.0.2.2", upkeep.ReasonRevokedByUser)
	require.NoError(t, err)

	revoked, err := ledger.GetByValue(ctx, token.Token)
	require.NoError(t, err)
	assert.NotNil(t, revoked.RevokedAt)
	assert.Equal(t, upkeep.ReasonRevokedByUser, revoked.ReasonRevoked)
	assert.Empty(t, revoked.ReplacedByToken)
	assert.False(t, revoked.Active(time.Now()))

	// revocation is not idempotent: the second attempt reports the token gone
	err = ledger.Revoke(ctx, token.Token, "192.0.2.2", upkeep.ReasonRevokedByUser)
	assert.ErrorIs(t, err, upkeep.ErrInvalidToken)

	// and a revoked token can no longer be rotated
	_, err = ledger.Rotate(ctx, token.Token, "192.0.2.2")
	assert.ErrorIs(t, err, upkeep.ErrInvalidToken)
}

func TestRefreshTokenLedgerPrunesOldTokens(t *testing.T) {
	db := newTestDB(t)
	ledger := upkeep.NewRefreshTokenLedger(db)
	ctx := context.Background()
	userID := uuid.New()

	issued := make([]*upkeep.RefreshToken, 0, upkeep.MaxRefreshTokensPerUser+2)
	for i := 0; i < upkeep.MaxRefreshTokensPerUser+2; i++ {
		token, err := ledger.Issue(ctx, userID, "192.0.2.1")
		require.NoError(t, err)
		issued = append(issued, token)
		time.Sleep(2 * time.Millisecond)
	}

	count, err := db.NewSelect().
		Model((*upkeep.RefreshToken)(nil)).
		Where("user_id = ?", userID).
		Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, upkeep.MaxRefreshTokensPerUser, count)

	// the oldest tokens are the ones that went away
	_, err = ledger.GetByValue(ctx, issued[0].Token)
	assert.ErrorIs(t, err, upkeep.ErrInvalidToken)
	_, err = ledger.GetByValue(ctx, issued[1].Token)
	assert.ErrorIs(t, err, upkeep.ErrInvalidToken)

	_, err = ledger.GetByValue(ctx, issued[len(issued)-1].Token)
	assert.NoError(t, err)

	// pruning is per user
	otherUser := uuid.New()
	_, err = ledger.Issue(ctx, otherUser, "192.0.2.1")
	require.NoError(t, err)

	count, err = db.NewSelect().
		Model((*upkeep.RefreshToken)(nil)).
		Where("user_id = ?", userID).
		Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, upkeep.MaxRefreshTokensPerUser, count)
}
