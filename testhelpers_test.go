package upkeep_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/upkeephq/upkeep"
)

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

const (
	testIssuer   = "upkeep-test"
	testAudience = "upkeep-clients"
)

// newTestDB opens a per-test in-memory database with the full schema. The
// single connection keeps the shared-cache database alive for the test's
// duration and serializes writes the way sqlite expects.
func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	sqldb, err := sql.Open(sqliteshim.ShimName, fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	require.NoError(t, upkeep.EnsureSchema(context.Background(), db))

	t.Cleanup(func() { db.Close() })
	return db
}

func newTestTokens(t *testing.T) upkeep.TokenService {
	t.Helper()

	tokens, err := upkeep.NewTokenService(testSigningKey, testIssuer, []string{testAudience}, nil)
	require.NoError(t, err)
	return tokens
}

func newTestAuther(t *testing.T) (*upkeep.Auther, upkeep.RepositoryManager, *bun.DB) {
	t.Helper()

	db := newTestDB(t)
	repo := upkeep.NewRepositoryManager(db)
	return upkeep.NewAuthenticator(repo, newTestTokens(t)), repo, db
}

// auditedContext builds a context carrying an audit identity, the way the
// HTTP boundary does for every request.
func auditedContext(actor *uuid.UUID, username string) context.Context {
	ac := upkeep.NewAuditContext("127.0.0.1", "go-test")
	ac.SetActor(actor, username)
	return upkeep.WithAuditContext(context.Background(), ac)
}

func registerTestUser(t *testing.T, auther *upkeep.Auther, email string) *upkeep.AuthResult {
	t.Helper()

	result, err := auther.Register(context.Background(), upkeep.RegisterInput{
		Email:    email,
		Password: "securePassword123!",
		Name:     "Ada",
		IP:       "127.0.0.1",
	})
	require.NoError(t, err)
	return result
}
