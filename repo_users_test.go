package upkeep_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upkeephq/upkeep"
)

func TestUsersRepositoryEmailLookups(t *testing.T) {
	db := newTestDB(t)
	users := upkeep.NewUsersRepository(db)
	ctx := context.Background()

	created, err := users.Create(ctx, &upkeep.User{
		Email:        "ada@example.com",
		Name:         "Ada",
		PasswordHash: "x",
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)

	found, err := users.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	// surrounding whitespace is trimmed, the stored value is not folded
	found, err = users.GetByEmail(ctx, "  ada@example.com ")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = users.GetByEmail(ctx, "nobody@example.com")
	assert.True(t, repository.IsRecordNotFound(err))

	taken, err := users.EmailTaken(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = users.EmailTaken(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestUsersRepositorySoftDeleteScoping(t *testing.T) {
	db := newTestDB(t)
	users := upkeep.NewUsersRepository(db)

	actor := uuid.New()
	ctx := auditedContext(&actor, "admin@example.com")

	created, err := users.Create(ctx, &upkeep.User{
		Email:        "ada@example.com",
		Name:         "Ada",
		PasswordHash: "x",
	})
	require.NoError(t, err)

	require.NoError(t, users.Delete(ctx, created))

	_, err = users.GetByID(ctx, created.ID)
	assert.True(t, repository.IsRecordNotFound(err))

	kept, err := users.GetByID(ctx, created.ID, upkeep.IncludeDeleted())
	require.NoError(t, err)
	assert.True(t, kept.IsDeleted)
	require.NotNil(t, kept.DeletedBy)
	assert.Equal(t, actor, *kept.DeletedBy)

	// a deleted user's email also leaves the default scope
	_, err = users.GetByEmail(ctx, "ada@example.com")
	assert.True(t, repository.IsRecordNotFound(err))
}
