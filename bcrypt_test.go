package upkeep_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/upkeephq/upkeep"
)

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{
			name:     "Valid password",
			password: "securePassword123!",
			wantErr:  false,
		},
		{
			name:     "Empty password",
			password: "",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := upkeep.HashPassword(tt.password)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			assert.NotEmpty(t, hash)

			err = upkeep.ComparePasswordAndHash(tt.password, hash)
			assert.NoError(t, err)
		})
	}
}

func TestHashPasswordIsSalted(t *testing.T) {
	hash1, err := upkeep.HashPassword("samePassword")
	assert.NoError(t, err)
	hash2, err := upkeep.HashPassword("samePassword")
	assert.NoError(t, err)

	assert.NotEqual(t, hash1, hash2)
}

func TestComparePasswordAndHash(t *testing.T) {
	password := "testPassword123!"
	hash, err := upkeep.HashPassword(password)
	assert.NoError(t, err)

	tests := []struct {
		name     string
		password string
		hash     string
		wantErr  bool
	}{
		{
			name:     "Matching password",
			password: password,
			hash:     hash,
			wantErr:  false,
		},
		{
			name:     "Wrong password",
			password: "wrongPassword",
			hash:     hash,
			wantErr:  true,
		},
		{
			name:     "Invalid hash",
			password: password,
			hash:     "invalidhash",
			wantErr:  true,
		},
		{
			name:     "Empty hash",
			password: password,
			hash:     "",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := upkeep.ComparePasswordAndHash(tt.password, tt.hash)

			if tt.wantErr {
				assert.ErrorIs(t, err, upkeep.ErrMismatchedHashAndPassword)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPasswordHasherRoundTrip(t *testing.T) {
	hasher := upkeep.NewPasswordHasher()

	hash, err := hasher.HashPassword("roundTrip123!")
	assert.NoError(t, err)
	assert.NoError(t, hasher.ComparePasswordAndHash("roundTrip123!", hash))
	assert.Error(t, hasher.ComparePasswordAndHash("different", hash))
}
