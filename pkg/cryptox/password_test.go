package cryptox_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tallyworks/tally/pkg/cryptox"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := cryptox.HashPassword("Sup3rSecret")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

	require.NoError(t, cryptox.VerifyPassword("Sup3rSecret", hash))
	require.ErrorIs(t, cryptox.VerifyPassword("wrong", hash), cryptox.ErrPasswordMismatch)
}

func TestVerifyPasswordRejectsGarbage(t *testing.T) {
	t.Parallel()

	require.Error(t, cryptox.VerifyPassword("x", "not-a-hash"))
	require.Error(t, cryptox.VerifyPassword("x", "$bcrypt$v=19$m=1,t=1,p=1$abc$def"))
}

func TestGeneratePasswordSatisfiesPolicy(t *testing.T) {
	t.Parallel()

	for range 20 {
		pw, err := cryptox.GeneratePassword()
		require.NoError(t, err)
		require.NoError(t, cryptox.ValidatePasswordStrength(pw))
	}
}

func TestValidatePasswordStrength(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		password string
		ok       bool
	}{
		{"valid", "Abcdef12", true},
		{"too short", "Ab1", false},
		{"no uppercase or digit", "abcdefgh", false},
		{"no digit", "Abcdefgh", false},
		{"no lowercase", "ABCDEFG1", false},
		{"long and mixed", "CorrectHorse9battery", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := cryptox.ValidatePasswordStrength(tc.password)
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, cryptox.ErrWeakPassword)
			}
		})
	}
}
