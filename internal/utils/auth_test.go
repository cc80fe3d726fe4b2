package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  string
	}{
		{name: "Short password", password: "pw123"},
		{name: "Single character", password: "x"},
		{name: "Exactly 72 bytes", password: strings.Repeat("a", 72)},
		{name: "Empty", password: "", wantErr: "empty"},
		{name: "73 bytes", password: strings.Repeat("a", 73), wantErr: "too long"},
		// 37 runes, 74 bytes: the limit counts bytes
		{name: "Multibyte over limit", password: strings.Repeat("ж", 37), wantErr: "too long"},
		{name: "Multibyte at limit", password: strings.Repeat("ж", 36)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePasswordStrength(tt.password)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestHashPasswordIsSalted(t *testing.T) {
	first, err := HashPassword("pw123")
	require.NoError(t, err)
	second, err := HashPassword("pw123")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.NotContains(t, first, "pw123")
	assert.NoError(t, VerifyPassword(first, "pw123"))
	assert.NoError(t, VerifyPassword(second, "pw123"))

	_, err = HashPassword(strings.Repeat("a", 73))
	assert.Error(t, err)
}

func TestPasswordWorkflow(t *testing.T) {
	hash, err := HashPassword("pw123")
	require.NoError(t, err)

	assert.NoError(t, VerifyPassword(hash, "pw123"))
	assert.Error(t, VerifyPassword(hash, "pw1234"))
	assert.Error(t, VerifyPassword(hash, "PW123"))
	assert.Error(t, VerifyPassword(hash, ""))
	assert.Error(t, VerifyPassword("", "pw123"))
}
