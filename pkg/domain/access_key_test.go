package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "frota/pkg/domain-errors"
)

const validKey = "35241112345678000199650010000123451000123456"

// TestParseAccessKey_Invariants validates the parsing invariant:
// "access keys are exactly 44 ASCII digits"
func TestParseAccessKey_Invariants(t *testing.T) {
	t.Run("accepts 44 digits", func(t *testing.T) {
		key, err := ParseAccessKey(validKey)
		require.NoError(t, err)
		assert.Equal(t, validKey, key.String())
		assert.False(t, key.IsNil())
	})

	t.Run("accepts all nines", func(t *testing.T) {
		_, err := ParseAccessKey(strings.Repeat("9", 44))
		require.NoError(t, err)
	})

	tests := []struct {
		name  string
		input string
	}{
		{"empty string", ""},
		{"too short", strings.Repeat("1", 43)},
		{"too long", strings.Repeat("1", 45)},
		{"letter inside", strings.Repeat("1", 20) + "A" + strings.Repeat("1", 23)},
		{"leading whitespace", " " + strings.Repeat("1", 43)},
		{"trailing newline", strings.Repeat("1", 43) + "\n"},
		{"formatted with spaces", "3524 1112 3456 7800 0199 6500 1000 0123 4510 0012 3456"},
		{"negative sign", "-" + strings.Repeat("1", 43)},
		{"null byte", strings.Repeat("1", 43) + "\x00"},
		{"arabic-indic digits", strings.Repeat("١", 44)},
	}
	for _, tt := range tests {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			_, err := ParseAccessKey(tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidAccessKey)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

func TestAccessKeySegments(t *testing.T) {
	key, err := ParseAccessKey(validKey)
	require.NoError(t, err)
	assert.Equal(t, "35", key.State())
	assert.Equal(t, "65", key.Model())

	var zero AccessKey
	assert.True(t, zero.IsNil())
	assert.Empty(t, zero.State())
	assert.Empty(t, zero.Model())
}
