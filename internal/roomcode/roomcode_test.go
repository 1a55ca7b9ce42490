package roomcode

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmacnamara/prompt-guessr/internal"
)

func TestGenerateLengthAndAlphabet(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := Generate()
		require.NoError(t, err)
		assert.Len(t, code, internal.RoomCodeLength)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(internal.RoomCodeAlphabet, c), "unexpected rune %q in code %q", c, code)
		}
	}
}

func TestGenerateUniqueReturnsFirstUntakenCode(t *testing.T) {
	calls := 0
	code, err := GenerateUnique(func(code string) (bool, error) {
		calls++
		return false, nil
	})
	require.NoError(t, err)
	assert.Len(t, code, internal.RoomCodeLength)
	assert.Equal(t, 1, calls)
}

func TestGenerateUniqueRetriesOnCollision(t *testing.T) {
	calls := 0
	code, err := GenerateUnique(func(code string) (bool, error) {
		calls++
		return calls < 3, nil
	})
	require.NoError(t, err)
	assert.Len(t, code, internal.RoomCodeLength)
	assert.Equal(t, 3, calls)
}

func TestGenerateUniqueExhaustsRetries(t *testing.T) {
	_, err := GenerateUnique(func(code string) (bool, error) {
		return true, nil
	})
	require.Error(t, err)
	var exhaustion CodeExhaustionError
	assert.True(t, errors.As(err, &exhaustion))
}

func TestGenerateUniquePropagatesStoreError(t *testing.T) {
	boom := errors.New("store unavailable")
	_, err := GenerateUnique(func(code string) (bool, error) {
		return false, boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestValid(t *testing.T) {
	tests := []struct {
		name string
		code string
		want bool
	}{
		{"valid four char code", "ABCD", true},
		{"valid eight char code", "ABCDEFGH", true},
		{"too short", "ABC", false},
		{"too long", "ABCDEFGHI", false},
		{"contains excluded confusable character", "AB0I", false},
		{"lowercase not accepted", "abcd", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Valid(tt.code))
		})
	}
}
