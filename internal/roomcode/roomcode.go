// Package roomcode generates short, confusion-free room codes and retries
// against a uniqueness check, generalized from the teacher's
// utils.GenerateID(8) (an 8-char random id used for both room and player
// ids) into the spec's dedicated 4-char, 32-symbol alphabet.
package roomcode

import (
	"crypto/rand"
	"math/big"

	"github.com/cmacnamara/prompt-guessr/internal"
)

const maxAttempts = 10

// CodeExhaustionError is returned when no unique code could be found in
// maxAttempts tries.
type CodeExhaustionError struct{}

func (CodeExhaustionError) Error() string { return "room code generation exhausted retries" }

// Generate produces one candidate code of internal.RoomCodeLength
// characters from internal.RoomCodeAlphabet, uniformly at random.
func Generate() (string, error) {
	alphabet := internal.RoomCodeAlphabet
	out := make([]byte, internal.RoomCodeLength)
	for i := range out {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", err
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}

// IsCodeTaken is satisfied by internal/store.Store.IsCodeTaken; declared
// here so GenerateUnique doesn't import the store package (avoiding an
// import cycle, since store imports internal, not roomcode).
type IsCodeTaken func(code string) (bool, error)

// GenerateUnique produces a code verified not to collide via isCodeTaken,
// retrying up to maxAttempts times before failing with CodeExhaustionError
// per spec §4.2.
func GenerateUnique(isCodeTaken IsCodeTaken) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := Generate()
		if err != nil {
			return "", err
		}
		taken, err := isCodeTaken(code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", CodeExhaustionError{}
}

// Valid reports whether s is a plausible room code per spec §6: 4–8
// characters, all from the confusion-free alphabet.
func Valid(s string) bool {
	if len(s) < 4 || len(s) > 8 {
		return false
	}
	for _, c := range s {
		if !containsRune(internal.RoomCodeAlphabet, c) {
			return false
		}
	}
	return true
}

func containsRune(s string, r rune) bool {
	for _, c := range s {
		if c == r {
			return true
		}
	}
	return false
}
