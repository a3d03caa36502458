package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"unicode"

	"github.com/Veraticus/fintrack/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultIterations is the PBKDF2 work factor for new and existing hashes.
	DefaultIterations = 100000

	saltLen    = 64 // hex characters
	keyLen     = 64 // bytes of derived key
	randomSeed = 60
)

// ErrWeakPassword is returned by CheckPasswordStrength.
var ErrWeakPassword = fmt.Errorf("%w: weak password", common.ErrValidation)

// HashPassword derives a storable hash: a 64 character hex salt followed by
// the hex encoded PBKDF2-HMAC-SHA512 key.
func HashPassword(password string, iterations int) (string, error) {
	seed := make([]byte, randomSeed)
	if _, err := rand.Read(seed); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	sum := sha256.Sum256(seed)
	salt := hex.EncodeToString(sum[:])

	return salt + derive(password, salt, iterations), nil
}

// VerifyPassword reports whether password matches stored. Malformed hashes
// never match.
func VerifyPassword(stored, password string, iterations int) bool {
	if len(stored) <= saltLen {
		return false
	}
	salt, want := stored[:saltLen], stored[saltLen:]
	got := derive(password, salt, iterations)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func derive(password, salt string, iterations int) string {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	key := pbkdf2.Key([]byte(password), []byte(salt), iterations, keyLen, sha512.New)
	return hex.EncodeToString(key)
}

// CheckPasswordStrength requires at least 8 characters with an uppercase
// letter, a digit and a symbol.
func CheckPasswordStrength(password string) error {
	if len([]rune(password)) < 8 {
		return fmt.Errorf("%w: must be at least 8 characters", ErrWeakPassword)
	}

	var upper, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			special = true
		}
	}

	switch {
	case !upper:
		return fmt.Errorf("%w: needs an uppercase letter", ErrWeakPassword)
	case !digit:
		return fmt.Errorf("%w: needs a digit", ErrWeakPassword)
	case !special:
		return fmt.Errorf("%w: needs a special character", ErrWeakPassword)
	}
	return nil
}
