// Package password implements credential hashing and complexity validation.
//
// Hashes are bcrypt; verification is constant-time via bcrypt itself.
package password

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/tbsky/session/internal/common"
)

// MinLength is the minimum accepted password length.
const MinLength = 10

// specialChars is the fixed set of accepted symbols.
const specialChars = "$@#%!^&*()-_+={}[]"

// Validate checks password complexity: minimum length, at least one digit,
// one uppercase letter, one lowercase letter, and one symbol from the allowed
// set. Checks run in order and the first violation is returned; errors wrap
// common.ErrorValidation.
func Validate(v string) error {
	if len(v) < MinLength {
		return fmt.Errorf("%w: length should be at least %d", common.ErrorValidation, MinLength)
	}
	if !strings.ContainsFunc(v, unicode.IsDigit) {
		return fmt.Errorf("%w: password should have at least one numeral", common.ErrorValidation)
	}
	if !strings.ContainsFunc(v, unicode.IsUpper) {
		return fmt.Errorf("%w: password should have at least one uppercase letter", common.ErrorValidation)
	}
	if !strings.ContainsFunc(v, unicode.IsLower) {
		return fmt.Errorf("%w: password should have at least one lowercase letter", common.ErrorValidation)
	}
	if !strings.ContainsAny(v, specialChars) {
		return fmt.Errorf("%w: password should have at least one of the symbols %s", common.ErrorValidation, specialChars)
	}
	return nil
}

// Hash returns the bcrypt hash of the plain-text password.
func Hash(v string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(v), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// Verify reports whether plain hashes to hashed under the same scheme.
func Verify(plain, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}
