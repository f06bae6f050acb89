package auth

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 8

const passwordSymbols = `!@#$%^&*(),.?":{}|<>`

// ErrMalformedHash is returned by Verify when the stored digest cannot be parsed.
var ErrMalformedHash = errors.New("auth: malformed password hash")

// dummyHash is compared against when the account being logged into does not
// exist, so both paths spend one bcrypt comparison.
var dummyHash = mustHash("staffdir-placeholder-password")

func mustHash(pw string) []byte {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcryptCost)
	if err != nil {
		panic(err)
	}
	return b
}

// Hash returns a salted bcrypt digest of the password.
func Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(b), nil
}

// Verify reports whether password matches the stored digest. A mismatch is
// (false, nil); a digest that is not bcrypt yields ErrMalformedHash.
func Verify(hash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
}

// VerifyMissing burns one comparison against a fixed digest. Login paths call it
// when no account matched.
func VerifyMissing(password string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}

// ValidatePasswordStrength returns every rule the password breaks. An empty
// result means the password is acceptable.
func ValidatePasswordStrength(password string) []string {
	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSymbols, r):
			symbol = true
		}
	}

	var problems []string
	if len([]rune(password)) < MinPasswordLength {
		problems = append(problems, fmt.Sprintf("Password must be at least %d characters long", MinPasswordLength))
	}
	if !lower {
		problems = append(problems, "Password must contain at least one lowercase letter")
	}
	if !upper {
		problems = append(problems, "Password must contain at least one uppercase letter")
	}
	if !digit {
		problems = append(problems, "Password must contain at least one number")
	}
	if !symbol {
		problems = append(problems, "Password must contain at least one special character")
	}
	return problems
}
