package auth

import (
	"errors"
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the minimum accepted plaintext password length.
const MinPasswordLength = 8

var (
	ErrPasswordRequired = errors.New("password is required")
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrPasswordTooWeak  = errors.New("password must contain upper and lower case letters, a digit and a special character")
	ErrMalformedHash    = errors.New("stored password hash is malformed")
	ErrHashingFailed    = errors.New("password hashing failed")
)

// BcryptHasher hashes and verifies passwords with bcrypt. The zero value
// uses the package default cost.
type BcryptHasher struct {
	Cost int
}

// Hash validates the plaintext and returns its bcrypt hash. Malformed input
// fails loudly rather than producing a hash of an unusable password.
func (b BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrPasswordRequired
	}
	if len(password) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}
	cost := b.Cost
	if cost == 0 {
		cost = defaultBcryptCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashingFailed, err)
	}
	return string(h), nil
}

// Verify compares a plaintext password against a stored hash. A mismatch
// returns (false, nil); an unparseable hash returns an error so storage
// corruption is never reported as just a wrong password.
func (b BcryptHasher) Verify(password, hash string) (bool, error) {
	if password == "" || hash == "" {
		return false, ErrMalformedHash
	}
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

// ValidateStrength enforces the new-password policy: minimum length plus
// upper, lower, digit and special character classes.
func ValidateStrength(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		return ErrPasswordTooWeak
	}
	return nil
}
