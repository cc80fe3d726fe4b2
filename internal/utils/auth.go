package utils

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt ignores input past 72 bytes
const maxPasswordBytes = 72

var (
	errEmptyPassword   = errors.New("password cannot be empty")
	errPasswordTooLong = errors.New("password is too long (maximum 72 bytes)")
)

// HashPassword creates a bcrypt hash of the password using bcrypt.DefaultCost
func HashPassword(password string) (string, error) {
	if err := ValidatePasswordStrength(password); err != nil {
		return "", err
	}

	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(hashedBytes), nil
}

// VerifyPassword checks the password against a stored hash.
// Returns nil when the password matches.
func VerifyPassword(hashedPassword, password string) error {
	if hashedPassword == "" {
		return errors.New("hashed password cannot be empty")
	}

	if password == "" {
		return errEmptyPassword
	}

	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// ValidatePasswordStrength checks a raw password before hashing.
// Any non-empty password that bcrypt can hash in full is accepted.
func ValidatePasswordStrength(password string) error {
	if password == "" {
		return errEmptyPassword
	}

	if len(password) > maxPasswordBytes {
		return errPasswordTooLong
	}

	return nil
}
