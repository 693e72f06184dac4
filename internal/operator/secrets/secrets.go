// Package secrets handles operator credential material: random password
// generation plus bcrypt hashing and verification. Only the hash is ever
// stored; the plaintext lives with the operator.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	derrors "gatepass/pkg/domain-errors"
)

const passwordBytes = 32

// Generate returns a random URL-safe operator password.
func Generate() (string, error) {
	buf := make([]byte, passwordBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Hash returns the bcrypt hash of a password for storage in configuration.
func Hash(password string) (string, error) {
	if password == "" {
		return "", derrors.New(derrors.CodeInvalidInput, "password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", derrors.New(derrors.CodeInvalidInput, "password is too long")
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify checks a password against its stored bcrypt hash.
func Verify(password, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return derrors.New(derrors.CodeUnauthorized, "invalid credentials")
	}
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	return nil
}
