// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken    = errors.New("invalid token format")
	ErrInvalidPassword = errors.New("invalid password")
)

// GenerateID creates a random hex ID of the specified byte length
func GenerateID(byteLen int) (string, error) {
	b := make([]byte, byteLen)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate random ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateAPIKey creates a 40 character hex key for the API token table
func GenerateAPIKey() (string, error) {
	return GenerateID(20)
}

// GenerateSessionKey creates a random secure key for a browser session
func GenerateSessionKey() (string, error) {
	b := make([]byte, 32) // 32 bytes = 256 bits of entropy
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate session key: %w", err)
	}
	// URL-safe base64 without padding
	return strings.TrimRight(base64.URLEncoding.EncodeToString(b), "="), nil
}

// ParseAuthorization extracts the key from an "Authorization: Token <key>" header.
// An empty header returns "" and no error.
func ParseAuthorization(header string) (string, error) {
	if header == "" {
		return "", nil
	}
	scheme, key, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !strings.EqualFold(scheme, "Token") {
		// Other schemes are not ours to judge
		return "", nil
	}
	key = strings.TrimSpace(key)
	if !ok || key == "" || strings.Contains(key, " ") {
		return "", ErrInvalidToken
	}
	return key, nil
}

// HashPassword returns a bcrypt hash of the password
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a password against a bcrypt hash
func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidPassword
	}
	return nil
}
