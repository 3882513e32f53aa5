package config

import (
	"fmt"

	"github.com/google/uuid"
)

const tokenKey = "server.token"

// EnsureToken returns the daemon bearer token, generating and persisting a
// fresh one when none is configured. The CLI reads the same key, so both
// sides of the localhost connection agree without any handshake.
func EnsureToken() (string, error) {
	return ensureTokenOn(newFileBackend())
}

func ensureTokenOn(b ConfigBackend) (string, error) {
	existing, ok, err := b.GetString(tokenKey)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", tokenKey, err)
	}
	if ok && existing != "" {
		return existing, nil
	}

	token := uuid.New().String()
	if err := b.SetString(tokenKey, token); err != nil {
		return "", fmt.Errorf("persisting %s: %w", tokenKey, err)
	}
	return token, nil
}
