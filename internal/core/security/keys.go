package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// KeyPrefix marks merchant API keys so they are recognisable in logs and
// secret scanners.
const KeyPrefix = "lp_live_"

// GenerateAPIKey creates a merchant API key and its SHA256 hash.
//
// Returns:
//   - realKey: the key shown to the merchant once (e.g. "lp_live_abc123...")
//   - keyHash: the hash stored in the database
func GenerateAPIKey() (realKey string, keyHash string, err error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	realKey = KeyPrefix + hex.EncodeToString(bytes)
	return realKey, HashKey(realKey), nil
}

// HashKey returns the hex SHA256 of key, the form keys are looked up by.
func HashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// DisplayPrefix is the part of a key safe to show in dashboards.
func DisplayPrefix(key string) string {
	if len(key) <= len(KeyPrefix)+4 {
		return key
	}
	return key[:len(KeyPrefix)+4]
}
