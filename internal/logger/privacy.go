package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
)

var hashSalt string

// InitHashSalt loads the log hash salt from the environment.
// In production, set LOG_HASH_SALT.
func InitHashSalt() {
	hashSalt = os.Getenv("LOG_HASH_SALT")
	if hashSalt == "" {
		hashSalt = "default-salt-change-in-production"
	}
}

// HashEmployee creates a privacy-preserving hash of an employee number.
// Lets us correlate a traveler's match requests in logs without exposing
// who was travelling where.
func HashEmployee(employeeNo string) string {
	if hashSalt == "" {
		InitHashSalt()
	}
	data := fmt.Sprintf("%s:%s", employeeNo, hashSalt)
	hash := sha256.Sum256([]byte(data))
	// First 8 characters are enough for correlation
	return hex.EncodeToString(hash[:])[:8]
}
