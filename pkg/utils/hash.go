package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashText returns a stable cache key for text, ignoring case and surrounding whitespace.
func HashText(namespace, text string) string {
	sum := sha256.Sum256([]byte(namespace + "\x00" + strings.ToLower(strings.TrimSpace(text))))
	return hex.EncodeToString(sum[:])
}
