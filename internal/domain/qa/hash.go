package qa

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// QuestionHash returns the lowercase hex SHA-256 of the question text.
// It is the stable content address used by the embedding cache and by
// edit/delete operations.
func QuestionHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// HasHashPrefix reports whether full starts with the given short hash.
// Prefix matching is case-insensitive since hashes are hex.
func HasHashPrefix(full, prefix string) bool {
	return prefix != "" && strings.HasPrefix(full, strings.ToLower(prefix))
}
