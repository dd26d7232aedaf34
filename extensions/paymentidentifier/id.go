package paymentidentifier

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// GenerateID creates a fresh payment identifier: the prefix followed by a
// version-4 UUID with hyphens removed (32 hex chars). An empty prefix
// defaults to "pay_".
func GenerateID(prefix string) string {
	if prefix == "" {
		prefix = "pay_"
	}
	return prefix + strings.ReplaceAll(uuid.New().String(), "-", "")
}

// IsValidID reports whether an ID is 16 to 128 characters of alphanumerics,
// hyphens, and underscores.
func IsValidID(id string) bool {
	if len(id) < MinIDLength || len(id) > MaxIDLength {
		return false
	}
	return idPattern.MatchString(id)
}
