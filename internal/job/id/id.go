// Package id provides unique identifier generation for cut runs.
package id

import (
	"strings"

	"github.com/google/uuid"
)

// Prefix starts every generated id.
const Prefix = "cut-"

// Generate creates a new unique run ID.
// Format: cut-<uuid>
// Example: cut-0b7f1b7e-3c1a-4f1e-9d1e-5c0c2a8b9f10
func Generate() string {
	return Prefix + uuid.NewString()
}

// Valid reports whether s has the shape of a generated id.
func Valid(s string) bool {
	rest, ok := strings.CutPrefix(s, Prefix)
	if !ok {
		return false
	}
	return uuid.Validate(rest) == nil
}
