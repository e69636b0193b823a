package utils

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random identifier for a live connection.
func NewID() string {
	return uuid.NewString()
}

// StorageName returns a collision-resistant file name that keeps the
// lower-cased extension of original.
func StorageName(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	return uuid.NewString() + ext
}
