package model

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
)

var idPattern = regexp.MustCompile(`^[0-9a-f]{24}$`)

// NewID returns a 24-character lowercase hex identifier, matching the opaque
// id shape exposed at the API boundary.
func NewID() string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		panic("id generation failed: " + err.Error())
	}
	return hex.EncodeToString(buf)
}

// IsValidID reports whether s has the expected 24-hex shape.
func IsValidID(s string) bool {
	return idPattern.MatchString(s)
}
