package main

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateUUID returns a random lowercase v4 UUID used as a session ID
func GenerateUUID() string {
	return uuid.NewString()
}

// validUUID reports whether s parses as a UUID in canonical form
func validUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// truncate trims whitespace and caps s at n bytes
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		s = s[:n]
	}
	return s
}
