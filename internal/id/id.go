// Package id generates document identifiers and opaque tokens.
package id

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes used for each kind of document.
const (
	PrefixPost         = "post"
	PrefixComment      = "cmt"
	PrefixUser         = "user"
	PrefixNotification = "ntf"
	PrefixSession      = "sess"
	PrefixToken        = "token"
	PrefixSSE          = "sse"
)

// Generate creates a prefixed unique ID using NanoID.
// Format: prefix-nanoid (e.g., "post-V1StGXR8_Z5jdHi6B-myT").
//
// Returns an error if the system has insufficient entropy for secure random generation.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// NewToken returns a random single-use token, such as an email verification code.
func NewToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Valid reports whether s can be used as a document id: non-empty, at most
// 128 bytes, and free of path separators.
func Valid(s string) bool {
	if s == "" || len(s) > 128 {
		return false
	}
	return !strings.ContainsAny(s, "/|\x00")
}
