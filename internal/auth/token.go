// Package auth is the session's view of the external auth collaborator: a
// bearer-token accessor and the role decoded from that token.
package auth

import (
	"os"
	"strings"
)

// TokenSource returns the current bearer token, or "" when there is none.
type TokenSource interface {
	Token() string
}

// Static is a fixed token.
type Static string

func (s Static) Token() string { return strings.TrimSpace(string(s)) }

// File reads the token from a file on every call so a rotated token is picked
// up without restarting. A missing or unreadable file means no token.
type File string

func (f File) Token() string {
	if f == "" {
		return ""
	}
	data, err := os.ReadFile(string(f))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// Chain returns the first non-empty token of its sources.
type Chain []TokenSource

func (c Chain) Token() string {
	for _, src := range c {
		if src == nil {
			continue
		}
		if t := src.Token(); t != "" {
			return t
		}
	}
	return ""
}

// WriteTokenFile stores token at path, readable only by the owner.
func WriteTokenFile(path, token string) error {
	return os.WriteFile(path, []byte(strings.TrimSpace(token)+"\n"), 0o600)
}
