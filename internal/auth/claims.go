package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoToken is returned by Decode for an empty token.
var ErrNoToken = errors.New("no token")

// Identity is what the session derives from the bearer token. The signature
// is not verified here; the API does that on every request.
type Identity struct {
	Role      string
	Email     string
	IssuedAt  *time.Time
	ExpiresAt *time.Time
}

// Decode reads the claims of token without verifying it.
// Role is roles[0], or roles when it is a string, or role.
// Email is sub, falling back to email.
func Decode(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrNoToken
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Identity{}, fmt.Errorf("decode token: %w", err)
	}

	id := Identity{Role: roleFrom(claims)}
	if sub, _ := claims["sub"].(string); sub != "" {
		id.Email = sub
	} else if email, _ := claims["email"].(string); email != "" {
		id.Email = email
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		t := iat.Time
		id.IssuedAt = &t
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		id.ExpiresAt = &t
	}
	return id, nil
}

func roleFrom(claims jwt.MapClaims) string {
	switch roles := claims["roles"].(type) {
	case []interface{}:
		if len(roles) > 0 {
			if s, ok := roles[0].(string); ok {
				return s
			}
		}
	case string:
		if roles != "" {
			return roles
		}
	}
	if role, ok := claims["role"].(string); ok {
		return role
	}
	return ""
}

// DashboardPath returns where a user with role lands after the exam.
func DashboardPath(role string) string {
	r := strings.ToUpper(role)
	switch {
	case r == "":
		return "/home"
	case strings.Contains(r, "ADMIN"):
		return "/dashboard/admin"
	case strings.Contains(r, "TEACHER"), strings.Contains(r, "FACULTY"):
		return "/dashboard/teacher"
	case strings.Contains(r, "STUDENT"):
		return "/dashboard/student"
	default:
		return "/dashboard/general"
	}
}
