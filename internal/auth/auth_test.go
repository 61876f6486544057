package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("any-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func TestDecodeRoleShapes(t *testing.T) {
	cases := []struct {
		name   string
		claims jwt.MapClaims
		want   string
	}{
		{"roles array", jwt.MapClaims{"roles": []string{"STUDENT", "ADMIN"}}, "STUDENT"},
		{"roles string", jwt.MapClaims{"roles": "TEACHER"}, "TEACHER"},
		{"role claim", jwt.MapClaims{"role": "ADMIN"}, "ADMIN"},
		{"nothing", jwt.MapClaims{"sub": "x@example.com"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := Decode(sign(t, tc.claims))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if id.Role != tc.want {
				t.Fatalf("role = %q, want %q", id.Role, tc.want)
			}
		})
	}
}

func TestDecodeEmailAndTimes(t *testing.T) {
	iat := time.Unix(1_700_000_000, 0)
	tok := sign(t, jwt.MapClaims{
		"email": "student@example.com",
		"iat":   iat.Unix(),
		"exp":   iat.Add(time.Hour).Unix(),
	})

	id, err := Decode(tok)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if id.Email != "student@example.com" {
		t.Fatalf("email = %q", id.Email)
	}
	if id.IssuedAt == nil || !id.IssuedAt.Equal(iat) {
		t.Fatalf("issued at = %v", id.IssuedAt)
	}
	if id.ExpiresAt == nil || !id.ExpiresAt.Equal(iat.Add(time.Hour)) {
		t.Fatalf("expires at = %v", id.ExpiresAt)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode(""); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
	if _, err := Decode("not-a-jwt"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestDashboardPath(t *testing.T) {
	cases := map[string]string{
		"":             "/home",
		"ROLE_ADMIN":   "/dashboard/admin",
		"teacher":      "/dashboard/teacher",
		"FACULTY":      "/dashboard/teacher",
		"STUDENT":      "/dashboard/student",
		"GENERAL_USER": "/dashboard/general",
	}
	for role, want := range cases {
		if got := DashboardPath(role); got != want {
			t.Fatalf("DashboardPath(%q) = %q, want %q", role, got, want)
		}
	}
}

func TestTokenSources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	src := Chain{Static(""), File(path), Static("fallback")}
	if got := src.Token(); got != "fallback" {
		t.Fatalf("missing file should fall through, got %q", got)
	}

	if err := WriteTokenFile(path, "  abc.def.ghi \n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := src.Token(); got != "abc.def.ghi" {
		t.Fatalf("token = %q", got)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("perm = %v", info.Mode().Perm())
	}
}
