package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"

	"golang.org/x/crypto/pbkdf2"
)

// fastHash builds a valid encoded hash with a small iteration count so tests
// stay quick.
func fastHash(token string) string {
	salt := []byte("0123456789abcdef")
	derived := pbkdf2.Key([]byte(token), salt, 1000, 32, sha256.New)
	return fmt.Sprintf("pbkdf2$sha256$1000$%s$%s",
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(derived))
}

func TestHashAndVerifyToken(t *testing.T) {
	token, err := GenerateToken(32)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	hash, err := HashToken(token)
	if err != nil {
		t.Fatalf("HashToken: %v", err)
	}
	if !strings.HasPrefix(hash, "pbkdf2$sha256$") {
		t.Fatalf("unexpected hash format %q", hash)
	}
	if err := VerifyToken(hash, token); err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
}

func TestVerifyTokenRejectsWrongToken(t *testing.T) {
	hash := fastHash("correct-token")
	if err := VerifyToken(hash, "wrong-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyTokenRejectsMalformedHash(t *testing.T) {
	cases := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"too few parts", "pbkdf2$sha256$1000"},
		{"wrong algorithm", "scrypt$sha256$1000$c2FsdA$aGFzaA"},
		{"bad iterations", "pbkdf2$sha256$zero$c2FsdA$aGFzaA"},
		{"bad salt encoding", "pbkdf2$sha256$1000$!!!$aGFzaA"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := VerifyToken(tc.hash, "token")
			if err == nil {
				t.Fatal("malformed hash must not verify")
			}
			if errors.Is(err, ErrInvalidToken) {
				t.Fatalf("malformed hashes are format errors, not mismatches: %v", err)
			}
		})
	}
}

func TestHashTokenRequiresToken(t *testing.T) {
	if _, err := HashToken(""); err == nil {
		t.Fatal("empty token must be rejected")
	}
}

func TestGenerateTokenDefaultsLength(t *testing.T) {
	token, err := GenerateToken(0)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		t.Fatalf("token is not URL-safe base64: %v", err)
	}
	if len(raw) != 32 {
		t.Fatalf("default token length = %d bytes, want 32", len(raw))
	}
}
