package security_test

import (
	"strings"
	"testing"

	"github.com/Rrens/filechat/internal/security"
	"github.com/golang-jwt/jwt/v5"
)

func TestSessionSigner_SignAndVerify(t *testing.T) {
	signer := security.NewSessionSigner("test-secret-key-with-32-chars!!")

	id := security.NewSessionID()
	token, err := signer.Sign(id)
	if err != nil {
		t.Fatalf("failed to sign session: %v", err)
	}

	got, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("failed to verify session: %v", err)
	}
	if got != id {
		t.Errorf("session ID mismatch: got %v, want %v", got, id)
	}
}

func TestSessionSigner_RejectsForeignTokens(t *testing.T) {
	signer := security.NewSessionSigner("secret-one")
	other := security.NewSessionSigner("secret-two")

	token, _ := other.Sign(security.NewSessionID())
	if _, err := signer.Verify(token); err == nil {
		t.Error("expected error for token signed with another secret")
	}

	if _, err := signer.Verify("not-a-token"); err == nil {
		t.Error("expected error for garbage token")
	}

	// Well-signed token whose subject is not a session ID
	bad := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "admin", Issuer: "filechat"})
	signed, _ := bad.SignedString([]byte("secret-one"))
	if _, err := signer.Verify(signed); err == nil {
		t.Error("expected error for non-uuid subject")
	}
}

func TestNewSessionID_Unique(t *testing.T) {
	a, b := security.NewSessionID(), security.NewSessionID()
	if a == b {
		t.Error("expected different session IDs")
	}
	if len(strings.ReplaceAll(a, "-", "")) != 32 {
		t.Errorf("expected 128-bit hex identifier, got %q", a)
	}
}

func TestPassword(t *testing.T) {
	hash, err := security.HashPassword("hunter2")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	if !security.CheckPassword(hash, "hunter2") {
		t.Error("expected password to match")
	}
	if security.CheckPassword(hash, "hunter3") {
		t.Error("expected wrong password to fail")
	}
	if security.CheckPassword("not-a-hash", "hunter2") {
		t.Error("expected malformed hash to fail")
	}
}
