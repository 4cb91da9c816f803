package crypto

import (
	"bytes"
	"testing"
)

func TestRandBytes_LengthAndUniqueness(t *testing.T) {
	t.Parallel()

	const n = 64
	a, err := RandBytes(n)
	if err != nil {
		t.Fatalf("RandBytes: %v", err)
	}
	if len(a) != n {
		t.Fatalf("len=%d, want=%d", len(a), n)
	}
	b, err := RandBytes(n)
	if err != nil {
		t.Fatalf("RandBytes(2): %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatalf("two subsequent RandBytes(%d) are equal", n)
	}
}

func TestNewPasswordHash_SaltedPerCall(t *testing.T) {
	t.Parallel()

	h1, s1, err := NewPasswordHash("pw1")
	if err != nil {
		t.Fatalf("NewPasswordHash: %v", err)
	}
	h2, s2, err := NewPasswordHash("pw1")
	if err != nil {
		t.Fatalf("NewPasswordHash(2): %v", err)
	}
	if len(s1) != SaltLen || len(s2) != SaltLen {
		t.Fatalf("salt len: %d/%d", len(s1), len(s2))
	}
	if bytes.Equal(s1, s2) || bytes.Equal(h1, h2) {
		t.Fatalf("same password must hash differently under fresh salts")
	}
	if !VerifyPassword([]byte("pw1"), s1, h1) || !VerifyPassword([]byte("pw1"), s2, h2) {
		t.Fatalf("VerifyPassword rejected correct password")
	}
}

func TestVerifyPassword(t *testing.T) {
	t.Parallel()

	pw := []byte("correct horse battery staple")
	salt := []byte("salty-salt-123456")
	hash := HashPassword(pw, salt)

	if !VerifyPassword(pw, salt, hash) {
		t.Fatalf("expected true for correct password")
	}
	if VerifyPassword([]byte("wrong"), salt, hash) {
		t.Fatalf("expected false for wrong password")
	}
	if VerifyPassword(pw, []byte("wrong-salt"), hash) {
		t.Fatalf("expected false for wrong salt")
	}
	if VerifyPassword(pw, nil, nil) {
		t.Fatalf("expected false for empty stored hash")
	}
}

func TestEqualSecret(t *testing.T) {
	t.Parallel()

	if !EqualSecret("#master", "#master") {
		t.Fatalf("equal secrets must match")
	}
	if EqualSecret("#maste", "#master") || EqualSecret("", "#master") {
		t.Fatalf("different secrets must not match")
	}
	if EqualSecret("", "") {
		t.Fatalf("an unset secret must never match")
	}
}
