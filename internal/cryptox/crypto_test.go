package cryptox

import (
	"bytes"
	"errors"
	"testing"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	secret := []byte("shared-secret")
	salt := []byte("fixed-salt")

	key1 := DeriveKey(secret, salt)
	key2 := DeriveKey(secret, salt)

	if !bytes.Equal(key1, key2) {
		t.Errorf("expected same result for same inputs, got different")
	}
	if len(key1) != 32 {
		t.Errorf("expected 32-byte key, got %d", len(key1))
	}
}

func TestDeriveKey_DifferentInputs(t *testing.T) {
	secret := []byte("shared-secret")

	key1 := DeriveKey(secret, []byte("salt-1"))
	key2 := DeriveKey(secret, []byte("salt-2"))

	if bytes.Equal(key1, key2) {
		t.Errorf("expected different keys for different salts")
	}
}

func TestSealOpen_RoundTrip(t *testing.T) {
	key := DeriveKey([]byte("shared-secret"), []byte("salt"))
	plaintext := []byte(`[{"user_key":"alice"}]`)

	blob, err := Seal(plaintext, key)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Contains(blob, []byte("alice")) {
		t.Errorf("plaintext visible in sealed blob")
	}

	got, err := Open(blob, key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("round trip mismatch: %q", got)
	}
}

func TestOpen_WrongKey(t *testing.T) {
	key := DeriveKey([]byte("shared-secret"), []byte("salt"))
	blob, err := Seal([]byte("payload"), key)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	other := DeriveKey([]byte("different-secret"), []byte("salt"))
	if _, err := Open(blob, other); !errors.Is(err, ErrInvalidBlob) {
		t.Errorf("expected ErrInvalidBlob, got %v", err)
	}
}

func TestOpen_TamperedBlob(t *testing.T) {
	key := DeriveKey([]byte("shared-secret"), []byte("salt"))
	blob, err := Seal([]byte("payload"), key)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	blob[len(blob)-1] ^= 0xff
	if _, err := Open(blob, key); !errors.Is(err, ErrInvalidBlob) {
		t.Errorf("expected ErrInvalidBlob, got %v", err)
	}
}

func TestOpen_TruncatedBlob(t *testing.T) {
	key := DeriveKey([]byte("shared-secret"), []byte("salt"))
	if _, err := Open([]byte{1, 2, 3}, key); !errors.Is(err, ErrInvalidBlob) {
		t.Errorf("expected ErrInvalidBlob, got %v", err)
	}
}
