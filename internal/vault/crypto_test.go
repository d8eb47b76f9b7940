package vault

import (
	"crypto/x509"
	"encoding/hex"
	"errors"
	"testing"
)

var testKey = []byte("thisis32byteslongsecretkey123456") // 32 bytes for AES-256

func TestSealOpen(t *testing.T) {
	s, err := NewSealer(testKey, "session")
	if err != nil {
		t.Fatalf("NewSealer failed: %v", err)
	}
	token := "eyJhbGciOiJIUzI1NiJ9.payload.sig"

	sealed, err := s.Seal(token)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if sealed == token {
		t.Fatal("Sealed value should not be equal to plaintext")
	}

	opened, err := s.Open(sealed)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if opened != token {
		t.Errorf("Expected %s, got %s", token, opened)
	}
}

func TestOpenWithWrongKey(t *testing.T) {
	s1, _ := NewSealer(testKey, "session")
	s2, _ := NewSealer([]byte("another32byteslongsecretkey65432"), "session")

	sealed, err := s1.Seal("secret")
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if _, err := s2.Open(sealed); !errors.Is(err, ErrTampered) {
		t.Fatalf("Expected ErrTampered, got %v", err)
	}
}

func TestOpenWithWrongPurpose(t *testing.T) {
	session, _ := NewSealer(testKey, "session")
	other, _ := NewSealer(testKey, "csrf")

	sealed, _ := session.Seal("secret")
	if _, err := other.Open(sealed); !errors.Is(err, ErrTampered) {
		t.Fatalf("Expected ErrTampered across purposes, got %v", err)
	}
}

func TestInvalidKeySize(t *testing.T) {
	if _, err := NewSealer([]byte("shortkey"), "session"); err == nil {
		t.Fatal("NewSealer should fail with invalid key size")
	}
	if _, err := NewSealerHex("zz", "session"); err == nil {
		t.Fatal("NewSealerHex should fail with malformed hex")
	}
	if _, err := NewSealerHex(hex.EncodeToString(testKey), "session"); err != nil {
		t.Fatalf("NewSealerHex failed: %v", err)
	}
}

func TestOpenMalformed(t *testing.T) {
	s, _ := NewSealer(testKey, "session")
	if _, err := s.Open("not-hex"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("Expected ErrMalformed for bad hex, got %v", err)
	}
	// AES-GCM nonce is 12 bytes, so 3 bytes is definitely too short.
	if _, err := s.Open("abcdef"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("Expected ErrMalformed for short input, got %v", err)
	}
}

func TestGenerateSelfSignedCert(t *testing.T) {
	cert, err := GenerateSelfSignedCert("repair.local", "10.0.0.5")
	if err != nil {
		t.Fatalf("Failed to generate self-signed cert: %v", err)
	}
	if len(cert.Certificate) == 0 {
		t.Fatal("Generated certificate is empty")
	}
	if cert.PrivateKey == nil {
		t.Fatal("Generated private key is nil")
	}

	parsed, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		t.Fatalf("ParseCertificate failed: %v", err)
	}
	if err := parsed.VerifyHostname("repair.local"); err != nil {
		t.Errorf("Expected cert to cover repair.local: %v", err)
	}
	if err := parsed.VerifyHostname("10.0.0.5"); err != nil {
		t.Errorf("Expected cert to cover 10.0.0.5: %v", err)
	}
}
