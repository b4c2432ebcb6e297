package stream

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"

	"streamfetch/internal"
)

func testSigningCredential(t *testing.T) (internal.Credential, *rsa.PrivateKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}

	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	return internal.Credential{KeyID: "key1", PEM: string(pemBytes)}, key
}

func TestLocalSigner_SignPlaybackToken(t *testing.T) {
	cred, key := testSigningCredential(t)

	signer := NewLocalSigner(cred)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	signer.now = func() time.Time { return at }

	signed, err := signer.SignPlaybackToken(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parsed, err := jwt.Parse(signed, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			t.Errorf("signing method = %v, want RS256", token.Header["alg"])
		}
		return &key.PublicKey, nil
	})
	if err != nil {
		// The pinned expiry is in the past relative to the real clock,
		// which jwt.Parse reports as a validation error; the signature
		// itself must still verify.
		ve, ok := err.(*jwt.ValidationError)
		if !ok || ve.Errors&jwt.ValidationErrorSignatureInvalid != 0 {
			t.Fatalf("token did not verify against the public key: %v", err)
		}
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatal("claims did not decode")
	}
	if claims["sub"] != "abc123" {
		t.Errorf("sub = %v, want abc123", claims["sub"])
	}
	if claims["kid"] != "key1" {
		t.Errorf("kid claim = %v, want key1", claims["kid"])
	}
	if got := claims["exp"]; got != float64(at.Add(PlaybackTokenTTL).Unix()) {
		t.Errorf("exp = %v, want %v", got, at.Add(PlaybackTokenTTL).Unix())
	}
	if parsed.Header["kid"] != "key1" {
		t.Errorf("header kid = %v, want key1", parsed.Header["kid"])
	}
}

func TestLocalSigner_TTLOverride(t *testing.T) {
	cred, key := testSigningCredential(t)

	signer := NewLocalSigner(cred)
	signer.TTL = 24 * time.Hour

	signed, err := signer.SignPlaybackToken(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parsed, err := jwt.Parse(signed, func(token *jwt.Token) (interface{}, error) {
		return &key.PublicKey, nil
	})
	if err != nil {
		t.Fatalf("token did not parse: %v", err)
	}
	if !parsed.Valid {
		t.Error("token with a future expiry must validate")
	}
}

func TestLocalSigner_BadPEM(t *testing.T) {
	signer := NewLocalSigner(internal.Credential{KeyID: "key1", PEM: "not a pem"})

	_, err := signer.SignPlaybackToken(context.Background(), "abc123")
	if err == nil {
		t.Fatal("expected an error for the malformed PEM")
	}
}

func TestLocalSigner_NoCredential(t *testing.T) {
	signer := NewLocalSigner(internal.Credential{})

	_, err := signer.SignPlaybackToken(context.Background(), "abc123")
	if err == nil {
		t.Fatal("expected an error without a credential")
	}
}
