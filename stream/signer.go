package stream

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"

	"streamfetch/internal"
	"streamfetch/utils"
)

// LocalSigner mints playback tokens without a round trip to the hosted
// signing endpoint: the signing key PEM is an RSA private key, and a
// playback token is an RS256 JWT whose header names the key and whose
// claims carry the video UID and expiry. Tokens signed locally and tokens
// from the hosted endpoint are interchangeable.
type LocalSigner struct {
	credential internal.Credential

	// TTL defaults to PlaybackTokenTTL
	TTL time.Duration

	// now is swapped out in tests to pin the expiry claim
	now func() time.Time
}

// NewLocalSigner creates a signer for the given credential
func NewLocalSigner(cred internal.Credential) *LocalSigner {
	return &LocalSigner{
		credential: cred,
		TTL:        PlaybackTokenTTL,
		now:        time.Now,
	}
}

// SignPlaybackToken signs a playback token for videoUID. The context is
// accepted for interface parity with the hosted signer; no network is
// involved.
func (s *LocalSigner) SignPlaybackToken(_ context.Context, videoUID string) (string, error) {
	if err := utils.ValidateVideoUID(videoUID); err != nil {
		return "", err
	}

	if s.credential.IsZero() {
		return "", internal.NewSigningKeyRequiredError("local playback token signing")
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(s.credential.PEM))
	if err != nil {
		return "", internal.NewStreamError(0, "failed to parse signing key PEM", internal.ErrLocalSigning).
			WithContext("error", err.Error())
	}

	ttl := s.TTL
	if ttl <= 0 {
		ttl = PlaybackTokenTTL
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": videoUID,
		"kid": s.credential.KeyID,
		"exp": s.now().Add(ttl).Unix(),
	})
	token.Header["kid"] = s.credential.KeyID

	signed, err := token.SignedString(key)
	if err != nil {
		return "", internal.NewStreamError(0, "failed to sign playback token", internal.ErrLocalSigning).
			WithContext("error", err.Error())
	}

	return signed, nil
}
