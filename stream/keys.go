package stream

import (
	"context"
	"fmt"
	"time"

	"streamfetch/internal"
	"streamfetch/utils"
)

// PlaybackTokenTTL is the expiry requested for signed playback tokens
const PlaybackTokenTTL = time.Hour

// signRequest is the body for the hosted playback-token signing endpoint
type signRequest struct {
	ID  string `json:"id"`
	PEM string `json:"pem"`
	Exp int64  `json:"exp"`
}

// CreateSigningKey mints a new signing key pair for the account. The PEM
// and JWK in the response are shown exactly once; callers must store them,
// listings never repeat them.
func (c *Client) CreateSigningKey(ctx context.Context) (*internal.SigningKey, error) {
	var key internal.SigningKey
	if err := c.postResult(ctx, c.urls.Keys(), nil, nil, &key); err != nil {
		return nil, fmt.Errorf("failed to create signing key: %w", err)
	}

	internal.LogInfo("Created signing key %s", key.ID)
	return &key, nil
}

// ListSigningKeys returns the account's signing keys. Any key can sign for
// any video.
func (c *Client) ListSigningKeys(ctx context.Context) ([]internal.SigningKey, error) {
	var keys []internal.SigningKey
	if err := c.getResult(ctx, c.urls.Keys(), &keys); err != nil {
		return nil, fmt.Errorf("failed to list signing keys: %w", err)
	}

	return keys, nil
}

// SignPlaybackToken asks the hosted signing endpoint for a playback token
// for a signed video. The returned token replaces the video UID in
// playback URLs and is valid for PlaybackTokenTTL.
func (c *Client) SignPlaybackToken(ctx context.Context, videoUID string) (string, error) {
	if err := utils.ValidateVideoUID(videoUID); err != nil {
		return "", err
	}

	cred := c.Credential()
	if cred.IsZero() {
		return "", internal.NewSigningKeyRequiredError("playback token signing")
	}

	body := &signRequest{
		ID:  cred.KeyID,
		PEM: cred.PEM,
		Exp: time.Now().Add(PlaybackTokenTTL).Unix(),
	}

	// The util host speaks plain text, not the v4 envelope
	resp, err := c.httpClient.PostJSON(ctx, utils.SignURL(c.utilBase, videoUID), body, nil)
	if err != nil {
		return "", fmt.Errorf("failed to sign playback token for %s: %w", videoUID, err)
	}

	data, err := utils.ReadBody(resp)
	if err != nil {
		return "", err
	}

	if resp.StatusCode >= 400 {
		return "", internal.NewAuthFailedError(resp.StatusCode, string(data)).
			WithEndpoint(utils.SignURL(c.utilBase, videoUID))
	}

	token := string(data)
	if token == "" {
		return "", internal.NewStreamError(resp.StatusCode, "signing endpoint returned an empty token", internal.ErrInvalidResponse).
			WithEndpoint(utils.SignURL(c.utilBase, videoUID))
	}

	return token, nil
}
