package stream

import (
	"context"
	"time"

	"streamfetch/internal"
	"streamfetch/utils"
)

const (
	// DownloadTokenTTL is the expiry requested for minted download tokens.
	// 24 hours is the maximum Cloudflare accepts; anything longer is
	// rejected remotely with a 403.
	DownloadTokenTTL = 24 * time.Hour

	// DefaultPollAttempts is the number of readiness checks before the
	// resolver gives up
	DefaultPollAttempts = 30

	// DefaultPollInterval is the wait between readiness checks
	DefaultPollInterval = 10 * time.Second
)

// tokenRequest is the body sent to the token-minting endpoint.
// downloadable marks the underlying video for download packaging.
type tokenRequest struct {
	ID           string `json:"id"`
	PEM          string `json:"pem"`
	Exp          int64  `json:"exp"`
	Downloadable bool   `json:"downloadable"`
}

type tokenResult struct {
	Token string `json:"token"`
}

type downloadsResult struct {
	Default internal.DownloadStatus `json:"default"`
}

// Resolver turns a video UID into a playable download URL. Each call mints
// a fresh download token server-side, so repeated calls for the same video
// produce different URLs.
type Resolver struct {
	client *Client

	// PollAttempts and PollInterval bound the readiness wait. They default
	// to 30 checks 10 seconds apart (about 300 seconds total).
	PollAttempts int
	PollInterval time.Duration

	// Progress, when set, receives the remote packaging percentage on each
	// not-ready poll
	Progress internal.ProgressSink

	// now is swapped out in tests to pin the expiry timestamp
	now func() time.Time
}

// NewResolver creates a Resolver with the default poll bounds
func NewResolver(client *Client) *Resolver {
	return &Resolver{
		client:       client,
		PollAttempts: DefaultPollAttempts,
		PollInterval: DefaultPollInterval,
		now:          time.Now,
	}
}

// ResolveDownloadURL mints a download token for videoUID and returns the
// playable URL.
//
// With waitUntilReady false the URL is returned as soon as the token is
// minted, before any status check; callers persisting the URL for later
// use skip the polling latency. With waitUntilReady true the resolver
// polls the download-status endpoint until the default rendition reports
// ready, sleeping PollInterval between checks. If the rendition is still
// not ready after PollAttempts checks the result is a ReadinessTimeout
// error, detectable with internal.IsReadinessTimeout; a failed poll
// request propagates as its own error and is never folded into the
// timeout.
//
// The wait honors ctx: cancellation interrupts the current sleep and
// returns ctx.Err().
func (r *Resolver) ResolveDownloadURL(ctx context.Context, videoUID string, waitUntilReady bool) (string, error) {
	if err := utils.ValidateVideoUID(videoUID); err != nil {
		return "", err
	}

	cred := r.client.Credential()
	if cred.IsZero() {
		return "", internal.NewSigningKeyRequiredError("download URL resolution")
	}

	token, err := r.mintDownloadToken(ctx, videoUID, cred)
	if err != nil {
		return "", err
	}

	playableURL := utils.DeliveryURL(r.client.DeliveryHost(), token)

	if !waitUntilReady {
		internal.LogDebug("Returning download URL for %s without readiness check", videoUID)
		return playableURL, nil
	}

	if err := r.waitUntilReady(ctx, videoUID, token); err != nil {
		return "", err
	}

	return playableURL, nil
}

// mintDownloadToken requests a fresh download token valid for
// DownloadTokenTTL and marks the video downloadable
func (r *Resolver) mintDownloadToken(ctx context.Context, videoUID string, cred internal.Credential) (string, error) {
	body := &tokenRequest{
		ID:           cred.KeyID,
		PEM:          cred.PEM,
		Exp:          r.now().Add(DownloadTokenTTL).Unix(),
		Downloadable: true,
	}

	var result tokenResult
	if err := r.client.postResult(ctx, r.client.urls.Token(videoUID), body, nil, &result); err != nil {
		return "", err
	}

	if result.Token == "" {
		return "", internal.NewStreamError(0, "token minting returned an empty token", internal.ErrInvalidResponse).
			WithEndpoint(r.client.urls.Token(videoUID))
	}

	internal.LogInfo("Minted download token for video %s", videoUID)
	return result.Token, nil
}

// waitUntilReady polls the download-status endpoint until the default
// rendition reports ready or the attempts run out
func (r *Resolver) waitUntilReady(ctx context.Context, videoUID, token string) error {
	attempts := r.PollAttempts
	if attempts <= 0 {
		attempts = DefaultPollAttempts
	}

	for i := 0; i < attempts; i++ {
		status, err := r.client.downloadStatus(ctx, videoUID, token)
		if err != nil {
			return err
		}

		if status.Ready() {
			internal.LogInfo("Download for video %s ready after %d status checks", videoUID, i+1)
			if r.Progress != nil {
				r.Progress.Finish()
			}
			return nil
		}

		internal.LogDebug("Download for video %s not ready (status=%s, %.0f%% complete), waiting %s",
			videoUID, status.Status, status.PctComplete, r.PollInterval)
		if r.Progress != nil {
			r.Progress.Update(status.PctComplete)
		}

		if err := sleepCtx(ctx, r.PollInterval); err != nil {
			return err
		}
	}

	return internal.NewReadinessTimeoutError(videoUID, attempts)
}

// downloadStatus fetches the readiness report for the video's default
// rendition, authorized with the minted token as a bearer credential
func (c *Client) downloadStatus(ctx context.Context, videoUID, token string) (*internal.DownloadStatus, error) {
	headers := map[string]string{
		"Authorization": "Bearer " + token,
	}

	var result downloadsResult
	if err := c.postResult(ctx, c.urls.Downloads(videoUID), nil, headers, &result); err != nil {
		return nil, err
	}

	if result.Default.Status == "" {
		return nil, internal.NewStreamError(0, "download status response is missing result.default.status", internal.ErrInvalidResponse).
			WithEndpoint(c.urls.Downloads(videoUID))
	}

	return &result.Default, nil
}

// sleepCtx blocks for d or until ctx is cancelled
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		// Zero interval still yields to cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
