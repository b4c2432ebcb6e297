package internal

import "context"

// LinkResolver turns a video UID into a playable download URL
type LinkResolver interface {
	ResolveDownloadURL(ctx context.Context, videoUID string, waitUntilReady bool) (string, error)
}

// VideoService covers the single-request video endpoint wrappers
type VideoService interface {
	GetVideo(ctx context.Context, uid string) (*Video, error)
	ListVideos(ctx context.Context) ([]Video, error)
	DeleteVideo(ctx context.Context, uid string) error
	PullFromURL(ctx context.Context, req *PullRequest) (*Video, error)
	GetStorageUsage(ctx context.Context) (*StorageUsage, error)
}

// KeyManager handles signing key creation and listing
type KeyManager interface {
	CreateSigningKey(ctx context.Context) (*SigningKey, error)
	ListSigningKeys(ctx context.Context) ([]SigningKey, error)
}

// TokenSigner produces short-lived playback tokens for signed videos
type TokenSigner interface {
	SignPlaybackToken(ctx context.Context, videoUID string) (string, error)
}

// ProgressSink receives packaging progress updates during a readiness poll.
// Implementations must tolerate out-of-order percentages, the remote
// service occasionally reports a lower value after a retry.
type ProgressSink interface {
	Update(pctComplete float64)
	Finish()
}
