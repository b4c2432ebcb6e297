package internal

import (
	"time"
)

// Credential is the signing key pair used to mint time-limited download
// and playback tokens. Both fields come from a single key-creation call;
// Cloudflare never shows the PEM again after that.
type Credential struct {
	KeyID string
	PEM   string
}

// IsZero reports whether no credential has been configured.
func (c Credential) IsZero() bool {
	return c.KeyID == "" && c.PEM == ""
}

// Video contains the metadata Cloudflare Stream reports for one asset.
type Video struct {
	UID               string     `json:"uid"`
	Thumbnail         string     `json:"thumbnail"`
	ReadyToStream     bool       `json:"readyToStream"`
	RequireSignedURLs bool       `json:"requireSignedURLs"`
	Duration          float64    `json:"duration"`
	Size              int64      `json:"size"`
	Preview           string     `json:"preview"`
	Created           *time.Time `json:"created,omitempty"`
	Modified          *time.Time `json:"modified,omitempty"`
	Meta              VideoMeta  `json:"meta"`
	Status            VideoState `json:"status"`
}

// VideoMeta holds the user-supplied metadata attached to a video.
type VideoMeta struct {
	Name string `json:"name,omitempty"`
}

// VideoState is the processing state Cloudflare reports for an upload.
type VideoState struct {
	State           string `json:"state"`
	PctComplete     string `json:"pctComplete,omitempty"`
	ErrorReasonCode string `json:"errorReasonCode,omitempty"`
	ErrorReasonText string `json:"errorReasonText,omitempty"`
}

// SigningKey is a key pair returned by the key-creation endpoint. PEM and
// JWK are populated exactly once, at creation; listings omit them.
type SigningKey struct {
	ID      string     `json:"id"`
	PEM     string     `json:"pem,omitempty"`
	JWK     string     `json:"jwk,omitempty"`
	Created *time.Time `json:"created,omitempty"`
}

// StorageUsage reports the minutes consumed and allotted on the account's
// Stream plan.
type StorageUsage struct {
	TotalStorageMinutes      int64 `json:"totalStorageMinutes"`
	TotalStorageMinutesLimit int64 `json:"totalStorageMinutesLimit"`
}

// Remaining returns the minutes still available on the plan.
func (u StorageUsage) Remaining() int64 {
	return u.TotalStorageMinutesLimit - u.TotalStorageMinutes
}

// DownloadStatus is the readiness report for a video's default download
// rendition. Status transitions monotonically to "ready" and never
// regresses.
type DownloadStatus struct {
	URL         string  `json:"url"`
	Status      string  `json:"status"`
	PctComplete float64 `json:"percentComplete"`
}

// Ready reports whether the default rendition has finished packaging.
// Any status other than "ready" counts as not ready.
func (s DownloadStatus) Ready() bool {
	return s.Status == "ready"
}

// PullRequest describes a copy-from-URL ingestion job.
type PullRequest struct {
	SourceURL         string
	Name              string
	RequireSignedURLs bool
	WatermarkUID      string
}
