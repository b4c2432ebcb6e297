package utils

import (
	"fmt"
	"regexp"
	"strings"

	"streamfetch/internal"
)

// Video UIDs are opaque identifiers issued by the service. Cloudflare
// currently hands out 32-character hex strings but documents no format, so
// only reject what would corrupt a URL path.
var videoUIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateVideoUID checks that uid can be embedded in an endpoint path
func ValidateVideoUID(uid string) error {
	if uid == "" {
		return internal.NewInvalidUIDError(uid, "UID cannot be empty")
	}
	if !videoUIDPattern.MatchString(uid) {
		return internal.NewInvalidUIDError(uid, "UID contains characters the service never issues")
	}
	return nil
}

// APIURLBuilder constructs account-scoped Stream API endpoint URLs
type APIURLBuilder struct {
	base      string
	accountID string
}

// NewAPIURLBuilder creates a builder rooted at base for the given account
func NewAPIURLBuilder(base, accountID string) *APIURLBuilder {
	return &APIURLBuilder{
		base:      strings.TrimSuffix(base, "/"),
		accountID: accountID,
	}
}

// Stream returns the base stream endpoint for the account.
func (b *APIURLBuilder) Stream() string {
	return fmt.Sprintf("%s/accounts/%s/stream/", b.base, b.accountID)
}

// Video returns the endpoint for a single video
func (b *APIURLBuilder) Video(uid string) string {
	return fmt.Sprintf("%s/accounts/%s/stream/%s/", b.base, b.accountID, uid)
}

// Token returns the download-token minting endpoint for a video
func (b *APIURLBuilder) Token(uid string) string {
	return fmt.Sprintf("%s/accounts/%s/stream/%s/token", b.base, b.accountID, uid)
}

// Downloads returns the download-status endpoint for a video
func (b *APIURLBuilder) Downloads(uid string) string {
	return fmt.Sprintf("%s/accounts/%s/stream/%s/downloads", b.base, b.accountID, uid)
}

// Copy returns the pull-from-URL ingestion endpoint
func (b *APIURLBuilder) Copy() string {
	return fmt.Sprintf("%s/accounts/%s/stream/copy", b.base, b.accountID)
}

// StorageUsage returns the plan usage endpoint
func (b *APIURLBuilder) StorageUsage() string {
	return fmt.Sprintf("%s/accounts/%s/stream/storage-usage", b.base, b.accountID)
}

// Keys returns the signing-key endpoint
func (b *APIURLBuilder) Keys() string {
	return fmt.Sprintf("%s/accounts/%s/stream/keys", b.base, b.accountID)
}

// DeliveryURL builds the playable download URL for a minted token. The URL
// is constructed locally; given a token it is fully deterministic and needs
// no further round trip.
func DeliveryURL(deliveryHost, token string) string {
	return fmt.Sprintf("https://%s/%s/downloads/default.mp4", deliveryHost, token)
}

// SignURL builds the hosted playback-token signing endpoint for a video
func SignURL(utilBase, uid string) string {
	return fmt.Sprintf("%s/sign/%s", strings.TrimSuffix(utilBase, "/"), uid)
}
