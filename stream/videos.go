package stream

import (
	"context"
	"fmt"

	"streamfetch/internal"
	"streamfetch/utils"
)

// copyRequest is the body for the pull-from-URL ingestion endpoint
type copyRequest struct {
	URL               string             `json:"url"`
	RequireSignedURLs bool               `json:"requireSignedURLs"`
	Meta              internal.VideoMeta `json:"meta"`
	Watermark         *watermarkRef      `json:"watermark,omitempty"`
}

type watermarkRef struct {
	UID string `json:"uid"`
}

// GetVideo returns the metadata for a single video
func (c *Client) GetVideo(ctx context.Context, uid string) (*internal.Video, error) {
	if err := utils.ValidateVideoUID(uid); err != nil {
		return nil, err
	}

	var video internal.Video
	if err := c.getResult(ctx, c.urls.Video(uid), &video); err != nil {
		return nil, fmt.Errorf("failed to get video %s: %w", uid, err)
	}

	return &video, nil
}

// ListVideos returns the account's videos. The API caps a single listing
// at 1000 entries.
func (c *Client) ListVideos(ctx context.Context) ([]internal.Video, error) {
	var videos []internal.Video
	if err := c.getResult(ctx, c.urls.Stream(), &videos); err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}

	return videos, nil
}

// DeleteVideo removes a video from the account
func (c *Client) DeleteVideo(ctx context.Context, uid string) error {
	if err := utils.ValidateVideoUID(uid); err != nil {
		return err
	}

	resp, err := c.httpClient.Delete(ctx, c.urls.Video(uid), c.authHeaders())
	if err != nil {
		return fmt.Errorf("failed to delete video %s: %w", uid, err)
	}

	// Deletion reports success via the status code alone
	if _, err := utils.ReadBody(resp); err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		return c.handleAPIError(resp.StatusCode, c.urls.Video(uid), nil)
	}

	internal.LogInfo("Deleted video %s", uid)
	return nil
}

// PullFromURL tells Stream to ingest a video from a publicly reachable
// URL. The returned video starts in the "downloading" state; its UID is
// what callers store.
func (c *Client) PullFromURL(ctx context.Context, req *internal.PullRequest) (*internal.Video, error) {
	if req == nil || req.SourceURL == "" {
		return nil, internal.NewValidationError("source_url", "source URL is required").
			WithSuggestion("Provide a publicly reachable http(s) URL to ingest from")
	}

	body := &copyRequest{
		URL:               req.SourceURL,
		RequireSignedURLs: req.RequireSignedURLs,
		Meta:              internal.VideoMeta{Name: req.Name},
	}
	if req.WatermarkUID != "" {
		body.Watermark = &watermarkRef{UID: req.WatermarkUID}
	}

	var video internal.Video
	if err := c.postResult(ctx, c.urls.Copy(), body, nil, &video); err != nil {
		return nil, fmt.Errorf("failed to pull from %s: %w", req.SourceURL, err)
	}

	internal.LogInfo("Ingestion started for %q, new video UID %s", req.Name, video.UID)
	return &video, nil
}

// GetStorageUsage returns the minutes consumed and allotted on the
// account's plan
func (c *Client) GetStorageUsage(ctx context.Context) (*internal.StorageUsage, error) {
	var usage internal.StorageUsage
	if err := c.getResult(ctx, c.urls.StorageUsage(), &usage); err != nil {
		return nil, fmt.Errorf("failed to get storage usage: %w", err)
	}

	return &usage, nil
}
