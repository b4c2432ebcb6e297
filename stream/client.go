package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"streamfetch/internal"
	"streamfetch/utils"
)

// Client is the Cloudflare Stream API client. All endpoint wrappers are
// single-request pass-throughs; the only multi-request workflow is the
// download-link Resolver built on top of this client.
type Client struct {
	httpClient   *utils.HTTPClient
	urls         *utils.APIURLBuilder
	authEmail    string
	authKey      string
	credential   internal.Credential
	deliveryHost string
	utilBase     string
}

// apiEnvelope is the Cloudflare v4 response wrapper
type apiEnvelope struct {
	Success  bool            `json:"success"`
	Errors   []apiError      `json:"errors"`
	Messages []apiMessage    `json:"messages"`
	Result   json.RawMessage `json:"result"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type apiMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewClient creates a Stream client from the application configuration
func NewClient(cfg *internal.Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cred, err := cfg.Credential()
	if err != nil {
		return nil, err
	}

	httpClient := utils.NewHTTPClientWithConfig(&utils.HTTPClientConfig{
		Timeout:  time.Duration(cfg.TimeoutSeconds) * time.Second,
		ProxyURL: cfg.ProxyURL,
	})

	return &Client{
		httpClient:   httpClient,
		urls:         utils.NewAPIURLBuilder(cfg.APIBase, cfg.AccountID),
		authEmail:    cfg.AuthEmail,
		authKey:      cfg.AuthKey,
		credential:   cred,
		deliveryHost: cfg.DeliveryHost,
		utilBase:     cfg.UtilBase,
	}, nil
}

// NewClientWithHTTP creates a client with a custom HTTP client
func NewClientWithHTTP(cfg *internal.Config, httpClient *utils.HTTPClient) (*Client, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	client.httpClient = httpClient
	return client, nil
}

// Credential returns the configured signing credential
func (c *Client) Credential() internal.Credential {
	return c.credential
}

// DeliveryHost returns the host delivery URLs are built on
func (c *Client) DeliveryHost() string {
	return c.deliveryHost
}

// authHeaders builds the account-scoped key headers sent on every API call
func (c *Client) authHeaders() map[string]string {
	return map[string]string{
		"X-Auth-Email": c.authEmail,
		"X-Auth-Key":   c.authKey,
		"Content-Type": "application/json",
	}
}

// getResult performs a GET and decodes the envelope result into out
func (c *Client) getResult(ctx context.Context, url string, out interface{}) error {
	resp, err := c.httpClient.Get(ctx, url, c.authHeaders())
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", url, err)
	}

	return c.decodeEnvelope(resp, url, out)
}

// postResult performs a JSON POST and decodes the envelope result into out
func (c *Client) postResult(ctx context.Context, url string, body interface{}, extraHeaders map[string]string, out interface{}) error {
	headers := c.authHeaders()
	for k, v := range extraHeaders {
		headers[k] = v
	}

	resp, err := c.httpClient.PostJSON(ctx, url, body, headers)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", url, err)
	}

	return c.decodeEnvelope(resp, url, out)
}

// decodeEnvelope reads a response, surfaces remote rejections as typed
// errors and unmarshals the result field into out. A missing or malformed
// result is a hard failure, the response shape is not patched up
// defensively.
func (c *Client) decodeEnvelope(resp *http.Response, url string, out interface{}) error {
	body, err := utils.ReadBody(resp)
	if err != nil {
		return err
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return internal.NewStreamError(resp.StatusCode, "failed to parse API response", internal.ErrInvalidResponse).
			WithEndpoint(url).
			WithContext("error", err.Error())
	}

	if resp.StatusCode >= 400 || !envelope.Success {
		return c.handleAPIError(resp.StatusCode, url, envelope.Errors)
	}

	if out == nil {
		return nil
	}

	if len(envelope.Result) == 0 {
		return internal.NewStreamError(resp.StatusCode, "response is missing the result field", internal.ErrInvalidResponse).
			WithEndpoint(url)
	}

	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return internal.NewStreamError(resp.StatusCode, "failed to parse result field", internal.ErrInvalidResponse).
			WithEndpoint(url).
			WithContext("error", err.Error())
	}

	return nil
}

// handleAPIError maps a remote rejection to a typed StreamError. The first
// envelope error wins; Cloudflare reports at most one for these endpoints.
func (c *Client) handleAPIError(statusCode int, url string, apiErrors []apiError) error {
	code := statusCode
	message := http.StatusText(statusCode)
	if len(apiErrors) > 0 {
		code = apiErrors[0].Code
		message = apiErrors[0].Message
	}

	var streamErr *internal.StreamError
	switch {
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		// 403 is also what token minting returns for an expiry past the
		// 24 hour ceiling
		streamErr = internal.NewAuthFailedError(code, message)
	case statusCode == http.StatusNotFound:
		streamErr = internal.NewStreamError(code, message, internal.ErrVideoNotFound)
	case statusCode == http.StatusTooManyRequests:
		streamErr = internal.NewStreamError(code, message, internal.ErrRateLimit)
	case statusCode == http.StatusPaymentRequired:
		streamErr = internal.NewStreamError(code, message, internal.ErrQuotaExceeded)
	case statusCode >= 500:
		streamErr = internal.NewStreamError(code, message, internal.ErrNetworkTimeout)
	default:
		streamErr = internal.NewStreamError(code, message, internal.ErrInvalidResponse)
	}

	return streamErr.WithEndpoint(url).WithContext("status", statusCode)
}
