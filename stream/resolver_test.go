package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"streamfetch/internal"
)

const testAccountID = "acct123"

// fakeStreamAPI stands in for the token-minting and download-status
// endpoints of the remote service
type fakeStreamAPI struct {
	mutex sync.Mutex

	token       string
	tokenStatus int
	tokenBodies []map[string]interface{}

	// statuses are served in order; the last one repeats
	statuses       []string
	statusHTTPCode int
	statusRequests int
	bearerSeen     []string
}

func newFakeStreamAPI(token string, statuses ...string) *fakeStreamAPI {
	return &fakeStreamAPI{
		token:       token,
		tokenStatus: http.StatusOK,
		statuses:    statuses,
	}
}

func (f *fakeStreamAPI) handler(t *testing.T) http.Handler {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc(fmt.Sprintf("POST /accounts/%s/stream/{uid}/token", testAccountID), func(w http.ResponseWriter, r *http.Request) {
		f.mutex.Lock()
		defer f.mutex.Unlock()

		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("token request body did not decode: %v", err)
		}
		f.tokenBodies = append(f.tokenBodies, body)

		if f.tokenStatus != http.StatusOK {
			w.WriteHeader(f.tokenStatus)
			fmt.Fprintf(w, `{"success":false,"errors":[{"code":10000,"message":"authentication error"}],"result":null}`)
			return
		}

		fmt.Fprintf(w, `{"success":true,"errors":[],"result":{"token":%q}}`, f.token)
	})

	mux.HandleFunc(fmt.Sprintf("POST /accounts/%s/stream/{uid}/downloads", testAccountID), func(w http.ResponseWriter, r *http.Request) {
		f.mutex.Lock()
		defer f.mutex.Unlock()

		f.bearerSeen = append(f.bearerSeen, r.Header.Get("Authorization"))

		if f.statusHTTPCode != 0 {
			w.WriteHeader(f.statusHTTPCode)
			fmt.Fprintf(w, `{"success":false,"errors":[{"code":10001,"message":"internal error"}],"result":null}`)
			f.statusRequests++
			return
		}

		idx := f.statusRequests
		if idx >= len(f.statuses) {
			idx = len(f.statuses) - 1
		}
		f.statusRequests++

		pct := float64(f.statusRequests) * 10
		fmt.Fprintf(w, `{"success":true,"errors":[],"result":{"default":{"status":%q,"percentComplete":%f,"url":""}}}`, f.statuses[idx], pct)
	})

	return mux
}

func (f *fakeStreamAPI) requests() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.statusRequests
}

func testConfig(apiBase string) *internal.Config {
	return &internal.Config{
		AccountID:      testAccountID,
		AuthEmail:      "dev@example.com",
		AuthKey:        "test-auth-key",
		SigningKeyID:   "key1",
		PEM:            "test-pem",
		APIBase:        apiBase,
		UtilBase:       "https://util.cloudflarestream.com",
		DeliveryHost:   "videodelivery.net",
		TimeoutSeconds: 30,
		LogLevel:       "error",
	}
}

func newTestResolver(t *testing.T, api *fakeStreamAPI) (*Resolver, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(api.handler(t))
	t.Cleanup(server.Close)

	client, err := NewClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	resolver := NewResolver(client)
	resolver.PollInterval = 0 // no wall-clock sleeps in tests
	return resolver, server
}

func TestResolver_NoWaitReturnsURLBeforeAnyStatusCheck(t *testing.T) {
	api := newFakeStreamAPI("tok1", "inprogress")
	resolver, _ := newTestResolver(t, api)

	url, err := resolver.ResolveDownloadURL(context.Background(), "abc123", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "https://videodelivery.net/tok1/downloads/default.mp4"
	if url != want {
		t.Errorf("url = %q, want %q", url, want)
	}

	if got := api.requests(); got != 0 {
		t.Errorf("status requests = %d, want 0", got)
	}
}

func TestResolver_WaitReturnsAfterReady(t *testing.T) {
	tests := []struct {
		name         string
		statuses     []string
		wantRequests int
	}{
		{
			name:         "ready_on_first_check",
			statuses:     []string{"ready"},
			wantRequests: 1,
		},
		{
			name:         "ready_on_third_check",
			statuses:     []string{"inprogress", "inprogress", "ready"},
			wantRequests: 3,
		},
		{
			name:         "ready_on_last_check",
			statuses:     []string{"inprogress", "inprogress", "inprogress", "inprogress", "ready"},
			wantRequests: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeStreamAPI("tok1", tt.statuses...)
			resolver, _ := newTestResolver(t, api)

			url, err := resolver.ResolveDownloadURL(context.Background(), "abc123", true)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			want := "https://videodelivery.net/tok1/downloads/default.mp4"
			if url != want {
				t.Errorf("url = %q, want %q", url, want)
			}

			if got := api.requests(); got != tt.wantRequests {
				t.Errorf("status requests = %d, want %d", got, tt.wantRequests)
			}
		})
	}
}

func TestResolver_TimeoutAfterExactAttempts(t *testing.T) {
	api := newFakeStreamAPI("tok1", "inprogress")
	resolver, _ := newTestResolver(t, api)

	url, err := resolver.ResolveDownloadURL(context.Background(), "abc123", true)
	if err == nil {
		t.Fatal("expected a readiness timeout, got none")
	}
	if url != "" {
		t.Errorf("url = %q, want empty on timeout", url)
	}

	if !internal.IsReadinessTimeout(err) {
		t.Errorf("IsReadinessTimeout(%v) = false, want true", err)
	}

	if got := api.requests(); got != DefaultPollAttempts {
		t.Errorf("status requests = %d, want %d", got, DefaultPollAttempts)
	}
}

func TestResolver_PollFailureIsNotTimeout(t *testing.T) {
	api := newFakeStreamAPI("tok1", "inprogress")
	api.statusHTTPCode = http.StatusInternalServerError
	resolver, _ := newTestResolver(t, api)

	_, err := resolver.ResolveDownloadURL(context.Background(), "abc123", true)
	if err == nil {
		t.Fatal("expected an error from the failed poll")
	}

	if internal.IsReadinessTimeout(err) {
		t.Errorf("a failed poll request must not be reported as a readiness timeout: %v", err)
	}

	// The failure surfaces from the first poll, no retries
	if got := api.requests(); got != 1 {
		t.Errorf("status requests = %d, want 1", got)
	}
}

func TestResolver_TokenExpiryIsRequestTimePlus24h(t *testing.T) {
	api := newFakeStreamAPI("tok1", "ready")
	resolver, _ := newTestResolver(t, api)

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	resolver.now = func() time.Time { return at }

	if _, err := resolver.ResolveDownloadURL(context.Background(), "abc123", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(api.tokenBodies) != 1 {
		t.Fatalf("token requests = %d, want 1", len(api.tokenBodies))
	}

	body := api.tokenBodies[0]
	wantExp := float64(at.Add(24 * time.Hour).Unix())
	if got := body["exp"]; got != wantExp {
		t.Errorf("exp = %v, want %v", got, wantExp)
	}
	if got := body["id"]; got != "key1" {
		t.Errorf("id = %v, want key1", got)
	}
	if got := body["pem"]; got != "test-pem" {
		t.Errorf("pem = %v, want test-pem", got)
	}
	if got := body["downloadable"]; got != true {
		t.Errorf("downloadable = %v, want true", got)
	}
}

func TestResolver_StatusRequestsCarryBearerToken(t *testing.T) {
	api := newFakeStreamAPI("tok42", "inprogress", "ready")
	resolver, _ := newTestResolver(t, api)

	if _, err := resolver.ResolveDownloadURL(context.Background(), "abc123", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, auth := range api.bearerSeen {
		if auth != "Bearer tok42" {
			t.Errorf("poll %d Authorization = %q, want %q", i+1, auth, "Bearer tok42")
		}
	}
}

func TestResolver_MintFailurePropagatesAuthError(t *testing.T) {
	api := newFakeStreamAPI("tok1", "ready")
	api.tokenStatus = http.StatusForbidden
	resolver, _ := newTestResolver(t, api)

	_, err := resolver.ResolveDownloadURL(context.Background(), "abc123", true)
	if err == nil {
		t.Fatal("expected an error from the rejected mint")
	}

	var streamErr *internal.StreamError
	if !errors.As(err, &streamErr) {
		t.Fatalf("expected a StreamError, got %T: %v", err, err)
	}
	if streamErr.Type != internal.ErrAuthFailed {
		t.Errorf("error type = %s, want AuthFailed", streamErr.Type)
	}
	if streamErr.Code != 10000 {
		t.Errorf("error code = %d, want the remote code 10000", streamErr.Code)
	}

	if got := api.requests(); got != 0 {
		t.Errorf("status requests = %d, want 0 after failed mint", got)
	}
}

func TestResolver_EmptyTokenIsInvalidResponse(t *testing.T) {
	api := newFakeStreamAPI("", "ready")
	resolver, _ := newTestResolver(t, api)

	_, err := resolver.ResolveDownloadURL(context.Background(), "abc123", false)
	if err == nil {
		t.Fatal("expected an error for the empty token")
	}

	var streamErr *internal.StreamError
	if !errors.As(err, &streamErr) || streamErr.Type != internal.ErrInvalidResponse {
		t.Errorf("expected InvalidResponse, got %v", err)
	}
}

func TestResolver_MissingStatusFieldIsHardFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /accounts/acct123/stream/abc123/token", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":true,"errors":[],"result":{"token":"tok1"}}`)
	})
	mux.HandleFunc("POST /accounts/acct123/stream/abc123/downloads", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":true,"errors":[],"result":{"default":{}}}`)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := NewClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	resolver := NewResolver(client)
	resolver.PollInterval = 0

	_, err = resolver.ResolveDownloadURL(context.Background(), "abc123", true)
	if err == nil {
		t.Fatal("expected an error for the missing status field")
	}
	if internal.IsReadinessTimeout(err) {
		t.Errorf("shape failure must not look like a timeout: %v", err)
	}
}

func TestResolver_ContextCancellationStopsTheWait(t *testing.T) {
	api := newFakeStreamAPI("tok1", "inprogress")
	resolver, _ := newTestResolver(t, api)
	resolver.PollInterval = time.Hour // cancellation must cut this short

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		// First poll happens immediately; cancel during the sleep
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	done := make(chan error, 1)
	go func() {
		_, err := resolver.ResolveDownloadURL(ctx, "abc123", true)
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("resolver did not observe cancellation")
	}
}

func TestResolver_InvalidUID(t *testing.T) {
	api := newFakeStreamAPI("tok1", "ready")
	resolver, _ := newTestResolver(t, api)

	tests := []string{"", "has/slash", "has space"}
	for _, uid := range tests {
		if _, err := resolver.ResolveDownloadURL(context.Background(), uid, false); err == nil {
			t.Errorf("uid %q: expected a validation error", uid)
		}
	}
}

func TestResolver_MissingCredential(t *testing.T) {
	api := newFakeStreamAPI("tok1", "ready")
	server := httptest.NewServer(api.handler(t))
	t.Cleanup(server.Close)

	cfg := testConfig(server.URL)
	cfg.SigningKeyID = ""
	cfg.PEM = ""

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	_, err = NewResolver(client).ResolveDownloadURL(context.Background(), "abc123", false)
	if err == nil {
		t.Fatal("expected an error without a signing credential")
	}

	var streamErr *internal.StreamError
	if !errors.As(err, &streamErr) || streamErr.Type != internal.ErrSigningKeyRequired {
		t.Errorf("expected SigningKeyRequired, got %v", err)
	}
}

func TestResolver_ProgressSinkReceivesUpdates(t *testing.T) {
	api := newFakeStreamAPI("tok1", "inprogress", "inprogress", "ready")
	resolver, _ := newTestResolver(t, api)

	sink := &recordingSink{}
	resolver.Progress = sink

	if _, err := resolver.ResolveDownloadURL(context.Background(), "abc123", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sink.updates) != 2 {
		t.Errorf("progress updates = %d, want 2 (one per not-ready poll)", len(sink.updates))
	}
	if !sink.finished {
		t.Error("progress sink was not finished on ready")
	}
}

type recordingSink struct {
	updates  []float64
	finished bool
}

func (r *recordingSink) Update(pct float64) { r.updates = append(r.updates, pct) }
func (r *recordingSink) Finish()            { r.finished = true }
