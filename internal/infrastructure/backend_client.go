package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/AbdoElsaed/ufd/internal/domain"
)

// BackendClient talks to the extraction service's REST API. The service is an
// opaque collaborator: this client only consumes its HTTP contract.
type BackendClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewBackendClient creates a client for the configured backend.
func NewBackendClient(cfg domain.BackendConfig, logger *zap.Logger) *BackendClient {
	return &BackendClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		client:  &http.Client{},
		logger:  logger,
	}
}

// BaseURL returns the backend base URL.
func (c *BackendClient) BaseURL() string {
	return c.baseURL
}

// FetchInfo requests video metadata for a download request.
func (c *BackendClient) FetchInfo(ctx context.Context, req *domain.DownloadRequest, headers domain.AuthHeaderSet) (*domain.VideoInfo, error) {
	resp, err := c.post(ctx, "/download/info", req, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.errorFromResponse(resp)
	}

	var info domain.VideoInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode video info: %w", err)
	}
	return &info, nil
}

// StartDownload begins a streaming download. On success the caller owns the
// response and must close its body; the body is the media stream. Non-2xx
// responses are mapped to a server-class download error with a user-facing
// message.
func (c *BackendClient) StartDownload(ctx context.Context, req *domain.DownloadRequest, headers domain.AuthHeaderSet) (*http.Response, error) {
	resp, err := c.post(ctx, "/download/start", req, headers)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, domain.NewDownloadError(domain.DownloadErrServer, c.errorFromResponse(resp).Error(), nil)
	}
	return resp, nil
}

func (c *BackendClient) post(ctx context.Context, path string, body interface{}, headers domain.AuthHeaderSet) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	headers.Apply(req)

	c.logger.Debug("Backend request",
		zap.String("path", path),
		zap.Bool("authenticated", headers["Cookie"] != ""))

	return c.client.Do(req)
}

// errorFromResponse extracts the backend's error string and maps it to a
// user-facing message.
func (c *BackendClient) errorFromResponse(resp *http.Response) error {
	raw := fmt.Sprintf("Server error: %d", resp.StatusCode)
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err == nil {
		if extracted := extractErrorDetail(body); extracted != "" {
			raw = extracted
		}
	}
	return fmt.Errorf("%s", FriendlyBackendError(raw))
}

// extractErrorDetail pulls the error string out of the backend's JSON error
// shape: {"detail": "..."} or {"detail": {"error": "..."}} or {"error": "..."}.
func extractErrorDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if len(envelope.Detail) > 0 {
		var s string
		if err := json.Unmarshal(envelope.Detail, &s); err == nil {
			return s
		}
		var nested struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(envelope.Detail, &nested); err == nil && nested.Error != "" {
			return nested.Error
		}
	}
	return envelope.Error
}

// backendErrorMappings is the data-driven table mapping known backend error
// substrings to user-facing messages. Matching is in order; first match wins.
var backendErrorMappings = []struct {
	Substring string
	Message   string
}{
	{
		Substring: "Sign in to confirm you're not a bot",
		Message:   "YouTube requires sign-in for this video. Please sign in to your YouTube account in the browser first.",
	},
	{
		Substring: "This video is private",
		Message:   "This video is private and cannot be accessed.",
	},
	{
		Substring: "Video unavailable",
		Message:   "This video is unavailable or may have been removed.",
	},
	{
		Substring: "Failed to extract any player response",
		Message:   "The backend could not extract this video. The site may have changed; try again later.",
	},
}

// FriendlyBackendError maps a raw backend error string onto a user-facing
// message, falling back to the raw string when no pattern matches.
func FriendlyBackendError(raw string) string {
	for _, m := range backendErrorMappings {
		if strings.Contains(raw, m.Substring) {
			return m.Message
		}
	}
	return raw
}
