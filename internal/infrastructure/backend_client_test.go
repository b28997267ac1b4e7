package infrastructure

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AbdoElsaed/ufd/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *BackendClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewBackendClient(domain.BackendConfig{BaseURL: srv.URL + "/"}, zap.NewNop())
}

func infoRequest() *domain.DownloadRequest {
	return &domain.DownloadRequest{
		URL:      "https://www.youtube.com/watch?v=abc",
		Platform: domain.PlatformYouTube,
		Format:   domain.FormatVideo,
		Quality:  domain.Quality720p,
	}
}

func TestBackendClient_FetchInfo(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/download/info", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req domain.DownloadRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, domain.PlatformYouTube, req.Platform)

		json.NewEncoder(w).Encode(domain.VideoInfo{
			Title:    "clip",
			Duration: 125,
			Formats:  []domain.VideoFormat{{Quality: "720p", Format: "mp4"}},
		})
	})

	info, err := client.FetchInfo(context.Background(), infoRequest(), nil)
	require.NoError(t, err)
	assert.Equal(t, "clip", info.Title)
	assert.Len(t, info.Formats, 1)
}

func TestBackendClient_AuthHeadersApplied(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SID=abc; HSID=def", r.Header.Get("Cookie"))
		assert.Equal(t, "https://www.youtube.com", r.Header.Get("Referer"))
		json.NewEncoder(w).Encode(domain.VideoInfo{Title: "clip"})
	})

	headers := domain.AuthHeaderSet{
		"Cookie":  "SID=abc; HSID=def",
		"Referer": "https://www.youtube.com",
	}
	_, err := client.FetchInfo(context.Background(), infoRequest(), headers)
	require.NoError(t, err)
}

func TestBackendClient_StartDownloadOwnsBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="clip.mp4"`)
		w.Write([]byte("stream"))
	})

	resp, err := client.StartDownload(context.Background(), infoRequest(), nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, `attachment; filename="clip.mp4"`, resp.Header.Get("Content-Disposition"))
}

func TestBackendClient_StartDownloadServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Video unavailable"})
	})

	_, err := client.StartDownload(context.Background(), infoRequest(), nil)
	require.Error(t, err)

	var de *domain.DownloadError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.DownloadErrServer, de.Kind)
	assert.Contains(t, err.Error(), "unavailable or may have been removed")
}

func TestBackendClient_ErrorWithoutBodyFallsBackToStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.FetchInfo(context.Background(), infoRequest(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Server error: 500")
}

func TestBackendClient_ContextCancellation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.FetchInfo(ctx, infoRequest(), nil)
	assert.Error(t, err)
}

func TestExtractErrorDetail(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"detail string", `{"detail":"boom"}`, "boom"},
		{"nested detail", `{"detail":{"error":"inner"}}`, "inner"},
		{"plain error", `{"error":"flat"}`, "flat"},
		{"nested without error field", `{"detail":{"code":7}}`, ""},
		{"not json", `<html>oops</html>`, ""},
		{"empty object", `{}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractErrorDetail([]byte(tt.body)))
		})
	}
}

func TestFriendlyBackendError(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{
			raw:  `ERROR: [youtube] abc: Sign in to confirm you're not a bot`,
			want: "YouTube requires sign-in for this video. Please sign in to your YouTube account in the browser first.",
		},
		{
			raw:  "ERROR: This video is private",
			want: "This video is private and cannot be accessed.",
		},
		{
			raw:  "Video unavailable",
			want: "This video is unavailable or may have been removed.",
		},
		{
			raw:  "ERROR: Failed to extract any player response",
			want: "The backend could not extract this video. The site may have changed; try again later.",
		},
		{
			raw:  "some totally unknown failure",
			want: "some totally unknown failure",
		},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FriendlyBackendError(tt.raw))
	}
}
