package domain

import "fmt"

// Format selects the media type to extract
type Format string

const (
	FormatVideo Format = "video"
	FormatAudio Format = "audio"
)

// Quality selects the target resolution
type Quality string

const (
	QualityHighest Quality = "highest"
	Quality1080p   Quality = "1080p"
	Quality720p    Quality = "720p"
	Quality480p    Quality = "480p"
	Quality360p    Quality = "360p"
)

// DownloadRequest is the request forwarded to the backend extraction service.
// The URL is expected to be normalized before the request is constructed;
// downstream components treat it as read-only.
type DownloadRequest struct {
	URL      string     `json:"url"`
	Platform PlatformID `json:"platform"`
	Format   Format     `json:"format"`
	Quality  Quality    `json:"quality"`
}

// Validate checks the request fields against the platform registry.
func (r *DownloadRequest) Validate() error {
	if r.URL == "" {
		return fmt.Errorf("url is required")
	}
	if _, ok := LookupPlatform(r.Platform); !ok {
		return fmt.Errorf("unsupported platform: %s", r.Platform)
	}
	if r.Format != FormatVideo && r.Format != FormatAudio {
		return fmt.Errorf("invalid format: %s", r.Format)
	}
	return nil
}

// VideoFormat describes one downloadable rendition reported by the backend.
type VideoFormat struct {
	Quality string `json:"quality"`
	Format  string `json:"format"`
	Size    string `json:"size,omitempty"`
}

// VideoInfo is the metadata returned by the backend info endpoint. It is
// fetched fresh per request and never cached.
type VideoInfo struct {
	Title     string        `json:"title"`
	Thumbnail string        `json:"thumbnail,omitempty"`
	Duration  float64       `json:"duration,omitempty"`
	Formats   []VideoFormat `json:"formats"`
}

// DurationString renders the duration as m:ss for display, or "" when the
// backend did not report one.
func (v *VideoInfo) DurationString() string {
	if v.Duration <= 0 {
		return ""
	}
	total := int(v.Duration)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// DownloadProgressEvent is one element of the finite progress stream emitted
// while a download runs. Exactly one terminal event (completed or error) ends
// the stream.
type DownloadProgressEvent struct {
	Status   ProgressStatus
	Progress float64 // 0-100, monotonic non-decreasing while Status is progress
	Filename string
	Path     string // destination on disk, set on completion
	Size     int64  // bytes written, set on completion
	Err      error
}

// Terminal reports whether this event ends the stream.
func (e DownloadProgressEvent) Terminal() bool {
	return e.Status.Terminal()
}

// StatusPayload converts the event into its wire representation.
func (e DownloadProgressEvent) StatusPayload() DownloadStatusPayload {
	p := DownloadStatusPayload{
		Status:   e.Status,
		Progress: e.Progress,
		Filename: e.Filename,
	}
	if e.Err != nil {
		p.Error = e.Err.Error()
	}
	return p
}
