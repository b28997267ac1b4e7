package app

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AbdoElsaed/ufd/internal/domain"
	"github.com/AbdoElsaed/ufd/internal/infrastructure"
)

// assumedBytesPerPercent drives the progress estimate when the backend does
// not report a total size: roughly 2% per megabyte, clamped below 100.
const assumedBytesPerPercent = 512 * 1024

const copyBufferSize = 32 * 1024

// DownloadOrchestrator issues the streaming download against the backend,
// writes the body to the downloads directory, and emits a finite progress
// stream ending in exactly one terminal event.
type DownloadOrchestrator struct {
	backend          *infrastructure.BackendClient
	dir              string
	timeout          time.Duration
	progressInterval time.Duration
	logger           *zap.Logger
}

// NewDownloadOrchestrator creates a download orchestrator
func NewDownloadOrchestrator(backend *infrastructure.BackendClient, cfg domain.DownloadConfig, logger *zap.Logger) *DownloadOrchestrator {
	return &DownloadOrchestrator{
		backend:          backend,
		dir:              cfg.Dir,
		timeout:          cfg.Timeout,
		progressInterval: cfg.ProgressInterval,
		logger:           logger,
	}
}

// Start begins the download and returns its progress stream. The stream is
// finite and not restartable: zero or more starting/progress events, then one
// completed or error event, then the channel closes. Cancel the context to
// abort the transfer.
func (o *DownloadOrchestrator) Start(ctx context.Context, req *domain.DownloadRequest, headers domain.AuthHeaderSet) <-chan domain.DownloadProgressEvent {
	events := make(chan domain.DownloadProgressEvent, 16)
	go func() {
		defer close(events)
		o.run(ctx, req, headers, events)
	}()
	return events
}

func (o *DownloadOrchestrator) run(ctx context.Context, req *domain.DownloadRequest, headers domain.AuthHeaderSet, events chan<- domain.DownloadProgressEvent) {
	events <- domain.DownloadProgressEvent{Status: domain.StatusStarting}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.backend.StartDownload(ctx, req, headers)
	if err != nil {
		events <- domain.DownloadProgressEvent{Status: domain.StatusError, Err: classifyTransportError(err)}
		return
	}
	defer resp.Body.Close()

	filename := resolveFilename(resp.Header.Get("Content-Disposition"), req.Format)

	if err := os.MkdirAll(o.dir, 0755); err != nil {
		events <- domain.DownloadProgressEvent{
			Status: domain.StatusError,
			Err:    domain.NewDownloadError(domain.DownloadErrNetwork, "failed to create downloads directory", err),
		}
		return
	}

	destPath := filepath.Join(o.dir, filename)
	dest, err := os.Create(destPath)
	if err != nil {
		events <- domain.DownloadProgressEvent{
			Status: domain.StatusError,
			Err:    domain.NewDownloadError(domain.DownloadErrNetwork, "failed to create destination file", err),
		}
		return
	}
	defer dest.Close()

	o.logger.Info("Download started",
		zap.String("url", req.URL),
		zap.String("file", destPath),
		zap.Int64("total", resp.ContentLength))

	written, err := o.copyWithProgress(resp.Body, dest, resp.ContentLength, filename, events)
	if err != nil {
		events <- domain.DownloadProgressEvent{Status: domain.StatusError, Filename: filename, Err: classifyTransportError(err)}
		return
	}

	// A zero-byte body is never success, whatever the HTTP status said.
	if written == 0 {
		os.Remove(destPath)
		events <- domain.DownloadProgressEvent{
			Status: domain.StatusError,
			Err:    domain.NewDownloadError(domain.DownloadErrEmptyBody, "received empty response from server", nil),
		}
		return
	}

	o.logger.Info("Download completed",
		zap.String("file", destPath),
		zap.Int64("size", written))

	events <- domain.DownloadProgressEvent{
		Status:   domain.StatusCompleted,
		Progress: 100,
		Filename: filename,
		Path:     destPath,
		Size:     written,
	}
}

// copyWithProgress streams the body to dest, emitting throttled progress
// events. Progress is monotonic non-decreasing and never reaches 100 here;
// only the terminal completed event claims 100.
func (o *DownloadOrchestrator) copyWithProgress(src io.Reader, dest io.Writer, total int64, filename string, events chan<- domain.DownloadProgressEvent) (int64, error) {
	buf := make([]byte, copyBufferSize)
	var written int64
	var lastPct float64
	var lastEmit time.Time

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dest.Write(buf[:n]); writeErr != nil {
				return written, writeErr
			}
			written += int64(n)

			if time.Since(lastEmit) >= o.progressInterval {
				pct := estimateProgress(written, total)
				if pct > lastPct {
					lastPct = pct
				}
				events <- domain.DownloadProgressEvent{
					Status:   domain.StatusProgress,
					Progress: lastPct,
					Filename: filename,
				}
				lastEmit = time.Now()
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

// estimateProgress computes percent complete, clamped to 99 until the
// transfer actually finishes. With an unknown total it assumes a fixed
// throughput ratio per byte loaded.
func estimateProgress(loaded, total int64) float64 {
	var pct float64
	if total > 0 {
		pct = float64(loaded) / float64(total) * 100
	} else {
		pct = float64(loaded) / assumedBytesPerPercent
	}
	if pct > 99 {
		pct = 99
	}
	return pct
}

// classifyTransportError maps a transfer failure to its download-error kind.
// Errors already typed pass through unchanged.
func classifyTransportError(err error) error {
	var de *domain.DownloadError
	if errors.As(err, &de) {
		return err
	}

	var ne net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return domain.NewDownloadError(domain.DownloadErrTimeout, "download timed out", err)
	case errors.Is(err, context.Canceled):
		return domain.NewDownloadError(domain.DownloadErrAborted, "download aborted", err)
	case errors.As(err, &ne) && ne.Timeout():
		return domain.NewDownloadError(domain.DownloadErrTimeout, "download timed out", err)
	default:
		return domain.NewDownloadError(domain.DownloadErrNetwork, "download failed", err)
	}
}

// resolveFilename extracts the filename from a Content-Disposition value,
// preferring the quoted form, then the unquoted form up to the next ";",
// then a format-based default. The result is sanitized for the filesystem.
func resolveFilename(contentDisposition string, format domain.Format) string {
	filename := ""

	if contentDisposition != "" {
		if idx := strings.Index(contentDisposition, `filename="`); idx >= 0 {
			rest := contentDisposition[idx+len(`filename="`):]
			if end := strings.Index(rest, `"`); end > 0 {
				filename = rest[:end]
			}
		}
		if filename == "" {
			if idx := strings.Index(contentDisposition, "filename="); idx >= 0 {
				rest := contentDisposition[idx+len("filename="):]
				if end := strings.Index(rest, ";"); end >= 0 {
					rest = rest[:end]
				}
				filename = strings.TrimSpace(strings.Trim(rest, `"`))
			}
		}
	}

	if filename == "" {
		filename = "download"
	}

	filename = SanitizeFilename(filename)

	if !strings.Contains(filename, ".") {
		if format == domain.FormatAudio {
			filename += ".m4a"
		} else {
			filename += ".mp4"
		}
	}
	return filename
}

// SanitizeFilename replaces characters unsafe in filenames with a hyphen.
func SanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch r {
		case '/', '\\', '?', '%', '*', ':', '|', '"', '<', '>':
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
