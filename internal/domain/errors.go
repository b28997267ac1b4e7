package domain

import "errors"

// DownloadErrorKind classes download-transport failures so callers can react
// to the category without string matching.
type DownloadErrorKind string

const (
	DownloadErrNetwork   DownloadErrorKind = "network"
	DownloadErrTimeout   DownloadErrorKind = "timeout"
	DownloadErrAborted   DownloadErrorKind = "abort"
	DownloadErrServer    DownloadErrorKind = "server"
	DownloadErrEmptyBody DownloadErrorKind = "empty-body"
)

// DownloadError is a typed download-transport failure.
type DownloadError struct {
	Kind    DownloadErrorKind
	Message string
	Err     error
}

func (e *DownloadError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// NewDownloadError wraps err as a download-transport failure of the given kind.
func NewDownloadError(kind DownloadErrorKind, message string, err error) *DownloadError {
	return &DownloadError{Kind: kind, Message: message, Err: err}
}

// DownloadErrorIs reports whether err is a DownloadError of the given kind.
func DownloadErrorIs(err error, kind DownloadErrorKind) bool {
	var de *DownloadError
	return errors.As(err, &de) && de.Kind == kind
}

// ErrDownloadInFlight rejects a second download request on a channel before
// the previous one reached a terminal status.
var ErrDownloadInFlight = errors.New("a download is already in progress on this channel")

// ErrConnectTimeout is returned when the background context does not
// acknowledge a connection attempt within the configured timeout.
var ErrConnectTimeout = errors.New("connection timeout")

// ErrMaxReconnects is surfaced after automatic reconnection gives up; a
// manual reconnect is required from that point on.
var ErrMaxReconnects = errors.New("max reconnection attempts reached")

// ErrNotConnected is returned when sending on a channel that is not open.
var ErrNotConnected = errors.New("not connected")
