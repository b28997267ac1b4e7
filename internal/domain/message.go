package domain

import (
	"encoding/json"
	"fmt"
)

// MessageKind tags a channel message
type MessageKind string

const (
	// UI -> background
	KindInit          MessageKind = "init"
	KindGetCurrentTab MessageKind = "getCurrentTab"
	KindGetVideoInfo  MessageKind = "getVideoInfo"
	KindDownloadVideo MessageKind = "downloadVideo"

	// background -> UI
	KindConnected      MessageKind = "connected"
	KindCurrentTab     MessageKind = "currentTab"
	KindVideoInfo      MessageKind = "videoInfo"
	KindDownloadStatus MessageKind = "downloadStatus"
	KindError          MessageKind = "error"
)

// ChannelMessage is the JSON envelope exchanged between the UI context and the
// background context over a channel. The payload shape depends on the kind.
type ChannelMessage struct {
	Kind MessageKind     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewMessage builds a message with the payload marshalled into the envelope.
func NewMessage(kind MessageKind, payload interface{}) (ChannelMessage, error) {
	msg := ChannelMessage{Kind: kind}
	if payload == nil {
		return msg, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return ChannelMessage{}, fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}
	msg.Data = data
	return msg, nil
}

// ErrorMessage builds an error reply carrying a human-readable message.
func ErrorMessage(text string) ChannelMessage {
	msg, _ := NewMessage(KindError, ErrorPayload{Error: text})
	return msg
}

// Decode unmarshals the message payload into v.
func (m ChannelMessage) Decode(v interface{}) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%s message has no payload", m.Kind)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", m.Kind, err)
	}
	return nil
}

// ConnectedStatus is the payload of a connected acknowledgment.
type ConnectedStatus struct {
	CookieAPIAvailable bool   `json:"cookieApiAvailable"`
	ActiveChannelCount int    `json:"activeChannelCount"`
	APIBaseURL         string `json:"apiBaseUrl"`
}

// TabInfo describes the currently active page.
type TabInfo struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// ErrorPayload carries a user-facing failure message.
type ErrorPayload struct {
	Error string `json:"error"`
}

// ProgressStatus is the state of a download as reported over the channel.
type ProgressStatus string

const (
	StatusStarting  ProgressStatus = "starting"
	StatusProgress  ProgressStatus = "progress"
	StatusCompleted ProgressStatus = "completed"
	StatusError     ProgressStatus = "error"
)

// Terminal reports whether no further status updates follow.
func (s ProgressStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// DownloadStatusPayload is the payload of a downloadStatus message.
type DownloadStatusPayload struct {
	Status   ProgressStatus `json:"status"`
	Progress float64        `json:"progress"`
	Filename string         `json:"filename,omitempty"`
	Error    string         `json:"error,omitempty"`
}
