// Package client provides WebSocket and HTTP clients for the streamtext
// server. Types mirror the server wire protocol without importing server
// packages.
package client

import (
	"encoding/json"
	"time"
)

// MessageType identifies the kind of WebSocket message.
type MessageType string

const (
	MsgSnapshot   MessageType = "snapshot"
	MsgDelta      MessageType = "delta"
	MsgCompletion MessageType = "completion"
	MsgError      MessageType = "error"
)

// WSMessage is the envelope for all WebSocket messages.
type WSMessage struct {
	Type    MessageType     `json:"type"`
	Seq     uint64          `json:"seq"`
	Payload json.RawMessage `json:"payload"`
}

// Status is a stream's lifecycle stage.
type Status string

const (
	StatusPending   Status = "pending"
	StatusStreaming Status = "streaming"
	StatusComplete  Status = "complete"
	StatusErrored   Status = "errored"
)

// IsTerminal reports whether the stream has finished.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusErrored
}

// StreamState mirrors the server's stream.State.
type StreamState struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Model       string     `json:"model"`
	Text        string     `json:"text"`
	Active      bool       `json:"active"`
	Status      Status     `json:"status"`
	Tokens      int        `json:"tokens"`
	Restarts    int        `json:"restarts,omitempty"`
	StartedAt   time.Time  `json:"startedAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type SnapshotPayload struct {
	Streams []StreamState `json:"streams"`
}

type DeltaPayload struct {
	Updates []StreamState `json:"updates"`
	Removed []string      `json:"removed,omitempty"`
}

type CompletionPayload struct {
	StreamID string `json:"streamId"`
	Status   Status `json:"status"`
	Title    string `json:"title"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
