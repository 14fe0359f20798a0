package ws

import (
	"github.com/agent-racer/streamtext/internal/stream"
)

type MessageType string

const (
	MsgSnapshot   MessageType = "snapshot"
	MsgDelta      MessageType = "delta"
	MsgCompletion MessageType = "completion"
	MsgError      MessageType = "error"
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Seq     uint64      `json:"seq"`
	Payload interface{} `json:"payload"`
}

type SnapshotPayload struct {
	Streams []*stream.State `json:"streams"`
}

// DeltaPayload carries the latest state of every stream that changed since
// the previous flush. Text is always the full text, never a suffix.
type DeltaPayload struct {
	Updates []*stream.State `json:"updates"`
	Removed []string        `json:"removed,omitempty"`
}

type CompletionPayload struct {
	StreamID string        `json:"streamId"`
	Status   stream.Status `json:"status"`
	Title    string        `json:"title"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// ClientRequest is what viewers send upstream.
type ClientRequest struct {
	Type  string `json:"type"` // "resync"
	Token string `json:"token,omitempty"`
}
