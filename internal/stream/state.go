// Package stream holds the server-side state of text generations.
package stream

import (
	"encoding/json"
	"fmt"
	"time"
)

type Status int

const (
	Pending Status = iota
	Streaming
	Complete
	Errored
)

var statusNames = map[Status]string{
	Pending:   "pending",
	Streaming: "streaming",
	Complete:  "complete",
	Errored:   "errored",
}

var statusFromName = map[string]Status{
	"pending":   Pending,
	"streaming": Streaming,
	"complete":  Complete,
	"errored":   Errored,
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var n string
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	v, ok := statusFromName[n]
	if !ok {
		return fmt.Errorf("unknown stream status %q", n)
	}
	*s = v
	return nil
}

// State is one generation. Text is the full text produced so far; it only
// ever grows, except when the producer restarts and replaces it.
type State struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Model       string     `json:"model"`
	Text        string     `json:"text"`
	Active      bool       `json:"active"` // producer is emitting right now
	Status      Status     `json:"status"`
	Tokens      int        `json:"tokens"`
	Restarts    int        `json:"restarts,omitempty"`
	StartedAt   time.Time  `json:"startedAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Clone returns a copy that can be mutated independently.
func (s *State) Clone() *State {
	c := *s
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// IsTerminal reports whether the producer has finished for good.
func (s *State) IsTerminal() bool {
	return s.Status == Complete || s.Status == Errored
}

// Append adds a token and marks the stream active.
func (s *State) Append(token string, now time.Time) {
	s.Text += token
	s.Tokens++
	s.Active = true
	s.Status = Streaming
	s.UpdatedAt = now
}

// Restart replaces the text, as when a producer regenerates its answer.
func (s *State) Restart(now time.Time) {
	s.Text = ""
	s.Tokens = 0
	s.Restarts++
	s.UpdatedAt = now
}

// Finish moves the stream to a terminal status.
func (s *State) Finish(status Status, now time.Time) {
	s.Active = false
	s.Status = status
	s.UpdatedAt = now
	s.CompletedAt = &now
}
