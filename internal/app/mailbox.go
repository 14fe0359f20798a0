package app

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// batchMsg carries every message posted since the previous delivery.
type batchMsg []tea.Msg

// mailbox collects messages posted from timer goroutines and from inside
// Update itself. Posting never blocks.
type mailbox struct {
	mu     sync.Mutex
	queue  []tea.Msg
	signal chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1)}
}

func (b *mailbox) post(msg tea.Msg) {
	b.mu.Lock()
	b.queue = append(b.queue, msg)
	b.mu.Unlock()
	select {
	case b.signal <- struct{}{}:
	default:
	}
}

func (b *mailbox) drain() []tea.Msg {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.queue
	b.queue = nil
	return out
}

// wait returns a command that blocks until something is posted, then
// delivers everything queued as one batchMsg.
func (b *mailbox) wait(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case <-b.signal:
		}
		return batchMsg(b.drain())
	}
}
