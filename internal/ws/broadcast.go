package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agent-racer/streamtext/internal/config"
	"github.com/agent-racer/streamtext/internal/metrics"
	"github.com/agent-racer/streamtext/internal/stream"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrTooManyConnections is returned by AddClient when the client limit is
// reached.
var ErrTooManyConnections = errors.New("too many websocket connections")

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
)

type client struct {
	conn      *websocket.Conn
	b         *Broadcaster
	send      chan []byte
	closeOnce sync.Once
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.b.RemoveClient(c)
			return
		}
	}
}

func (c *client) remoteAddr() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

func (c *client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

type Broadcaster struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	maxConns int

	store    *stream.Store
	throttle time.Duration
	logger   *zap.Logger
	metrics  *metrics.Collector
	seq      atomic.Uint64

	flushMu        sync.Mutex
	pendingUpdates map[string]*stream.State
	pendingOrder   []string
	pendingRemoved []string
	flushTimer     *time.Timer

	snapshotTicker *time.Ticker
	done           chan struct{}
	stopOnce       sync.Once
}

// NewBroadcaster starts the periodic snapshot loop. Call Stop to end it.
func NewBroadcaster(store *stream.Store, cfg config.BroadcastConfig, logger *zap.Logger, m *metrics.Collector) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Broadcaster{
		clients:        make(map[*client]bool),
		maxConns:       cfg.MaxClients,
		store:          store,
		throttle:       cfg.Throttle,
		logger:         logger.With(zap.String("component", "broadcaster")),
		metrics:        m,
		pendingUpdates: make(map[string]*stream.State),
		snapshotTicker: time.NewTicker(cfg.SnapshotInterval),
		done:           make(chan struct{}),
	}
	go b.snapshotLoop()
	return b
}

// AddClient registers conn and sends it a full snapshot.
func (b *Broadcaster) AddClient(conn *websocket.Conn) (*client, error) {
	c := &client{
		conn: conn,
		b:    b,
		send: make(chan []byte, sendBuffer),
	}

	b.mu.Lock()
	if b.maxConns > 0 && len(b.clients) >= b.maxConns {
		b.mu.Unlock()
		return nil, ErrTooManyConnections
	}
	b.clients[c] = true
	n := len(b.clients)
	b.mu.Unlock()

	b.metrics.SetClients(n)
	go c.writePump()
	b.SendSnapshot(c)
	return c, nil
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	_, ok := b.clients[c]
	delete(b.clients, c)
	n := len(b.clients)
	b.mu.Unlock()

	if ok {
		c.close()
		b.metrics.SetClients(n)
	}
}

// SendSnapshot sends the full stream list to one client. Used on connect
// and when the client asks to resync.
func (b *Broadcaster) SendSnapshot(c *client) {
	data, err := b.encode(MsgSnapshot, SnapshotPayload{Streams: b.store.GetAll()})
	if err != nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
		// Client too slow, drop the snapshot; the next periodic one catches up.
	}
}

// QueueUpdate schedules states for the next delta flush. Several updates
// of the same stream within one throttle window collapse into the latest.
func (b *Broadcaster) QueueUpdate(states ...*stream.State) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	for _, st := range states {
		if _, seen := b.pendingUpdates[st.ID]; !seen {
			b.pendingOrder = append(b.pendingOrder, st.ID)
		}
		b.pendingUpdates[st.ID] = st.Clone()
	}
	b.armFlush()
}

func (b *Broadcaster) QueueRemoval(ids ...string) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.pendingRemoved = append(b.pendingRemoved, ids...)
	b.armFlush()
}

// armFlush starts the flush timer if none is pending. Caller holds flushMu.
func (b *Broadcaster) armFlush() {
	if b.flushTimer == nil {
		b.flushTimer = time.AfterFunc(b.throttle, b.flush)
	}
}

// QueueCompletion flushes pending deltas so the final text goes out first,
// then announces the terminal status.
func (b *Broadcaster) QueueCompletion(st *stream.State) {
	b.flush()
	b.broadcast(MsgCompletion, CompletionPayload{
		StreamID: st.ID,
		Status:   st.Status,
		Title:    st.Title,
	})
}

func (b *Broadcaster) flush() {
	b.flushMu.Lock()
	updates := make([]*stream.State, 0, len(b.pendingOrder))
	for _, id := range b.pendingOrder {
		updates = append(updates, b.pendingUpdates[id])
	}
	removed := b.pendingRemoved
	b.pendingUpdates = make(map[string]*stream.State)
	b.pendingOrder = nil
	b.pendingRemoved = nil
	if b.flushTimer != nil {
		b.flushTimer.Stop()
		b.flushTimer = nil
	}
	b.flushMu.Unlock()

	if len(updates) == 0 && len(removed) == 0 {
		return
	}

	b.broadcast(MsgDelta, DeltaPayload{
		Updates: updates,
		Removed: removed,
	})
}

func (b *Broadcaster) snapshotLoop() {
	for {
		select {
		case <-b.done:
			return
		case <-b.snapshotTicker.C:
			b.broadcast(MsgSnapshot, SnapshotPayload{Streams: b.store.GetAll()})
			b.metrics.SetActiveStreams(b.store.ActiveCount())
		}
	}
}

func (b *Broadcaster) encode(t MessageType, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(WSMessage{
		Type:    t,
		Seq:     b.seq.Add(1),
		Payload: payload,
	})
	if err != nil {
		b.logger.Error("marshal message", zap.String("type", string(t)), zap.Error(err))
	}
	return data, err
}

func (b *Broadcaster) broadcast(t MessageType, payload interface{}) {
	data, err := b.encode(t, payload)
	if err != nil {
		return
	}
	b.metrics.MessageBroadcast(string(t))

	// Sends happen under the read lock: a client's channel is only closed
	// after it has left the map, which needs the write lock.
	var slow []*client
	b.mu.RLock()
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range slow {
		b.logger.Warn("ws client too slow, disconnecting", zap.String("remote", c.remoteAddr()))
		b.metrics.ClientDropped()
		b.RemoveClient(c)
	}
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Stop ends the snapshot loop and disconnects every client.
func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() {
		b.snapshotTicker.Stop()
		close(b.done)

		b.flushMu.Lock()
		if b.flushTimer != nil {
			b.flushTimer.Stop()
			b.flushTimer = nil
		}
		b.flushMu.Unlock()

		b.mu.Lock()
		for c := range b.clients {
			delete(b.clients, c)
			c.close()
		}
		b.mu.Unlock()
		b.metrics.SetClients(0)
	})
}
