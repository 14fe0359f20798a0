package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agent-racer/streamtext/internal/config"
	"github.com/agent-racer/streamtext/internal/metrics"
	"github.com/agent-racer/streamtext/internal/stream"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dialTestWS creates a test HTTP server that upgrades to WebSocket and
// returns the server-side connection along with the dialed client side.
// Both are closed when the test ends.
func dialTestWS(t *testing.T) (server, peer *websocket.Conn) {
	t.Helper()

	connCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		connCh <- c
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	peer, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err, "dial")
	t.Cleanup(func() { peer.Close() })

	select {
	case server = <-connCh:
		return server, peer
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server-side WebSocket connection")
		return nil, nil
	}
}

type rawMessage struct {
	Type    MessageType     `json:"type"`
	Seq     uint64          `json:"seq"`
	Payload json.RawMessage `json:"payload"`
}

func readMessage(t *testing.T, conn *websocket.Conn) rawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err, "read message")
	var msg rawMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func testBroadcaster(t *testing.T, store *stream.Store, maxConns int, m *metrics.Collector) *Broadcaster {
	t.Helper()
	b := NewBroadcaster(store, config.BroadcastConfig{
		Throttle:         20 * time.Millisecond,
		SnapshotInterval: time.Hour,
		MaxClients:       maxConns,
	}, nil, m)
	t.Cleanup(b.Stop)
	return b
}

func TestAddClientMaxConnections(t *testing.T) {
	const maxConns = 2
	b := testBroadcaster(t, stream.NewStore(), maxConns, nil)

	for i := 0; i < maxConns; i++ {
		conn, _ := dialTestWS(t)
		_, err := b.AddClient(conn)
		require.NoError(t, err, "AddClient[%d]", i)
	}
	assert.Equal(t, maxConns, b.ClientCount())

	conn, _ := dialTestWS(t)
	_, err := b.AddClient(conn)
	if !errors.Is(err, ErrTooManyConnections) {
		t.Fatalf("AddClient over limit: err = %v, want ErrTooManyConnections", err)
	}
	assert.Equal(t, maxConns, b.ClientCount())
}

func TestRemoveClientFreesSlot(t *testing.T) {
	b := testBroadcaster(t, stream.NewStore(), 1, nil)

	conn, _ := dialTestWS(t)
	c, err := b.AddClient(conn)
	require.NoError(t, err)

	b.RemoveClient(c)
	b.RemoveClient(c) // second remove is a no-op
	assert.Equal(t, 0, b.ClientCount())

	conn2, _ := dialTestWS(t)
	_, err = b.AddClient(conn2)
	assert.NoError(t, err)
}

func TestAddClientSendsSnapshot(t *testing.T) {
	store := stream.NewStore()
	store.Update(&stream.State{ID: "a", Text: "Hello", Status: stream.Streaming})
	b := testBroadcaster(t, store, 0, nil)

	conn, peer := dialTestWS(t)
	_, err := b.AddClient(conn)
	require.NoError(t, err)

	msg := readMessage(t, peer)
	assert.Equal(t, MsgSnapshot, msg.Type)

	var snap SnapshotPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &snap))
	require.Len(t, snap.Streams, 1)
	assert.Equal(t, "Hello", snap.Streams[0].Text)
}

func TestQueueUpdateCoalescesPerStream(t *testing.T) {
	b := testBroadcaster(t, stream.NewStore(), 0, nil)
	conn, peer := dialTestWS(t)
	_, err := b.AddClient(conn)
	require.NoError(t, err)
	first := readMessage(t, peer)

	b.QueueUpdate(&stream.State{ID: "a", Text: "H"})
	b.QueueUpdate(&stream.State{ID: "b", Text: "x"})
	b.QueueUpdate(&stream.State{ID: "a", Text: "Hel"})
	b.QueueRemoval("gone")

	msg := readMessage(t, peer)
	assert.Equal(t, MsgDelta, msg.Type)
	assert.Greater(t, msg.Seq, first.Seq)

	var delta DeltaPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &delta))
	require.Len(t, delta.Updates, 2)
	assert.Equal(t, "a", delta.Updates[0].ID)
	assert.Equal(t, "Hel", delta.Updates[0].Text)
	assert.Equal(t, "b", delta.Updates[1].ID)
	assert.Equal(t, []string{"gone"}, delta.Removed)
}

func TestQueueUpdateCopiesState(t *testing.T) {
	b := testBroadcaster(t, stream.NewStore(), 0, nil)
	conn, peer := dialTestWS(t)
	_, err := b.AddClient(conn)
	require.NoError(t, err)
	readMessage(t, peer)

	st := &stream.State{ID: "a", Text: "Hel"}
	b.QueueUpdate(st)
	st.Text = "mutated after queueing"

	var delta DeltaPayload
	require.NoError(t, json.Unmarshal(readMessage(t, peer).Payload, &delta))
	assert.Equal(t, "Hel", delta.Updates[0].Text)
}

func TestQueueCompletionFlushesFirst(t *testing.T) {
	b := testBroadcaster(t, stream.NewStore(), 0, metrics.New())
	conn, peer := dialTestWS(t)
	_, err := b.AddClient(conn)
	require.NoError(t, err)
	readMessage(t, peer)

	st := &stream.State{ID: "a", Title: "demo", Text: "Hello"}
	b.QueueUpdate(st)
	st.Finish(stream.Complete, time.Now())
	b.QueueCompletion(st)

	delta := readMessage(t, peer)
	assert.Equal(t, MsgDelta, delta.Type)

	done := readMessage(t, peer)
	assert.Equal(t, MsgCompletion, done.Type)
	assert.Equal(t, delta.Seq+1, done.Seq)

	var payload CompletionPayload
	require.NoError(t, json.Unmarshal(done.Payload, &payload))
	assert.Equal(t, CompletionPayload{StreamID: "a", Status: stream.Complete, Title: "demo"}, payload)

	assert.Equal(t, 1, b.ClientCount())
}

func TestSeqIncrements(t *testing.T) {
	b := testBroadcaster(t, stream.NewStore(), 0, nil)
	first := b.seq.Load()
	b.broadcast(MsgDelta, DeltaPayload{})
	b.broadcast(MsgDelta, DeltaPayload{})
	assert.Equal(t, first+2, b.seq.Load())
}

func TestStopDisconnectsClients(t *testing.T) {
	b := testBroadcaster(t, stream.NewStore(), 0, nil)
	conn, peer := dialTestWS(t)
	_, err := b.AddClient(conn)
	require.NoError(t, err)
	readMessage(t, peer)

	b.Stop()
	b.Stop()
	assert.Equal(t, 0, b.ClientCount())

	peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = peer.ReadMessage()
	assert.Error(t, err, "peer should see the connection close")
}

func TestConcurrentBroadcastsDropSlowClientOnce(t *testing.T) {
	m := metrics.New()
	b := testBroadcaster(t, stream.NewStore(), 0, m)

	for round := 0; round < 50; round++ {
		// No write pump drains this client, so the second message overflows it.
		c := &client{b: b, send: make(chan []byte, 1)}
		b.mu.Lock()
		b.clients[c] = true
		b.mu.Unlock()

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				b.broadcast(MsgError, ErrorPayload{Message: "overflow"})
			}()
		}
		wg.Wait()

		require.Equal(t, 0, b.ClientCount(), "round %d", round)
		_, open := <-c.send
		assert.True(t, open, "the buffered message is still readable")
		_, open = <-c.send
		assert.False(t, open, "the dropped client's channel is closed")
	}
}
