package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthora/eldwatch/internal/domain/events"
)

func TestWelcomeArrivesFirstUnderBroadcastBurst(t *testing.T) {
	h := NewHub(zerolog.Nop())
	srv := httptest.NewServer(h)
	defer srv.Close()

	// flood while the client connects; the welcome must already sit in
	// the buffer before the client is visible to Broadcast
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
				h.Broadcast(events.Event{Type: events.TypeAgentStatusChanged,
					Data: map[string]any{"state": "running"}})
			}
		}
	}()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var m message
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&m))
	assert.Equal(t, "connected", m.Type)
	assert.NotEmpty(t, m.Data["client_id"])

	close(stop)
	<-done
}

func TestBroadcastDropsSlowClient(t *testing.T) {
	h := NewHub(zerolog.Nop())
	c := &client{id: "slow", send: make(chan message, 1)}
	c.send <- message{Type: "filler"}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	h.Broadcast(events.Event{Type: events.TypeFixStarted})

	assert.Equal(t, 0, h.ClientCount())
	select {
	case _, ok := <-c.send:
		assert.True(t, ok, "buffered message survives the drop")
	default:
		t.Fatal("expected the buffered message")
	}
	_, ok := <-c.send
	assert.False(t, ok, "channel closed after drop")
}
