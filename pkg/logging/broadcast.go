package logging

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Broadcaster is a Sink that fans every event out to connected
// WebSocket subscribers (the /v1/events tail described in SPEC_FULL.md
// §4.12), in addition to whatever else it is composed with via Multi.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[string]*subscriber
}

type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// NewBroadcaster returns an empty Broadcaster ready to accept
// subscribers via ServeHTTP.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subscribers: make(map[string]*subscriber)}
}

// Log implements Sink, pushing event as JSON to every live subscriber.
// A subscriber whose write fails is dropped.
func (b *Broadcaster) Log(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subscribers {
		sub.mu.Lock()
		err := sub.conn.WriteJSON(event)
		sub.mu.Unlock()
		if err != nil {
			sub.conn.Close()
			delete(b.subscribers, id)
		}
	}
}

// ServeHTTP upgrades the request to a WebSocket and registers it as a
// subscriber until the client disconnects.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	id := fmt.Sprintf("sub-%d", time.Now().UnixNano())
	sub := &subscriber{conn: conn}

	b.mu.Lock()
	b.subscribers[id] = sub
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.subscribers, id)
		b.mu.Unlock()
		conn.Close()
	}()

	// Drain and discard any client messages; this endpoint is
	// publish-only. Reading keeps the connection's control frames
	// (ping/close) flowing until the client hangs up.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
