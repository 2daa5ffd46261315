package audit

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sasha-s/go-deadlock"

	"andycoin/andycoin"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = pongWait / 2

	// per-subscriber backlog before events are dropped for that subscriber
	subscriberBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub streams audit events to websocket subscribers. A slow subscriber loses events, it
// never slows the ledger down.
type Hub struct {
	mutex       *deadlock.Mutex
	subscribers map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{
		mutex:       &deadlock.Mutex{},
		subscribers: make(map[chan []byte]struct{}),
	}
}

func (h *Hub) Record(e Event) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if len(h.subscribers) == 0 {
		return
	}
	b, err := json.Marshal(e)
	if err != nil {
		andycoin.LogCLI(err.Error(), 2)
		return
	}
	for sub := range h.subscribers {
		select {
		case sub <- b:
		default:
		}
	}
}

func (h *Hub) Subscribe() chan []byte {
	sub := make(chan []byte, subscriberBuffer)
	h.mutex.Lock()
	h.subscribers[sub] = struct{}{}
	h.mutex.Unlock()
	return sub
}

func (h *Hub) Unsubscribe(sub chan []byte) {
	h.mutex.Lock()
	delete(h.subscribers, sub)
	h.mutex.Unlock()
}

func (h *Hub) Subscribers() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.subscribers)
}

// ServeHTTP upgrades the connection and writes every audit event to it until the peer goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		andycoin.LogCLI("failed to upgrade websocket", 3)
		return
	}
	sub := h.Subscribe()
	gone := make(chan struct{})

	// reader: we only care about pongs and the close frame
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					andycoin.LogCLI("unexpected close error from "+r.RemoteAddr, 3)
				}
				return
			}
		}
	}()

	// writer
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer func() {
			ticker.Stop()
			h.Unsubscribe(sub)
			conn.Close()
		}()
		for {
			select {
			case <-gone:
				return
			case b := <-sub:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					andycoin.LogCLI("couldn't ping, exterminating socket", 3)
					return
				}
			}
		}
	}()
}
