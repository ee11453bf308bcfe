package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/itemgrid/itemgrid/internal/app/events"
	"github.com/itemgrid/itemgrid/internal/app/metrics"
)

const (
	watchWriteTimeout = 10 * time.Second
	watchPingInterval = 30 * time.Second
	watchPongTimeout  = 60 * time.Second
	watchSendBuffer   = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// watchHub fans bus events out to connected WebSocket clients. All registry
// mutation happens on the run goroutine, so a peer whose send buffer fills is
// dropped without stalling the broadcast path.
type watchHub struct {
	register   chan *watchConn
	unregister chan *watchConn
	broadcast  chan events.Event
	conns      map[*watchConn]struct{}
}

type watchConn struct {
	conn *websocket.Conn
	send chan events.Event
}

func newWatchHub(bus *events.Bus) *watchHub {
	h := &watchHub{
		register:   make(chan *watchConn),
		unregister: make(chan *watchConn),
		broadcast:  make(chan events.Event, 256),
		conns:      make(map[*watchConn]struct{}),
	}
	go h.run()
	bus.Subscribe(func(event events.Event) {
		select {
		case h.broadcast <- event:
		default:
			// Watch delivery lags; the ring behind /items/events still has
			// the full recent history.
		}
	})
	return h
}

func (h *watchHub) run() {
	for {
		select {
		case wc := <-h.register:
			h.conns[wc] = struct{}{}
			metrics.WatchSessionOpened()

		case wc := <-h.unregister:
			h.drop(wc)

		case event := <-h.broadcast:
			for wc := range h.conns {
				select {
				case wc.send <- event:
				default:
					h.drop(wc)
				}
			}
		}
	}
}

// drop is only called from the run goroutine.
func (h *watchHub) drop(wc *watchConn) {
	if _, ok := h.conns[wc]; !ok {
		return
	}
	delete(h.conns, wc)
	close(wc.send)
	metrics.WatchSessionClosed()
}

func (h *watchHub) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an error status.
		return
	}

	wc := &watchConn{conn: conn, send: make(chan events.Event, watchSendBuffer)}
	h.register <- wc

	go wc.writeLoop()
	wc.readLoop()

	h.unregister <- wc
	_ = conn.Close()
}

func (wc *watchConn) writeLoop() {
	ticker := time.NewTicker(watchPingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-wc.send:
			if !ok {
				deadline := time.Now().Add(watchWriteTimeout)
				_ = wc.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), deadline)
				return
			}
			_ = wc.conn.SetWriteDeadline(time.Now().Add(watchWriteTimeout))
			if err := wc.conn.WriteJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			_ = wc.conn.SetWriteDeadline(time.Now().Add(watchWriteTimeout))
			if err := wc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (wc *watchConn) readLoop() {
	wc.conn.SetReadLimit(512)
	_ = wc.conn.SetReadDeadline(time.Now().Add(watchPongTimeout))
	wc.conn.SetPongHandler(func(string) error {
		return wc.conn.SetReadDeadline(time.Now().Add(watchPongTimeout))
	})

	for {
		if _, _, err := wc.conn.ReadMessage(); err != nil {
			return
		}
	}
}
