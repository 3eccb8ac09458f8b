package broadcast

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/talkincode/shopsync/pkg/common"
	"github.com/talkincode/shopsync/pkg/metrics"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

type HubOptions struct {
	PingInterval time.Duration
	PongWait     time.Duration
	QueueSize    int
}

// Hub keeps the connected realtime clients. Every client has its own send
// queue drained by one writer, so events arrive in publish order. A client
// that cannot keep up is disconnected and reloads on reconnect.
type Hub struct {
	opts     HubOptions
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*peer]struct{}
	closed  bool
}

type peer struct {
	id     string
	client string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func NewHub(opts HubOptions) *Hub {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 25 * time.Second
	}
	if opts.PongWait <= opts.PingInterval {
		opts.PongWait = opts.PingInterval + 35*time.Second
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	return &Hub{
		opts:    opts,
		clients: make(map[*peer]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues ev for every connected client
func (h *Hub) Broadcast(ev Event) {
	data, err := Encode(ev)
	if err != nil {
		zap.L().Error("hub: encode event failed", zap.String("type", string(ev.Type)), zap.Error(err))
		return
	}
	var slow []*peer
	h.mu.RLock()
	for p := range h.clients {
		select {
		case p.send <- data:
		default:
			slow = append(slow, p)
		}
	}
	h.mu.RUnlock()
	for _, p := range slow {
		zap.L().Warn("hub: client send queue full, disconnecting", zap.String("peer", p.id))
		h.drop(p)
	}
}

// ServeHTTP upgrades the request and serves the client until it disconnects.
// The optional client query parameter names the client token.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Warn("hub: upgrade failed", zap.Error(err))
		return
	}
	p := &peer{
		id:     common.UUID(),
		client: r.URL.Query().Get("client"),
		conn:   conn,
		send:   make(chan []byte, h.opts.QueueSize),
		done:   make(chan struct{}),
	}
	if !h.register(p) {
		_ = conn.Close()
		return
	}
	go h.writeLoop(p)
	h.readLoop(p)
}

func (h *Hub) register(p *peer) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[p] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.SetGauge("ws_clients", int64(total))
	zap.L().Info("hub: client connected",
		zap.String("peer", p.id),
		zap.String("client", p.client),
		zap.Int("total", total),
	)
	return true
}

func (h *Hub) drop(p *peer) {
	p.once.Do(func() {
		close(p.done)
		_ = p.conn.Close()

		h.mu.Lock()
		delete(h.clients, p)
		total := len(h.clients)
		h.mu.Unlock()

		metrics.SetGauge("ws_clients", int64(total))
		zap.L().Info("hub: client disconnected", zap.String("peer", p.id), zap.Int("total", total))
	})
}

// readLoop only handles control frames, clients never send data
func (h *Hub) readLoop(p *peer) {
	defer h.drop(p)
	p.conn.SetReadLimit(4096)
	_ = p.conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	})
	for {
		if _, _, err := p.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Debug("hub: read error", zap.String("peer", p.id), zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writeLoop(p *peer) {
	ticker := time.NewTicker(h.opts.PingInterval)
	defer func() {
		ticker.Stop()
		h.drop(p)
	}()
	for {
		select {
		case data := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-p.done:
			return
		}
	}
}

// Close disconnects every client and refuses new ones
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	peers := make([]*peer, 0, len(h.clients))
	for p := range h.clients {
		peers = append(peers, p)
	}
	h.mu.Unlock()
	for _, p := range peers {
		_ = p.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"), time.Now().Add(time.Second))
		h.drop(p)
	}
}
