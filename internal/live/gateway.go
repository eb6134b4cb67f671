package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/aslahtp/menti-clone/internal/telemetry"
)

const (
	defaultWriteTimeout  = 5 * time.Second
	defaultSendQueueSize = 256
	defaultReadLimit     = 1 << 20 // 1 MiB
)

type GatewayConfig struct {
	Coordinator *Coordinator

	WriteTimeout  time.Duration
	SendQueueSize int
	ReadLimit     int64

	// OriginPatterns allows cross-origin browser clients; same-host is
	// always permitted.
	OriginPatterns []string
}

// Gateway is the websocket transport in front of the Coordinator. It assigns
// each accepted connection an opaque ConnID and implements Outbox for it:
// sends go through a bounded per-connection queue drained by a write pump,
// so a slow client drops messages instead of stalling a handler.
type Gateway struct {
	coord *Coordinator

	writeTimeout   time.Duration
	queueSize      int
	readLimit      int64
	originPatterns []string

	mu      sync.Mutex
	clients map[ConnID]*client
}

type client struct {
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (cl *client) close() {
	cl.closeOnce.Do(func() {
		close(cl.done)
	})
}

func NewGateway(c GatewayConfig) *Gateway {
	g := &Gateway{
		coord:          c.Coordinator,
		writeTimeout:   c.WriteTimeout,
		queueSize:      c.SendQueueSize,
		readLimit:      c.ReadLimit,
		originPatterns: c.OriginPatterns,
		clients:        make(map[ConnID]*client),
	}
	if g.writeTimeout <= 0 {
		g.writeTimeout = defaultWriteTimeout
	}
	if g.queueSize <= 0 {
		g.queueSize = defaultSendQueueSize
	}
	if g.readLimit <= 0 {
		g.readLimit = defaultReadLimit
	}
	return g
}

// Send implements Outbox. It never blocks; a full queue or closing client
// drops the message.
func (g *Gateway) Send(id ConnID, msg any) {
	b, err := json.Marshal(msg)
	if err != nil {
		slog.Error("live: marshal outbound message failed", "conn_id", id, "error", err)
		return
	}

	g.enqueue(id, b)
}

// Broadcast implements Outbox. The message is encoded once and the same
// bytes are queued for every recipient.
func (g *Gateway) Broadcast(ids []ConnID, msg any) {
	b, err := json.Marshal(msg)
	if err != nil {
		slog.Error("live: marshal outbound message failed", "error", err)
		return
	}

	for _, id := range ids {
		g.enqueue(id, b)
	}
}

func (g *Gateway) enqueue(id ConnID, b []byte) {
	g.mu.Lock()
	cl := g.clients[id]
	g.mu.Unlock()

	if cl == nil {
		return
	}

	select {
	case cl.send <- b:
	case <-cl.done:
	default:
		slog.Warn("live: send queue full, dropping message", "conn_id", id)
	}
}

// Handle upgrades the request and serves the connection until it closes.
// The admin/participant path segment is recorded for diagnostics only;
// authorization always comes from the verified token.
func (g *Gateway) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: g.originPatterns,
	})
	if err != nil {
		slog.WarnContext(r.Context(), "live: websocket accept failed", "error", err)
		return
	}

	conn.SetReadLimit(g.readLimit)

	id := ConnID(uuid.NewString())
	cl := &client{
		send: make(chan []byte, g.queueSize),
		done: make(chan struct{}),
	}

	g.mu.Lock()
	g.clients[id] = cl
	g.mu.Unlock()
	telemetry.LiveConnections.Inc()

	ctx := r.Context()
	slog.InfoContext(ctx, "live: connection opened", "conn_id", id, "path", r.URL.Path)

	go g.writePump(ctx, conn, cl)

	g.readLoop(ctx, conn, id)

	// Disconnect cleanup must run even when the request context is gone.
	g.coord.HandleDisconnect(context.WithoutCancel(ctx), id)

	g.mu.Lock()
	delete(g.clients, id)
	g.mu.Unlock()
	telemetry.LiveConnections.Dec()

	cl.close()
	_ = conn.Close(websocket.StatusNormalClosure, "")

	slog.InfoContext(ctx, "live: connection closed", "conn_id", id)
}

func (g *Gateway) readLoop(ctx context.Context, conn *websocket.Conn, id ConnID) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				slog.DebugContext(ctx, "live: read ended", "conn_id", id, "error", err)
			}
			return
		}

		if typ != websocket.MessageText {
			continue
		}

		// One message at a time per connection: handler ordering within a
		// connection is the sequential ordering of this loop.
		g.coord.HandleMessage(ctx, id, data)
	}
}

func (g *Gateway) writePump(ctx context.Context, conn *websocket.Conn, cl *client) {
	for {
		select {
		case b := <-cl.send:
			wctx, cancel := context.WithTimeout(ctx, g.writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, b)
			cancel()
			if err != nil {
				return
			}
		case <-cl.done:
			return
		case <-ctx.Done():
			return
		}
	}
}
