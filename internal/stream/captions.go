package stream

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	historySize    = 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Caption struct {
	Text      string    `json:"text"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

// Captions mirrors every narration to connected websocket clients.
type Captions struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*captionConn]struct{}
	history []Caption
}

func NewCaptions(logger *slog.Logger) *Captions {
	if logger == nil {
		logger = slog.Default()
	}
	return &Captions{
		logger:  logger.With("component", "captions"),
		clients: make(map[*captionConn]struct{}),
	}
}

func (h *Captions) Publish(kind, text string) {
	caption := Caption{Text: text, Kind: kind, Timestamp: time.Now().UTC()}

	h.mu.Lock()
	h.history = append(h.history, caption)
	if len(h.history) > historySize {
		h.history = h.history[len(h.history)-historySize:]
	}
	clients := make([]*captionConn, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.enqueue(caption)
	}
}

func (h *Captions) History() []Caption {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Caption(nil), h.history...)
}

func (h *Captions) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Captions) HandleWebSocket(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return err
	}

	conn := &captionConn{
		ws:     ws,
		send:   make(chan Caption, 64),
		done:   make(chan struct{}),
		logger: h.logger,
	}

	h.mu.Lock()
	for _, caption := range h.history {
		conn.send <- caption
	}
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	h.logger.Info("caption client connected", "remote", c.RealIP())

	go conn.writePump()
	conn.readPump()

	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()

	h.logger.Info("caption client disconnected", "remote", c.RealIP())
	return nil
}

type captionConn struct {
	ws     *websocket.Conn
	send   chan Caption
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func (c *captionConn) enqueue(caption Caption) {
	select {
	case <-c.done:
	case c.send <- caption:
	default:
		c.logger.Warn("caption buffer full, dropping caption")
	}
}

func (c *captionConn) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// readPump only drains control frames; clients never send captions.
func (c *captionConn) readPump() {
	defer c.close()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			return
		}
	}
}

func (c *captionConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case caption := <-c.send:
			data, err := json.Marshal(caption)
			if err != nil {
				c.logger.Error("failed to marshal caption", "error", err)
				continue
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
