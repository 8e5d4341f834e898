package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aura-stage/backend/internal/auth"
	"github.com/aura-stage/backend/internal/middleware"
	"github.com/aura-stage/backend/internal/models"
)

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Options tune the socket endpoint.
type Options struct {
	SendBuffer      int
	MaxMessageBytes int64
	CheckOrigin     func(r *http.Request) bool
}

// Client represents a single WebSocket connection. joined is only touched by the read
// goroutine.
type Client struct {
	ID     string
	creds  auth.Credentials
	joined *models.Connection

	rooms map[string]struct{} // guarded by hub.mu
	send  chan WSMessage

	conn   *websocket.Conn
	logger *zap.Logger
}

func newClient(creds auth.Credentials, buffer int, logger *zap.Logger) *Client {
	if buffer <= 0 {
		buffer = 256
	}
	return &Client{
		ID:     uuid.New().String(),
		creds:  creds,
		rooms:  make(map[string]struct{}),
		send:   make(chan WSMessage, buffer),
		logger: logger,
	}
}

// Joined returns the connection the client joined, if any.
func (c *Client) Joined() (models.Connection, bool) {
	if c.joined == nil {
		return models.Connection{}, false
	}
	return *c.joined, true
}

// handshakeCredentials reads the producer token (query or bearer header) and the
// A/V password (query).
func handshakeCredentials(r *http.Request) auth.Credentials {
	q := r.URL.Query()
	token := q.Get("token")
	if token == "" {
		token, _ = middleware.BearerToken(r.Header.Get("Authorization"))
	}
	return auth.Credentials{Token: token, Password: q.Get("password")}
}

// ServeWs handles the WebSocket upgrade and runs the client loop.
func ServeWs(hub *Hub, d *Dispatcher, opts Options, logger *zap.Logger) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     opts.CheckOrigin,
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = 65536
	}
	return func(c *gin.Context) {
		creds := handshakeCredentials(c.Request)
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := newClient(creds, opts.SendBuffer, logger)
		client.conn = conn
		hub.Register(client)
		go client.writePump()
		client.readPump(c.Request.Context(), hub, d, opts.MaxMessageBytes)
	}
}

func (c *Client) readPump(ctx context.Context, hub *Hub, d *Dispatcher, limit int64) {
	defer func() {
		d.Disconnect(c)
		hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(limit)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read failed", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		d.Dispatch(ctx, c, msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
