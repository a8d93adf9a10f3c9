package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mossy-p/stranger-signaling/internal/signaling"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by middleware
		return true
	},
}

// Client is one WebSocket connection. It implements matchmaking.Peer.
type Client struct {
	Addr string
	Conn *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newClient(conn *websocket.Conn, addr string, buffer int) *Client {
	if buffer <= 0 {
		buffer = 256
	}
	return &Client{
		Addr: addr,
		Conn: conn,
		send: make(chan []byte, buffer),
	}
}

// Send queues data for the writer without blocking.
func (c *Client) Send(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		slog.Warn("Failed to send message, buffer full", "addr", c.Addr)
		return false
	}
}

// Close stops the writer, which sends a close frame and drops the socket.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// SignalingOptions tunes per-connection buffers.
type SignalingOptions struct {
	SendBuffer      int
	MaxMessageBytes int
}

// HandleSignaling upgrades the request and serves one client until it leaves
func HandleSignaling(router *signaling.Router, opts SignalingOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Warn("Failed to upgrade connection", "error", err)
			return
		}

		client := newClient(conn, c.ClientIP(), opts.SendBuffer)
		sc := signaling.NewConn(client, fallbackID(c.Query("nickname")))
		slog.Debug("Socket opened", "addr", client.Addr)

		go client.writePump()
		client.readPump(c, router, sc, opts.MaxMessageBytes)
	}
}

// fallbackID names a connection whose register message carries no id.
func fallbackID(nickname string) string {
	nickname = strings.TrimSpace(nickname)
	if nickname != "" {
		return nickname
	}
	return uuid.NewString()
}

func (c *Client) readPump(gc *gin.Context, router *signaling.Router, sc *signaling.Conn, maxBytes int) {
	defer func() {
		router.Close(sc)
		c.Close()
		c.Conn.Close()
		slog.Debug("Socket closed", "addr", c.Addr, "peer", sc.ID())
	}()

	if maxBytes <= 0 {
		maxBytes = signaling.DefaultMaxMessageBytes
	}
	// Leave headroom so oversized messages get an error reply, not a hangup.
	c.Conn.SetReadLimit(int64(maxBytes) * 2)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ctx := gc.Request.Context()
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("WebSocket error", "addr", c.Addr, "peer", sc.ID(), "error", err)
			}
			return
		}
		// Errors are answered to the client by the router.
		_ = router.Handle(ctx, sc, message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Warn("Failed to write message", "addr", c.Addr, "error", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
