package ws

import (
	"estate-live/contract"
	"estate-live/sink"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

const (
	defaultWriteWait      = 10 * time.Second
	defaultPongWait       = 60 * time.Second
	defaultMaxMessageSize = 512 * 1024
	defaultBufferSize     = 256
)

// ServerConfig holds the websocket endpoint settings.
type ServerConfig struct {
	ConnectionBufferSize int
	WriteWait            time.Duration
	PongWait             time.Duration
	MaxMessageSize       int64
	// AllowedOrigins empty means any origin is accepted.
	AllowedOrigins []string
}

func (c ServerConfig) norm() ServerConfig {
	if c.ConnectionBufferSize <= 0 {
		c.ConnectionBufferSize = defaultBufferSize
	}
	if c.WriteWait <= 0 {
		c.WriteWait = defaultWriteWait
	}
	if c.PongWait <= 0 {
		c.PongWait = defaultPongWait
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = defaultMaxMessageSize
	}
	return c
}

// pingPeriod must stay below pongWait.
func (c ServerConfig) pingPeriod() time.Duration {
	return (c.PongWait * 9) / 10
}

// Server upgrades HTTP requests to websocket connections attached to the hub.
type Server struct {
	hub      contract.IEventHub
	upgrader websocket.Upgrader
	conf     ServerConfig
	log      *slog.Logger
}

func NewServer(log *slog.Logger, hub contract.IEventHub, conf ServerConfig) *Server {
	conf = conf.norm()
	return &Server{
		hub:  hub,
		conf: conf,
		log:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(conf.AllowedOrigins) == 0 {
					return true
				}
				return lo.Contains(conf.AllowedOrigins, r.Header.Get("Origin"))
			},
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.log.Warn("Websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}
	c := &serverConn{
		conn: conn,
		sink: sink.NewConnectionSink(s.conf.ConnectionBufferSize),
		hub:  s.hub,
		conf: s.conf,
	}
	c.log = s.log.With("connection_id", c.sink.ID())

	s.hub.Attach(c.sink)
	c.log.Info("Connection established", "remote_addr", r.RemoteAddr)

	go c.writePump()
	go c.readPump()
}

type serverConn struct {
	conn *websocket.Conn
	sink *sink.ConnectionSink
	hub  contract.IEventHub
	conf ServerConfig
	log  *slog.Logger
}

// readPump decodes client frames and submits them to the hub. It owns the
// disconnect: when reading fails the connection is detached and closed.
func (c *serverConn) readPump() {
	defer func() {
		c.hub.Detach(c.sink.ID())
		c.sink.Close()
		_ = c.conn.Close()
		c.log.Info("Connection closed")
	}()

	c.conn.SetReadLimit(c.conf.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.conf.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.conf.PongWait))
	})

	for {
		messageType, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("Websocket read error", "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			c.log.Debug("Binary frames are not supported")
			continue
		}
		in, err := DecodeInbound(raw)
		if err != nil {
			c.log.Debug("Frame ignored", "error", err)
			continue
		}
		in.From = c.sink.ID()
		if err := c.hub.Submit(in); err != nil {
			c.log.Warn("Frame dropped", "error", err)
		}
	}
}

// writePump drains the connection sink to the socket and keeps the peer alive
// with pings. It stops as soon as the sink is closed or a write fails.
func (c *serverConn) writePump() {
	ticker := time.NewTicker(c.conf.pingPeriod())
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.sink.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.conf.WriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case evt := <-c.sink.Events():
			raw, err := EncodeDelivery(evt)
			if err != nil {
				c.log.Error("Failed to encode delivery", "kind", evt.Kind(), "error", err)
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.conf.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				c.log.Debug("Failed to write delivery", "error", err)
				c.sink.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.conf.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Debug("Failed to send ping", "error", err)
				c.sink.Close()
				return
			}
		}
	}
}
