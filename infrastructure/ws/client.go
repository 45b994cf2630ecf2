package ws

import (
	"context"
	"estate-live/contract"
	"estate-live/domain/event"
	"estate-live/errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var _ contract.IPublisher = (*Client)(nil)

// ClientConfig holds the client transport settings.
type ClientConfig struct {
	WriteWait       time.Duration
	EventBufferSize int
}

// Client is the session side of the hub transport: it publishes frames and
// exposes the deliveries it receives as a channel of domain events.
type Client struct {
	conn    *websocket.Conn
	log     *slog.Logger
	conf    ClientConfig
	writeMu sync.Mutex
	events  chan event.DomainEvent
	done    chan struct{}
	once    sync.Once
}

// Dial connects to the hub websocket endpoint, e.g. ws://localhost:4000/ws.
func Dial(ctx context.Context, log *slog.Logger, url string, conf ClientConfig) (*Client, error) {
	if conf.WriteWait <= 0 {
		conf.WriteWait = defaultWriteWait
	}
	if conf.EventBufferSize <= 0 {
		conf.EventBufferSize = defaultBufferSize
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	c := &Client{
		conn:   conn,
		log:    log,
		conf:   conf,
		events: make(chan event.DomainEvent, conf.EventBufferSize),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) Announce(ctx context.Context, userID string) error {
	raw, err := EncodeAnnounce(userID)
	if err != nil {
		return err
	}
	return c.write(ctx, raw)
}

func (c *Client) Publish(ctx context.Context, evt event.DomainEvent) error {
	raw, err := EncodePublish(evt)
	if err != nil {
		return err
	}
	return c.write(ctx, raw)
}

// Events yields every delivery until the connection ends, then is closed.
func (c *Client) Events() <-chan event.DomainEvent { return c.events }

func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) Close() error {
	c.shutdown()
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.conf.WriteWait))
	return c.conn.Close()
}

func (c *Client) write(ctx context.Context, raw []byte) error {
	select {
	case <-c.done:
		return errors.ErrConnectionClosed
	default:
	}
	deadline := time.Now().Add(c.conf.WriteWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(deadline)
	return c.conn.WriteMessage(websocket.TextMessage, raw)
}

func (c *Client) readLoop() {
	defer close(c.events)
	defer c.shutdown()
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("Hub connection lost", "error", err)
			}
			return
		}
		evt, err := DecodeDelivery(raw)
		if err != nil {
			c.log.Debug("Delivery ignored", "error", err)
			continue
		}
		select {
		case c.events <- evt:
		case <-c.done:
			return
		}
	}
}

func (c *Client) shutdown() {
	c.once.Do(func() { close(c.done) })
}
