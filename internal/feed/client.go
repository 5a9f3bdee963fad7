package feed

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/alexanu/nautilus-trader/internal/data"
	"github.com/alexanu/nautilus-trader/pkg/exception"
)

// Config describes a websocket feed connection.
type Config struct {
	URL          string
	Symbols      []string
	Backoff      Backoff
	ReadTimeout  time.Duration
	PingInterval time.Duration
}

type subscribeMsg struct {
	Op      string   `json:"op"`
	Symbols []string `json:"symbols"`
}

// Client consumes a market data websocket and emits raw events. Each
// frame is one JSON raw event. Disconnects trigger reconnection with
// backoff; a resubscribe message is sent after every connect. Gaps
// during reconnects are tolerated, the data engine's staleness rule
// handles any replayed frames.
type Client struct {
	cfg Config
}

// NewClient validates the config and creates a feed client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "feed url is empty")
	}
	if len(cfg.Symbols) == 0 {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "feed symbols are empty")
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 15 * time.Second
	}
	return &Client{cfg: cfg}, nil
}

// Stream connects and pushes raw events through emit until the context
// is done. Only context cancellation ends the stream; transport errors
// reconnect.
func (c *Client) Stream(ctx context.Context, emit func(data.RawEvent)) error {
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := c.runOnce(ctx, emit); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			attempt++
			wait := c.cfg.Backoff.Next(attempt)
			logs.Warnf("feed disconnected, url: %s, attempt: %d, retry in: %s, err: %+v",
				c.cfg.URL, attempt, wait, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		attempt = 0
	}
}

func (c *Client) runOnce(ctx context.Context, emit func(data.RawEvent)) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return errors.Wrapf(err, "dial feed: %s", c.cfg.URL)
	}
	defer conn.Close()

	sub, err := sonic.Marshal(subscribeMsg{Op: "subscribe", Symbols: c.cfg.Symbols})
	if err != nil {
		return errors.Wrap(err, "encode subscribe")
	}
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		return errors.Wrap(err, "send subscribe")
	}
	logs.Infof("feed connected, url: %s, symbols: %d", c.cfg.URL, len(c.cfg.Symbols))

	done := make(chan struct{})
	defer close(done)
	go c.keepAlive(ctx, conn, done)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
			return errors.Wrap(err, "set read deadline")
		}
		kind, frame, err := conn.ReadMessage()
		if err != nil {
			return errors.Wrap(err, "read frame")
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		var raw data.RawEvent
		if err := sonic.Unmarshal(frame, &raw); err != nil {
			logs.Warnf("feed drop malformed frame, err: %+v", err)
			continue
		}
		emit(raw)
	}
}

// keepAlive pings on an interval so idle streams keep the connection
// open through intermediaries.
func (c *Client) keepAlive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			// Unblocks the read loop.
			_ = conn.Close()
			return
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.PingInterval)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}
