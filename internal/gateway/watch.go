package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
)

// Event is one message of the board push channel.
type Event struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}

// WatchHandlers receives push channel activity. Either field may be nil.
type WatchHandlers struct {
	// OnEvent is called for every message.
	OnEvent func(Event)
	// OnReconnect is called each time the channel comes back after a drop.
	OnReconnect func()
}

// Watch keeps the board push channel open until ctx is done, reconnecting
// with a fixed backoff. It returns ctx's error, or an auth error when the
// server rejects the session.
func (c *Client) Watch(ctx context.Context, h WatchHandlers) error {
	if !c.session.Valid() {
		return &Error{Kind: KindAuth, Op: "watch", Err: errors.New("no session")}
	}

	connected := false
	for {
		err := c.watchOnce(ctx, h, func() {
			if connected && h.OnReconnect != nil {
				h.OnReconnect()
			}
			connected = true
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrUnauthorized) {
			return err
		}
		c.logger.WithError(err).Debug("board events dropped, reconnecting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff):
		}
	}
}

func (c *Client) watchOnce(ctx context.Context, h WatchHandlers, onOpen func()) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.session.Token)
	conn, resp, err := websocket.Dial(ctx, c.eventsURL(), &websocket.DialOptions{
		HTTPClient: &http.Client{Transport: c.http.Transport},
		HTTPHeader: header,
	})
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 {
			return &Error{Kind: kindForStatus(resp.StatusCode), Op: "watch", Status: resp.StatusCode, Err: err}
		}
		return &Error{Kind: KindTransport, Op: "watch", Err: err}
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	onOpen()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return &Error{Kind: KindTransport, Op: "watch", Err: err}
		}
		var ev Event
		if err := codec.Unmarshal(data, &ev); err != nil {
			c.logger.WithError(err).Warn("undecodable board event")
			continue
		}
		if h.OnEvent != nil {
			h.OnEvent(ev)
		}
	}
}

func (c *Client) eventsURL() string {
	u := c.baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/api/board/events"
}
