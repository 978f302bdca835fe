// Package events pushes board invalidations to connected clients over
// websockets. Clients treat a message as "refetch now"; it carries no state.
package events

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/coder/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	TypeInvalidate = "invalidate"

	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
)

// Message is the only frame sent on the channel.
type Message struct {
	Type      string    `json:"type"`
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub fans invalidations out to the connections of one user.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[chan Message]struct{}
	logger log.FieldLogger
}

func NewHub(logger log.FieldLogger) *Hub {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Hub{subs: map[string]map[chan Message]struct{}{}, logger: logger}
}

func (h *Hub) subscribe(userID string) chan Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan Message, 1)
	if h.subs[userID] == nil {
		h.subs[userID] = map[chan Message]struct{}{}
	}
	h.subs[userID][ch] = struct{}{}
	return ch
}

func (h *Hub) unsubscribe(userID string, ch chan Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subs[userID]; ok {
		delete(subs, ch)
		if len(subs) == 0 {
			delete(h.subs, userID)
		}
	}
}

// Invalidate notifies every connection of userID. A connection that still
// has an undelivered invalidation keeps that one.
func (h *Hub) Invalidate(_ context.Context, userID string) {
	msg := Message{Type: TypeInvalidate, Key: "board:" + userID, Timestamp: time.Now().UTC()}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[userID] {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Clients returns the number of open connections of userID.
func (h *Hub) Clients(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}

// Serve upgrades the request and streams invalidations for userID until the
// client goes away or ctx is cancelled.
func (h *Hub) Serve(ctx context.Context, w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusInternalError, "")

	ch := h.subscribe(userID)
	defer h.unsubscribe(userID, ch)
	logger := h.logger.WithField("user_id", userID)
	logger.Debug("events client connected")

	// Client frames are ignored; CloseRead cancels ctx when the peer closes.
	ctx = conn.CloseRead(ctx)
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("events client disconnected")
			conn.Close(websocket.StatusNormalClosure, "")
			return nil
		case msg := <-ch:
			data, err := sonic.Marshal(msg)
			if err != nil {
				return err
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.WithError(err).Debug("events write failed")
				return nil
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return nil
			}
		}
	}
}
