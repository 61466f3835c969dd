// Package feed streams committed rate changes to connected editors over WebSockets.
package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ratesapi/backend/services/rates-service/internal/changeset"
)

// Hub tracks subscriber connections and fans out change entries.
type Hub struct {
	mu           sync.RWMutex
	subscribers  map[*subscriber]struct{}
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	pingInterval time.Duration
	logger       *zap.Logger
}

// NewHub builds hub. checkOrigin decides which browser origins may subscribe.
func NewHub(checkOrigin func(r *http.Request) bool, writeTimeout time.Duration, logger *zap.Logger) *Hub {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Hub{
		subscribers:  make(map[*subscriber]struct{}),
		writeTimeout: writeTimeout,
		pingInterval: 30 * time.Second,
		logger:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// ServeHTTP upgrades GET /api/rates/feed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sub := newSubscriber(conn, h)
	h.add(sub)
	h.logger.Info("feed subscriber connected", zap.String("remote", r.RemoteAddr))

	go sub.writePump()
	go sub.readPump()
}

// Count returns number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Name implements the post-commit hook contract.
func (h *Hub) Name() string {
	return "feed"
}

// AfterCommit broadcasts entries as a single JSON array message.
func (h *Hub) AfterCommit(_ context.Context, entries []changeset.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	msg, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	h.Broadcast(msg)
	return nil
}

// Broadcast enqueues msg for every subscriber. Slow subscribers drop messages.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subscribers {
		select {
		case sub.send <- msg:
		default:
			h.logger.Warn("dropping feed message, buffer full")
		}
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subscribers
	h.subscribers = make(map[*subscriber]struct{})
	h.mu.Unlock()

	for sub := range subs {
		sub.close()
	}
}

func (h *Hub) add(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[sub] = struct{}{}
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers, sub)
}
