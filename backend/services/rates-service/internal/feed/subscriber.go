package feed

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	readLimit = 4096
	pongWait  = 60 * time.Second
)

type subscriber struct {
	ws        *websocket.Conn
	hub       *Hub
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newSubscriber(ws *websocket.Conn, hub *Hub) *subscriber {
	return &subscriber{
		ws:   ws,
		hub:  hub,
		send: make(chan []byte, 16),
		done: make(chan struct{}),
	}
}

// readPump only watches for pongs and disconnects; the feed is one way.
func (s *subscriber) readPump() {
	defer s.close()
	s.ws.SetReadLimit(readLimit)
	_ = s.ws.SetReadDeadline(time.Now().Add(pongWait))
	s.ws.SetPongHandler(func(string) error {
		return s.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.ws.ReadMessage(); err != nil {
			s.hub.logger.Debug("feed subscriber read closed", zap.Error(err))
			return
		}
	}
}

func (s *subscriber) writePump() {
	ticker := time.NewTicker(s.hub.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case msg := <-s.send:
			if err := s.write(websocket.TextMessage, msg); err != nil {
				s.close()
				return
			}
		case <-ticker.C:
			if err := s.write(websocket.PingMessage, nil); err != nil {
				s.close()
				return
			}
		}
	}
}

func (s *subscriber) write(messageType int, data []byte) error {
	_ = s.ws.SetWriteDeadline(time.Now().Add(s.hub.writeTimeout))
	return s.ws.WriteMessage(messageType, data)
}

func (s *subscriber) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.hub.remove(s)
		_ = s.ws.Close()
	})
}
