package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"trading-bot/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsTopics are the domain events streamed to connected UIs.
var wsTopics = []events.Event{
	events.EventPriceTick,
	events.EventPositionOpened,
	events.EventPositionClosed,
	events.EventPositionRecovered,
	events.EventWatchlistChanged,
	events.EventCooldownReleased,
	events.EventModelRetrained,
	events.EventRecommendationsNew,
}

type wsEnvelope struct {
	Event   events.Event `json:"event"`
	Payload any          `json:"payload"`
}

func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	// Fan all topics into one channel; gorilla allows only one writer.
	merged := make(chan wsEnvelope, 256)
	done := make(chan struct{})
	for _, topic := range wsTopics {
		stream, unsub := s.Bus.Subscribe(topic, 64)
		defer unsub()
		go func(topic events.Event, stream <-chan any) {
			for msg := range stream {
				select {
				case merged <- wsEnvelope{Event: topic, Payload: msg}:
				case <-done:
					return
				default:
					// drop when the client cannot keep up
				}
			}
		}(topic, stream)
	}

	// Reader only detects disconnects; inbound frames are ignored.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case env := <-merged:
			if err := conn.WriteJSON(env); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		case <-done:
			return
		}
	}
}
