// internal/websocket/hub.go
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/clock"
	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/data"
)

// Hub mirrors everything sent to the sign to connected preview clients.
// It implements display.Driver, so it can sit next to the real sign in a
// display.Multi.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte  // messages to broadcast
	register   chan *Client // clients to add
	unregister chan *Client // clients to remove
	done       chan struct{}
	latest     []byte // last broadcast, replayed to new clients
	clock      clock.Clock
	logger     *slog.Logger
}

func NewHub(clk clock.Clock, logger *slog.Logger) *Hub {
	if clk == nil {
		clk = clock.Real()
	}
	return &Hub{
		broadcast:  make(chan []byte, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		clock:      clk,
		logger:     logger,
	}
}

// Run owns the client set until ctx is cancelled; all clients are then
// disconnected.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			return nil

		case client := <-h.register:
			h.clients[client] = true
			h.logger.Info("preview client registered", "remote", client.remote())
			if h.latest != nil {
				select {
				case client.Send <- h.latest:
				default:
				}
			}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.logger.Info("preview client unregistered", "remote", client.remote())
			}

		case message := <-h.broadcast:
			h.latest = message
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					// Client is blocked or gone.
					h.logger.Warn("preview client send buffer full, removing", "remote", client.remote())
					close(client.Send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// RegisterClient adds a client. It reports false when the hub has stopped.
func (h *Hub) RegisterClient(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

type message struct {
	Type    string       `json:"type"`
	Payload framesUpdate `json:"payload"`
}

type framesUpdate struct {
	Static     bool         `json:"static"`
	Frames     []data.Frame `json:"frames"`
	UseEffects bool         `json:"use_effects"`
	SentAt     time.Time    `json:"sent_at"`
}

func (h *Hub) SendStatic(ctx context.Context, text string) error {
	return h.publish(ctx, framesUpdate{Static: true, Frames: []data.Frame{{Text: text}}})
}

func (h *Hub) SendFrames(ctx context.Context, frames []data.Frame, useEffects bool) error {
	return h.publish(ctx, framesUpdate{Frames: frames, UseEffects: useEffects})
}

func (h *Hub) publish(ctx context.Context, update framesUpdate) error {
	update.SentAt = h.clock.Now()
	messageBytes, err := json.Marshal(message{Type: "frames", Payload: update})
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- messageBytes:
		return nil
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
