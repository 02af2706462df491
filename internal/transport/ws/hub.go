package ws

import (
	"context"
	"encoding/json"

	"github.com/golang/glog"
	"github.com/google/uuid"
)

// Hub tracks connected clients per user and routes direct events to them. A user may
// be connected from several devices at once.
type Hub struct {
	clients map[uuid.UUID]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	direct     chan *directMsg
	count      chan chan int
}

type directMsg struct {
	userID uuid.UUID
	data   []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		direct:     make(chan *directMsg, 256),
		count:      make(chan chan int),
	}
}

// Run starts the Hub's main event loop. Call this in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.userID] = set
			}
			set[client] = struct{}{}
			glog.Infof("[ws]user %s connected (%d devices)", client.userID, len(set))

		case client := <-h.unregister:
			if set, ok := h.clients[client.userID]; ok {
				if _, ok := set[client]; ok {
					delete(set, client)
					client.close()
					if len(set) == 0 {
						delete(h.clients, client.userID)
					}
					glog.Infof("[ws]user %s disconnected", client.userID)
				}
			}

		case msg := <-h.direct:
			for client := range h.clients[msg.userID] {
				if !client.enqueue(msg.data) {
					glog.Warningf("[ws]user %s send buffer full, dropping event", msg.userID)
				}
			}

		case reply := <-h.count:
			n := 0
			for _, set := range h.clients {
				n += len(set)
			}
			reply <- n

		case <-ctx.Done():
			for _, set := range h.clients {
				for client := range set {
					client.close()
				}
			}
			return
		}
	}
}

// SendToUser delivers an event to every connection of userID.
func (h *Hub) SendToUser(userID uuid.UUID, event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		glog.Errorf("[ws]marshal error = %s", err)
		return
	}
	select {
	case h.direct <- &directMsg{userID: userID, data: data}:
	default:
		glog.Warningf("[ws]hub queue full, dropping %s for %s", event.Type, userID)
	}
}

// Connections returns the number of live client connections.
func (h *Hub) Connections() int {
	reply := make(chan int)
	h.count <- reply
	return <-reply
}
