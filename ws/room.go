package ws

import (
	"encoding/json"
	"log"
	"sync"

	"codequest/game"
	"codequest/kv"

	"github.com/gorilla/websocket"
)

type Client struct {
	conn     *websocket.Conn
	playerID string
	send     chan []byte
}

// Room fans a duel room's lobby events out to its websocket clients.
type Room struct {
	roomID  string
	clients map[*Client]bool
	sub     *kv.Subscription
	mu      sync.RWMutex
}

func NewRoom(roomID string, sub *kv.Subscription) *Room {
	r := &Room{
		roomID:  roomID,
		clients: make(map[*Client]bool),
		sub:     sub,
	}
	if sub != nil {
		go r.relay()
	}
	return r
}

func (r *Room) relay() {
	for msg := range r.sub.C {
		var ev game.Event
		if err := json.Unmarshal([]byte(msg), &ev); err != nil {
			log.Printf("Dropping unreadable event for room %s: %v", r.roomID, err)
			continue
		}
		r.Broadcast(OutgoingMessage{Type: ev.Type, Payload: ev})
	}
}

func (r *Room) AddClient(client *Client) {
	r.mu.Lock()
	r.clients[client] = true
	r.mu.Unlock()
}

// RemoveClient drops client and reports how many clients remain.
func (r *Room) RemoveClient(client *Client) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[client]; ok {
		delete(r.clients, client)
		close(client.send)
	}
	return len(r.clients)
}

// Close stops relaying events.
func (r *Room) Close() {
	if r.sub != nil {
		r.sub.Close()
	}
}

func (r *Room) Broadcast(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Failed to marshal message: %v", err)
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for client := range r.clients {
		select {
		case client.send <- data:
		default:
			log.Printf("Client %s send buffer full", client.playerID)
		}
	}
}

// SendTo delivers message to one client if it is still connected.
func (r *Room) SendTo(client *Client, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Failed to marshal message: %v", err)
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.clients[client] {
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

func (r *Room) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
