package ws

import (
	"encoding/json"
	"log"
	"sync"

	"codequest/game"

	"github.com/gorilla/websocket"
)

// LobbyManager pushes the list of open duel rooms to browsing clients.
type LobbyManager struct {
	clients map[*LobbyClient]bool
	lobby   *game.Lobby
	mu      sync.RWMutex
}

// LobbyClient is a connection watching one universe's open rooms.
type LobbyClient struct {
	conn       *websocket.Conn
	playerID   string
	universeID string
	send       chan []byte
}

func NewLobbyManager(lobby *game.Lobby) *LobbyManager {
	return &LobbyManager{
		clients: make(map[*LobbyClient]bool),
		lobby:   lobby,
	}
}

func (lm *LobbyManager) HandleConnection(conn *websocket.Conn, playerID, universeID string) {
	client := &LobbyClient{
		conn:       conn,
		playerID:   playerID,
		universeID: universeID,
		send:       make(chan []byte, 256),
	}

	lm.mu.Lock()
	lm.clients[client] = true
	lm.mu.Unlock()

	if data, err := lm.encodeRooms(universeID); err == nil {
		client.send <- data
	}

	go client.writePump()
	client.readPump(lm)
}

// BroadcastUpdate sends the current open rooms of universeID to every client
// watching that universe.
func (lm *LobbyManager) BroadcastUpdate(universeID string) {
	data, err := lm.encodeRooms(universeID)
	if err != nil {
		log.Printf("Failed to marshal lobby update: %v", err)
		return
	}

	lm.mu.RLock()
	defer lm.mu.RUnlock()

	for client := range lm.clients {
		if client.universeID != universeID {
			continue
		}
		select {
		case client.send <- data:
		default:
			// Client buffer full, skip
		}
	}
}

func (lm *LobbyManager) ClientCount() int {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return len(lm.clients)
}

func (lm *LobbyManager) encodeRooms(universeID string) ([]byte, error) {
	return json.Marshal(OutgoingMessage{
		Type:    "rooms_update",
		Payload: lm.lobby.ListAvailable(universeID),
	})
}

func (c *LobbyClient) readPump(lm *LobbyManager) {
	defer func() {
		lm.removeClient(c)
		c.conn.Close()
	}()

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Lobby WebSocket error: %v", err)
			}
			break
		}
		// Incoming messages only keep the connection alive.
	}
}

func (c *LobbyClient) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (lm *LobbyManager) removeClient(client *LobbyClient) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if _, ok := lm.clients[client]; ok {
		close(client.send)
		delete(lm.clients, client)
	}
}
