package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"codequest/game"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Manager tracks websocket rooms, one per duel room with connected clients.
type Manager struct {
	rooms  map[string]*Room
	lobby  *game.Lobby
	engine *game.Engine
	mu     sync.Mutex
}

func NewManager(lobby *game.Lobby, engine *game.Engine) *Manager {
	return &Manager{
		rooms:  make(map[string]*Room),
		lobby:  lobby,
		engine: engine,
	}
}

// Join seats client in the room for roomID, creating the room on first use.
// The client is added under the manager lock so a concurrent release cannot
// close the room in between.
func (m *Manager) Join(roomID string, client *Client) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, exists := m.rooms[roomID]
	if !exists {
		room = NewRoom(roomID, m.lobby.Subscribe(roomID))
		m.rooms[roomID] = room
	}
	room.AddClient(client)
	return room
}

func (m *Manager) release(room *Room, client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if room.RemoveClient(client) > 0 {
		return
	}
	if m.rooms[room.roomID] == room {
		delete(m.rooms, room.roomID)
	}
	room.Close()
}

func (m *Manager) HandleConnection(conn *websocket.Conn, roomID, playerID string) {
	client := &Client{
		conn:     conn,
		playerID: playerID,
		send:     make(chan []byte, 256),
	}

	room := m.Join(roomID, client)

	if r, ok := m.lobby.GetRoom(roomID); ok {
		room.SendTo(client, OutgoingMessage{Type: "room_state", Payload: r})
	}

	go m.writePump(client)
	go m.readPump(client, room)
}

func (m *Manager) readPump(client *Client, room *Room) {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		m.release(room, client)
		client.conn.Close()
	}()

	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var inMsg IncomingMessage
		if err := json.Unmarshal(message, &inMsg); err != nil {
			log.Printf("Failed to unmarshal message: %v", err)
			continue
		}

		// Duel answers may wait on the opponent, so they run off the read loop.
		go m.handleMessage(ctx, client, room, &inMsg)
	}
}

func (m *Manager) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := client.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to current websocket message
			n := len(client.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-client.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (m *Manager) handleMessage(ctx context.Context, client *Client, room *Room, msg *IncomingMessage) {
	var payload sessionPayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			sendError(room, client, errors.New("invalid payload"))
			return
		}
	}

	var (
		view *game.SessionView
		err  error
	)

	switch msg.Type {
	case "answer":
		view, err = m.engine.SubmitAnswer(ctx, payload.SessionID, client.playerID, payload.Answer)
	case "advance":
		view, err = m.engine.Advance(payload.SessionID, client.playerID)
	case "session":
		view, err = m.engine.GetSession(payload.SessionID, client.playerID)
	default:
		log.Printf("Unknown message type: %s", msg.Type)
		return
	}

	if err != nil {
		log.Printf("Error handling %s message: %v", msg.Type, err)
		sendError(room, client, err)
		return
	}
	room.SendTo(client, OutgoingMessage{Type: "session", Payload: view})
}

func sendError(room *Room, client *Client, err error) {
	room.SendTo(client, OutgoingMessage{
		Type:    "error",
		Payload: map[string]string{"message": err.Error()},
	})
}
