package ws

import (
	"encoding/json"
	"testing"
	"time"

	"codequest/game"
	"codequest/kv"

	"github.com/jonboulle/clockwork"
)

func TestRoomRelaysLobbyEvents(t *testing.T) {
	lobby := game.NewLobby(kv.New(clockwork.NewFakeClock()), nil)
	roomID, err := lobby.CreateRoom("alice", "go")
	if err != nil {
		t.Fatal(err)
	}

	room := NewRoom(roomID, lobby.Subscribe(roomID))
	defer room.Close()

	client := &Client{playerID: "alice", send: make(chan []byte, 8)}
	room.AddClient(client)

	if err := lobby.JoinRoom(roomID, "bob"); err != nil {
		t.Fatal(err)
	}

	select {
	case data := <-client.send:
		var msg struct {
			Type    string     `json:"type"`
			Payload game.Event `json:"payload"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatal(err)
		}
		if msg.Type != game.EventPlayerJoined || msg.Payload.PlayerID != "bob" {
			t.Fatalf("message = %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event relayed")
	}
}

func TestRemovedClientIsSkipped(t *testing.T) {
	room := NewRoom("duel_x", nil)
	client := &Client{playerID: "alice", send: make(chan []byte, 1)}
	room.AddClient(client)

	if n := room.RemoveClient(client); n != 0 {
		t.Fatalf("remaining = %d", n)
	}
	// Must not send on the closed channel.
	room.SendTo(client, OutgoingMessage{Type: "session"})
	room.Broadcast(OutgoingMessage{Type: "session"})

	if room.ClientCount() != 0 {
		t.Errorf("clients = %d", room.ClientCount())
	}
}
