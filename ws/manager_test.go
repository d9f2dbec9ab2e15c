package ws

import (
	"sync"
	"testing"

	"codequest/game"
	"codequest/kv"

	"github.com/jonboulle/clockwork"
)

func TestJoinAndReleaseKeepLiveRoomsRegistered(t *testing.T) {
	lobby := game.NewLobby(kv.New(clockwork.NewFakeClock()), nil)
	m := NewManager(lobby, nil)

	anchor := &Client{playerID: "alice", send: make(chan []byte, 1)}
	room := m.Join("duel_x", anchor)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := &Client{playerID: "bob", send: make(chan []byte, 1)}
			joined := m.Join("duel_x", c)
			m.mu.Lock()
			registered := m.rooms["duel_x"] == joined
			m.mu.Unlock()
			if !registered {
				t.Error("joined a room that is no longer registered")
			}
			m.release(joined, c)
		}()
	}
	wg.Wait()

	if got := m.Join("duel_x", &Client{playerID: "carol", send: make(chan []byte, 1)}); got != room {
		t.Error("room with a connected client was replaced")
	}
	if room.ClientCount() != 2 {
		t.Errorf("clients = %d, want 2", room.ClientCount())
	}

	m.release(room, anchor)
	if len(m.rooms) != 1 {
		t.Errorf("rooms = %d", len(m.rooms))
	}
}
