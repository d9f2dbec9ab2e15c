package game

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"codequest/kv"

	"github.com/jonboulle/clockwork"
)

func newTestLobby(t *testing.T) (*Lobby, *kv.Store) {
	t.Helper()
	store := kv.New(clockwork.NewFakeClock())
	return NewLobby(store, nil), store
}

func TestRoomLifecycle(t *testing.T) {
	lobby, _ := newTestLobby(t)

	roomID, err := lobby.CreateRoom("alice", "javascript")
	if err != nil {
		t.Fatal(err)
	}

	available := lobby.ListAvailable("javascript")
	if len(available) != 1 || available[0].ID != roomID {
		t.Fatalf("available = %+v", available)
	}
	if got := lobby.ListAvailable("python"); len(got) != 0 {
		t.Fatalf("python rooms = %+v", got)
	}

	if err := lobby.Start(roomID); !errors.Is(err, ErrRoomNotReady) {
		t.Fatalf("start before join err = %v", err)
	}
	if err := lobby.JoinRoom(roomID, "alice"); !errors.Is(err, ErrAlreadyInRoom) {
		t.Fatalf("creator join err = %v", err)
	}
	if err := lobby.JoinRoom(roomID, "bob"); err != nil {
		t.Fatal(err)
	}
	if err := lobby.JoinRoom(roomID, "carol"); !errors.Is(err, ErrRoomNotWaiting) {
		t.Fatalf("third join err = %v", err)
	}
	if got := lobby.ListAvailable("javascript"); len(got) != 0 {
		t.Fatalf("ready room still listed: %+v", got)
	}

	if err := lobby.Start(roomID); err != nil {
		t.Fatal(err)
	}
	if err := lobby.Start(roomID); err != nil {
		t.Fatalf("restart err = %v", err)
	}

	room, ok := lobby.GetRoom(roomID)
	if !ok || room.Status != RoomPlaying || room.OpponentID != "bob" {
		t.Fatalf("room = %+v", room)
	}
	if !room.Seated("alice") || !room.Seated("bob") || room.Seated("carol") {
		t.Error("seat check wrong")
	}
}

func TestJoinMissingRoom(t *testing.T) {
	lobby, _ := newTestLobby(t)
	if err := lobby.JoinRoom("duel_missing", "bob"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("err = %v", err)
	}
	if _, err := lobby.CreateRoom("", "javascript"); !errors.Is(err, ErrInvalidRoom) {
		t.Fatalf("empty creator err = %v", err)
	}
}

func TestRoundResultExchange(t *testing.T) {
	lobby, _ := newTestLobby(t)
	roomID, _ := lobby.CreateRoom("alice", "javascript")
	_ = lobby.JoinRoom(roomID, "bob")

	result, ok := lobby.RoundResult(roomID, 0)
	if !ok || result.Creator != nil || result.Opponent != nil {
		t.Fatalf("empty result = %+v", result)
	}

	if err := lobby.SubmitAnswer(roomID, "alice", 0, intPtr(2), 20); err != nil {
		t.Fatal(err)
	}
	if err := lobby.SubmitAnswer(roomID, "bob", 0, nil, 0); err != nil {
		t.Fatal(err)
	}

	first, _ := lobby.RoundResult(roomID, 0)
	second, _ := lobby.RoundResult(roomID, 0)
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Fatalf("RoundResult not stable:\n%s\n%s", a, b)
	}

	if first.Creator == nil || first.Creator.Answer == nil || *first.Creator.Answer != 2 || first.Creator.TimeLeft != 20 {
		t.Errorf("creator = %+v", first.Creator)
	}
	if first.Opponent == nil || first.Opponent.Answer != nil {
		t.Errorf("opponent = %+v", first.Opponent)
	}
	if rec := first.OpponentOf("alice"); rec == nil || rec.PlayerID != "bob" {
		t.Errorf("OpponentOf(alice) = %+v", rec)
	}

	// A resubmission overwrites.
	_ = lobby.SubmitAnswer(roomID, "alice", 0, intPtr(1), 10)
	again, _ := lobby.RoundResult(roomID, 0)
	if *again.Creator.Answer != 1 {
		t.Errorf("overwrite answer = %d", *again.Creator.Answer)
	}

	if err := lobby.SubmitAnswer("duel_missing", "alice", 0, nil, 0); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("missing room err = %v", err)
	}
}

func TestAwaitOpponentReturnsPublishedAnswer(t *testing.T) {
	lobby, _ := newTestLobby(t)
	roomID, _ := lobby.CreateRoom("alice", "javascript")
	_ = lobby.JoinRoom(roomID, "bob")

	got := make(chan *AnswerRecord, 1)
	go func() {
		got <- lobby.AwaitOpponent(context.Background(), roomID, 0, "alice", time.Hour)
	}()

	// The answer may land before or after the waiter subscribes.
	time.Sleep(10 * time.Millisecond)
	_ = lobby.SubmitAnswer(roomID, "bob", 0, intPtr(3), 12)

	select {
	case rec := <-got:
		if rec == nil || *rec.Answer != 3 {
			t.Fatalf("record = %+v", rec)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("AwaitOpponent did not return")
	}
}

func TestAwaitOpponentTimesOut(t *testing.T) {
	clock := clockwork.NewFakeClock()
	lobby := NewLobby(kv.New(clock), clock)
	roomID, _ := lobby.CreateRoom("alice", "javascript")
	_ = lobby.JoinRoom(roomID, "bob")

	got := make(chan *AnswerRecord, 1)
	go func() {
		got <- lobby.AwaitOpponent(context.Background(), roomID, 0, "alice", 30*time.Second)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatal(err)
	}
	clock.Advance(30 * time.Second)

	select {
	case rec := <-got:
		if rec != nil {
			t.Fatalf("record = %+v, want nil", rec)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("AwaitOpponent did not time out")
	}
}

func TestFinishExpiresRoom(t *testing.T) {
	clock := clockwork.NewFakeClock()
	lobby := NewLobby(kv.New(clock), clock)
	roomID, _ := lobby.CreateRoom("alice", "javascript")

	sub := lobby.Subscribe(roomID)
	defer sub.Close()

	if err := lobby.Finish(roomID); err != nil {
		t.Fatal(err)
	}
	room, ok := lobby.GetRoom(roomID)
	if !ok || room.Status != RoomFinished {
		t.Fatalf("room = %+v", room)
	}

	var ev Event
	if err := json.Unmarshal([]byte(<-sub.C), &ev); err != nil || ev.Type != EventDuelFinished {
		t.Fatalf("event = %+v (%v)", ev, err)
	}

	clock.Advance(finishedRoomTTL + time.Second)
	if _, ok := lobby.GetRoom(roomID); ok {
		t.Error("finished room still present after TTL")
	}
}

func TestAbandonRequiresSeat(t *testing.T) {
	lobby, _ := newTestLobby(t)
	roomID, _ := lobby.CreateRoom("alice", "javascript")

	if err := lobby.Abandon(roomID, "mallory"); !errors.Is(err, ErrNotInRoom) {
		t.Fatalf("err = %v", err)
	}
	if err := lobby.Abandon(roomID, "alice"); err != nil {
		t.Fatal(err)
	}
	if got := lobby.ListAvailable("javascript"); len(got) != 0 {
		t.Errorf("abandoned room listed: %+v", got)
	}
}

func TestSweepStaleClosesOldWaitingRooms(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := kv.New(clock)
	lobby := NewLobby(store, clock)

	old, _ := lobby.CreateRoom("alice", "javascript")
	clock.Advance(20 * time.Minute)
	fresh, _ := lobby.CreateRoom("bob", "javascript")

	n, universes := lobby.SweepStale(15 * time.Minute)
	if n != 1 || len(universes) != 1 || universes[0] != "javascript" {
		t.Fatalf("swept %d in %v, want 1 in [javascript]", n, universes)
	}
	available := lobby.ListAvailable("javascript")
	if len(available) != 1 || available[0].ID != fresh {
		t.Fatalf("available = %+v", available)
	}
	if room, _ := lobby.GetRoom(old); room.Status != RoomFinished {
		t.Errorf("old room status = %s", room.Status)
	}

	sweeper, err := NewSweeper(lobby, store, clock, time.Minute, 15*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	clock.Advance(finishedRoomTTL + time.Second)
	if _, keys := sweeper.Sweep(); keys == 0 {
		t.Error("expected expired room keys to be purged")
	}
}

type recordingNotifier struct {
	universes []string
}

func (r *recordingNotifier) BroadcastUpdate(universeID string) {
	r.universes = append(r.universes, universeID)
}

func TestSweeperNotifiesLobbyWatchers(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := kv.New(clock)
	lobby := NewLobby(store, clock)
	sweeper, err := NewSweeper(lobby, store, clock, time.Minute, 15*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	notifier := &recordingNotifier{}
	sweeper.Notify(notifier)

	lobby.CreateRoom("alice", "javascript")
	lobby.CreateRoom("bob", "python")
	if sweeper.Sweep(); len(notifier.universes) != 0 {
		t.Fatalf("notified before rooms went stale: %v", notifier.universes)
	}

	clock.Advance(20 * time.Minute)
	if rooms, _ := sweeper.Sweep(); rooms != 2 {
		t.Fatalf("swept %d rooms", rooms)
	}
	if len(notifier.universes) != 2 || notifier.universes[0] != "javascript" || notifier.universes[1] != "python" {
		t.Errorf("notified %v", notifier.universes)
	}
}

func TestSharedQuestions(t *testing.T) {
	lobby, _ := newTestLobby(t)
	roomID, _ := lobby.CreateRoom("alice", "javascript")

	if qs := lobby.Questions(roomID); qs != nil {
		t.Fatalf("questions before set = %v", qs)
	}
	want := testQuestions(3)
	if err := lobby.SetQuestions(roomID, want); err != nil {
		t.Fatal(err)
	}
	got := lobby.Questions(roomID)
	if len(got) != 3 || got[2].ID != want[2].ID {
		t.Fatalf("questions = %+v", got)
	}
}
