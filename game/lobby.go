package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"slices"
	"strconv"
	"sync"
	"time"

	"codequest/kv"
	"codequest/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	RoomWaiting  = "waiting"
	RoomReady    = "ready"
	RoomPlaying  = "playing"
	RoomFinished = "finished"
)

const (
	EventRoomCreated     = "room_created"
	EventPlayerJoined    = "player_joined"
	EventDuelStarted     = "duel_started"
	EventAnswerSubmitted = "answer_submitted"
	EventDuelFinished    = "duel_finished"
)

const (
	waitingRoomsKey = "waiting_duels"
	noAnswer        = "null"

	// finishedRoomTTL keeps a closed room readable for late result lookups.
	finishedRoomTTL = 10 * time.Minute
)

var (
	ErrRoomNotFound   = errors.New("duel room not found")
	ErrRoomNotWaiting = errors.New("duel room is not waiting for players")
	ErrRoomNotReady   = errors.New("duel room is not ready to start")
	ErrAlreadyInRoom  = errors.New("already in duel room")
	ErrNotInRoom      = errors.New("player is not seated in this duel room")
	ErrInvalidRoom    = errors.New("creator and universe are required")
)

type Room struct {
	ID         string    `json:"roomId"`
	Type       string    `json:"type"`
	UniverseID string    `json:"universe"`
	CreatorID  string    `json:"creator"`
	OpponentID string    `json:"opponent,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	StartedAt  time.Time `json:"startedAt,omitempty"`
}

// Seated reports whether playerID holds one of the room's two seats.
func (r *Room) Seated(playerID string) bool {
	return playerID != "" && (playerID == r.CreatorID || playerID == r.OpponentID)
}

// AnswerKey identifies one player's answer to one question of a room.
type AnswerKey struct {
	RoomID        string
	PlayerID      string
	QuestionIndex int
}

func (k AnswerKey) String() string {
	return fmt.Sprintf("answer:%q:%q:%d", k.RoomID, k.PlayerID, k.QuestionIndex)
}

type AnswerRecord struct {
	PlayerID  string    `json:"playerId"`
	Answer    *int      `json:"answer"`
	TimeLeft  int       `json:"timeLeft"`
	Timestamp time.Time `json:"timestamp"`
}

type RoundResult struct {
	CreatorID  string        `json:"creatorId"`
	OpponentID string        `json:"opponentId"`
	Creator    *AnswerRecord `json:"creator"`
	Opponent   *AnswerRecord `json:"opponent"`
}

// OpponentOf returns the record of the side that is not playerID.
func (r RoundResult) OpponentOf(playerID string) *AnswerRecord {
	switch playerID {
	case r.CreatorID:
		return r.Opponent
	case r.OpponentID:
		return r.Creator
	}
	return nil
}

// Event is published on a room's channel for every lifecycle change.
type Event struct {
	Type          string `json:"type"`
	RoomID        string `json:"roomId"`
	PlayerID      string `json:"playerId,omitempty"`
	QuestionIndex *int   `json:"questionIndex,omitempty"`
	Status        string `json:"status,omitempty"`
}

func roomKey(roomID string) string {
	return "room:" + roomID
}

func roomChannel(roomID string) string {
	return "room:" + roomID + ":events"
}

// Lobby coordinates duel rooms and the per-round answer exchange on top of
// the shared key-value store.
type Lobby struct {
	mu    sync.Mutex
	kv    *kv.Store
	clock clockwork.Clock
}

func NewLobby(store *kv.Store, clock clockwork.Clock) *Lobby {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Lobby{kv: store, clock: clock}
}

func (l *Lobby) CreateRoom(creatorID, universeID string) (string, error) {
	if creatorID == "" || universeID == "" {
		return "", ErrInvalidRoom
	}

	roomID := "duel_" + uuid.NewString()
	key := roomKey(roomID)

	l.mu.Lock()
	l.kv.HSet(key, "type", "duel")
	l.kv.HSet(key, "universe", universeID)
	l.kv.HSet(key, "creator", creatorID)
	l.kv.HSet(key, "status", RoomWaiting)
	l.kv.HSet(key, "created", strconv.FormatInt(l.clock.Now().UnixMilli(), 10))
	l.kv.RPush(waitingRoomsKey, roomID)
	l.mu.Unlock()

	l.publish(Event{Type: EventRoomCreated, RoomID: roomID, PlayerID: creatorID, Status: RoomWaiting})
	return roomID, nil
}

func (l *Lobby) GetRoom(roomID string) (*Room, bool) {
	return l.loadRoom(roomID)
}

func (l *Lobby) loadRoom(roomID string) (*Room, bool) {
	fields := l.kv.HGetAll(roomKey(roomID))
	if len(fields) == 0 || fields["status"] == "" {
		return nil, false
	}
	return &Room{
		ID:         roomID,
		Type:       fields["type"],
		UniverseID: fields["universe"],
		CreatorID:  fields["creator"],
		OpponentID: fields["opponent"],
		Status:     fields["status"],
		CreatedAt:  parseMillis(fields["created"]),
		StartedAt:  parseMillis(fields["started"]),
	}, true
}

func parseMillis(v string) time.Time {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil || ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func (l *Lobby) JoinRoom(roomID, joinerID string) error {
	l.mu.Lock()
	room, ok := l.loadRoom(roomID)
	if !ok {
		l.mu.Unlock()
		return ErrRoomNotFound
	}
	if room.Status != RoomWaiting {
		l.mu.Unlock()
		return ErrRoomNotWaiting
	}
	if room.CreatorID == joinerID {
		l.mu.Unlock()
		return ErrAlreadyInRoom
	}

	key := roomKey(roomID)
	l.kv.HSet(key, "opponent", joinerID)
	l.kv.HSet(key, "status", RoomReady)
	l.mu.Unlock()

	l.publish(Event{Type: EventPlayerJoined, RoomID: roomID, PlayerID: joinerID, Status: RoomReady})
	return nil
}

// ListAvailable returns rooms still waiting for an opponent in universeID,
// in creation order.
func (l *Lobby) ListAvailable(universeID string) []*Room {
	available := []*Room{}
	for _, roomID := range l.kv.LRange(waitingRoomsKey, 0, -1) {
		room, ok := l.loadRoom(roomID)
		if ok && room.Status == RoomWaiting && room.UniverseID == universeID {
			available = append(available, room)
		}
	}
	return available
}

// Start moves a ready room to playing. Starting a room that is already
// playing is a no-op.
func (l *Lobby) Start(roomID string) error {
	l.mu.Lock()
	room, ok := l.loadRoom(roomID)
	if !ok {
		l.mu.Unlock()
		return ErrRoomNotFound
	}
	if room.Status == RoomPlaying {
		l.mu.Unlock()
		return nil
	}
	if room.Status != RoomReady {
		l.mu.Unlock()
		return ErrRoomNotReady
	}

	key := roomKey(roomID)
	l.kv.HSet(key, "status", RoomPlaying)
	l.kv.HSet(key, "started", strconv.FormatInt(l.clock.Now().UnixMilli(), 10))
	l.kv.LRem(waitingRoomsKey, roomID)
	l.mu.Unlock()

	l.publish(Event{Type: EventDuelStarted, RoomID: roomID, Status: RoomPlaying})
	return nil
}

// SubmitAnswer records a player's answer for one question. A second
// submission for the same key overwrites the first.
func (l *Lobby) SubmitAnswer(roomID, playerID string, questionIndex int, answer *int, timeLeft int) error {
	if _, ok := l.loadRoom(roomID); !ok {
		return ErrRoomNotFound
	}

	value := noAnswer
	if answer != nil {
		value = strconv.Itoa(*answer)
	}

	hash := AnswerKey{RoomID: roomID, PlayerID: playerID, QuestionIndex: questionIndex}.String()
	l.kv.HSet(hash, "answer", value)
	l.kv.HSet(hash, "timeLeft", strconv.Itoa(timeLeft))
	l.kv.HSet(hash, "timestamp", strconv.FormatInt(l.clock.Now().UnixMilli(), 10))

	qi := questionIndex
	l.publish(Event{Type: EventAnswerSubmitted, RoomID: roomID, PlayerID: playerID, QuestionIndex: &qi})
	return nil
}

func (l *Lobby) answerRecord(key AnswerKey) *AnswerRecord {
	if key.PlayerID == "" {
		return nil
	}
	fields := l.kv.HGetAll(key.String())
	raw, ok := fields["answer"]
	if !ok {
		return nil
	}

	rec := &AnswerRecord{PlayerID: key.PlayerID, Timestamp: parseMillis(fields["timestamp"])}
	if raw != noAnswer {
		if v, err := strconv.Atoi(raw); err == nil {
			rec.Answer = &v
		}
	}
	rec.TimeLeft, _ = strconv.Atoi(fields["timeLeft"])
	return rec
}

// RoundResult reads both seats' records for a question. Either side may be
// nil when that player has not answered yet.
func (l *Lobby) RoundResult(roomID string, questionIndex int) (RoundResult, bool) {
	room, ok := l.loadRoom(roomID)
	if !ok {
		return RoundResult{}, false
	}
	return RoundResult{
		CreatorID:  room.CreatorID,
		OpponentID: room.OpponentID,
		Creator:    l.answerRecord(AnswerKey{RoomID: roomID, PlayerID: room.CreatorID, QuestionIndex: questionIndex}),
		Opponent:   l.answerRecord(AnswerKey{RoomID: roomID, PlayerID: room.OpponentID, QuestionIndex: questionIndex}),
	}, true
}

// AwaitOpponent blocks until the opponent of playerID has answered
// questionIndex, wait elapses, or ctx is done. It returns nil when no answer
// arrived in time.
func (l *Lobby) AwaitOpponent(ctx context.Context, roomID string, questionIndex int, playerID string, wait time.Duration) *AnswerRecord {
	sub := l.kv.Subscribe(roomChannel(roomID))
	defer sub.Close()

	timer := l.clock.NewTimer(wait)
	defer timer.Stop()

	for {
		result, ok := l.RoundResult(roomID, questionIndex)
		if !ok {
			return nil
		}
		if rec := result.OpponentOf(playerID); rec != nil {
			return rec
		}

		select {
		case <-ctx.Done():
			return nil
		case <-timer.Chan():
			return nil
		case _, open := <-sub.C:
			if !open {
				return nil
			}
		}
	}
}

// SetQuestions stores the question list both seats play.
func (l *Lobby) SetQuestions(roomID string, questions []models.Question) error {
	data, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("failed to encode room questions: %w", err)
	}
	l.kv.HSet(roomKey(roomID), "questions", string(data))
	return nil
}

func (l *Lobby) Questions(roomID string) []models.Question {
	raw, ok := l.kv.HGet(roomKey(roomID), "questions")
	if !ok {
		return nil
	}
	var questions []models.Question
	if err := json.Unmarshal([]byte(raw), &questions); err != nil {
		log.Printf("Discarding unreadable questions for room %s: %v", roomID, err)
		return nil
	}
	return questions
}

// Finish closes a room. Its records stay readable for a while, then expire.
func (l *Lobby) Finish(roomID string) error {
	l.mu.Lock()
	room, ok := l.loadRoom(roomID)
	if !ok {
		l.mu.Unlock()
		return ErrRoomNotFound
	}
	if room.Status == RoomFinished {
		l.mu.Unlock()
		return nil
	}
	l.closeLocked(room)
	l.mu.Unlock()

	l.publish(Event{Type: EventDuelFinished, RoomID: roomID, Status: RoomFinished})
	return nil
}

// Abandon closes the room when one of its seated players leaves.
func (l *Lobby) Abandon(roomID, playerID string) error {
	room, ok := l.loadRoom(roomID)
	if !ok {
		return ErrRoomNotFound
	}
	if !room.Seated(playerID) {
		return ErrNotInRoom
	}
	return l.Finish(roomID)
}

// SweepStale closes waiting rooms older than maxAge and drops list entries
// whose room has vanished. It returns how many entries were removed and the
// universes whose open rooms changed.
func (l *Lobby) SweepStale(maxAge time.Duration) (int, []string) {
	cutoff := l.clock.Now().Add(-maxAge)
	var closed, universes []string

	l.mu.Lock()
	removed := 0
	for _, roomID := range l.kv.LRange(waitingRoomsKey, 0, -1) {
		room, ok := l.loadRoom(roomID)
		switch {
		case !ok:
			l.kv.LRem(waitingRoomsKey, roomID)
			removed++
		case room.Status == RoomWaiting && room.CreatedAt.Before(cutoff):
			l.closeLocked(room)
			closed = append(closed, roomID)
			if !slices.Contains(universes, room.UniverseID) {
				universes = append(universes, room.UniverseID)
			}
			removed++
		case room.Status != RoomWaiting:
			l.kv.LRem(waitingRoomsKey, roomID)
		}
	}
	l.mu.Unlock()

	for _, roomID := range closed {
		l.publish(Event{Type: EventDuelFinished, RoomID: roomID, Status: RoomFinished})
	}
	return removed, universes
}

func (l *Lobby) closeLocked(room *Room) {
	key := roomKey(room.ID)
	questions := l.Questions(room.ID)

	l.kv.HSet(key, "status", RoomFinished)
	l.kv.LRem(waitingRoomsKey, room.ID)
	l.kv.ExpireHash(key, finishedRoomTTL)
	for i := range questions {
		for _, playerID := range []string{room.CreatorID, room.OpponentID} {
			if playerID != "" {
				l.kv.ExpireHash(AnswerKey{RoomID: room.ID, PlayerID: playerID, QuestionIndex: i}.String(), finishedRoomTTL)
			}
		}
	}
}

// Subscribe streams a room's events. Callers must Close the subscription.
func (l *Lobby) Subscribe(roomID string) *kv.Subscription {
	return l.kv.Subscribe(roomChannel(roomID))
}

func (l *Lobby) publish(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Failed to encode %s event for room %s: %v", ev.Type, ev.RoomID, err)
		return
	}
	l.kv.Publish(roomChannel(ev.RoomID), string(data))
}
