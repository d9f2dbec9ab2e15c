package game

import (
	"context"
	"encoding/json"
	"log"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	DefaultBotAccuracy  = 0.6
	DefaultBotThinkTime = 4 * time.Second
)

// SimulatedOpponent takes the second seat of a duel room and answers each
// round some time after the human does.
type SimulatedOpponent struct {
	ID string

	lobby        *Lobby
	clock        clockwork.Clock
	accuracy     float64
	think        time.Duration
	questionTime time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSimulatedOpponent(lobby *Lobby, clock clockwork.Clock, accuracy float64, think, questionTime time.Duration, seed uint64) *SimulatedOpponent {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if accuracy < 0 || accuracy > 1 {
		accuracy = DefaultBotAccuracy
	}
	if think < 0 {
		think = DefaultBotThinkTime
	}
	if questionTime <= 0 {
		questionTime = DefaultQuestionTime
	}
	return &SimulatedOpponent{
		ID:           "bot_" + uuid.NewString(),
		lobby:        lobby,
		clock:        clock,
		accuracy:     accuracy,
		think:        think,
		questionTime: questionTime,
		rng:          rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Enter joins roomID and plays in the background until the room finishes
// or ctx is done. The returned channel closes when the bot stops.
func (b *SimulatedOpponent) Enter(ctx context.Context, roomID string) (<-chan struct{}, error) {
	sub := b.lobby.Subscribe(roomID)
	if err := b.lobby.JoinRoom(roomID, b.ID); err != nil {
		sub.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer sub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, open := <-sub.C:
				if !open {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg), &ev); err != nil {
					continue
				}
				switch {
				case ev.Type == EventDuelFinished:
					return
				case ev.Type == EventAnswerSubmitted && ev.PlayerID != b.ID && ev.QuestionIndex != nil:
					if !b.answer(ctx, roomID, *ev.QuestionIndex) {
						return
					}
				}
			}
		}
	}()
	return done, nil
}

// answer reports false when ctx ended while thinking.
func (b *SimulatedOpponent) answer(ctx context.Context, roomID string, questionIndex int) bool {
	questions := b.lobby.Questions(roomID)
	if questionIndex < 0 || questionIndex >= len(questions) {
		return true
	}
	if result, ok := b.lobby.RoundResult(roomID, questionIndex); ok && result.OpponentID == b.ID && result.Opponent != nil {
		return true
	}

	if b.think > 0 {
		timer := b.clock.NewTimer(b.think)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.Chan():
		}
	}

	q := questions[questionIndex]
	choice := b.pick(q.CorrectAnswer, len(q.Options))
	timeLeft := max(0, int((b.questionTime-b.think)/time.Second))
	if err := b.lobby.SubmitAnswer(roomID, b.ID, questionIndex, &choice, timeLeft); err != nil {
		log.Printf("Bot %s failed to answer in room %s: %v", b.ID, roomID, err)
	}
	return true
}

func (b *SimulatedOpponent) pick(correct, options int) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if options < 2 || b.rng.Float64() < b.accuracy {
		return correct
	}
	wrong := b.rng.IntN(options - 1)
	if wrong >= correct {
		wrong++
	}
	return wrong
}

// BotFactory builds simulated opponents that share one configuration.
type BotFactory struct {
	Lobby        *Lobby
	Clock        clockwork.Clock
	Accuracy     float64
	ThinkTime    time.Duration
	QuestionTime time.Duration

	seed atomic.Uint64
}

func (f *BotFactory) New() *SimulatedOpponent {
	return NewSimulatedOpponent(f.Lobby, f.Clock, f.Accuracy, f.ThinkTime, f.QuestionTime, f.seed.Add(1))
}
