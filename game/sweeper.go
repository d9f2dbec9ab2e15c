package game

import (
	"fmt"
	"log"
	"sync"
	"time"

	"codequest/kv"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

const (
	DefaultSweepInterval = time.Minute
	DefaultRoomMaxAge    = 15 * time.Minute
)

// RoomsNotifier is told when a universe's list of open rooms changes.
type RoomsNotifier interface {
	BroadcastUpdate(universeID string)
}

// Sweeper periodically closes duel rooms nobody joined and drops expired
// keys from the shared store.
type Sweeper struct {
	scheduler gocron.Scheduler
	lobby     *Lobby
	kv        *kv.Store
	maxAge    time.Duration

	mu       sync.Mutex
	notifier RoomsNotifier
}

func NewSweeper(lobby *Lobby, store *kv.Store, clock clockwork.Clock, interval, maxAge time.Duration) (*Sweeper, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if maxAge <= 0 {
		maxAge = DefaultRoomMaxAge
	}

	scheduler, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	s := &Sweeper{scheduler: scheduler, lobby: lobby, kv: store, maxAge: maxAge}
	if _, err := scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { s.Sweep() }),
	); err != nil {
		return nil, fmt.Errorf("failed to schedule sweep: %w", err)
	}
	return s, nil
}

// Notify registers n to hear about universes whose open rooms were swept.
func (s *Sweeper) Notify(n RoomsNotifier) {
	s.mu.Lock()
	s.notifier = n
	s.mu.Unlock()
}

func (s *Sweeper) Start() {
	s.scheduler.Start()
}

func (s *Sweeper) Shutdown() error {
	return s.scheduler.Shutdown()
}

// Sweep runs one pass and reports how many rooms and keys it removed.
func (s *Sweeper) Sweep() (rooms, keys int) {
	rooms, universes := s.lobby.SweepStale(s.maxAge)
	keys = s.kv.PurgeExpired()

	s.mu.Lock()
	notifier := s.notifier
	s.mu.Unlock()
	if notifier != nil {
		for _, universeID := range universes {
			notifier.BroadcastUpdate(universeID)
		}
	}
	if rooms > 0 || keys > 0 {
		log.Printf("Sweep removed %d stale rooms and %d expired keys", rooms, keys)
	}
	return rooms, keys
}
