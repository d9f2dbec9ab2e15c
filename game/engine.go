package game

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"codequest/models"
	"codequest/store"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNotSessionOwner = errors.New("session belongs to another player")
	ErrUnknownMode     = errors.New("unknown game mode")
	ErrRoomRequired    = errors.New("duel sessions need a room")
)

const (
	DefaultRevealDelay  = 3 * time.Second
	DefaultOpponentWait = 30 * time.Second
)

type Options struct {
	QuestionTime  time.Duration
	RevealDelay   time.Duration
	OpponentWait  time.Duration
	QuestionLimit int
}

func (o Options) withDefaults() Options {
	if o.QuestionTime <= 0 {
		o.QuestionTime = DefaultQuestionTime
	}
	if o.RevealDelay <= 0 {
		o.RevealDelay = DefaultRevealDelay
	}
	if o.OpponentWait <= 0 {
		o.OpponentWait = DefaultOpponentWait
	}
	if o.QuestionLimit <= 0 {
		o.QuestionLimit = DefaultQuestionLimit
	}
	return o
}

type liveSession struct {
	mu       sync.Mutex
	id       string
	playerID string
	roomID   string
	session  *Session
	ctx      context.Context
	stop     context.CancelFunc
	advance  clockwork.Timer
}

// Engine drives live sessions: countdown timers, the duel answer exchange
// and the hand-off to the ledger once a session completes.
type Engine struct {
	mu      sync.Mutex
	store   store.Store
	catalog *Catalog
	lobby   *Lobby
	ledger  *Ledger
	clock   clockwork.Clock
	opts    Options
	live    map[string]*liveSession

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewEngine(s store.Store, catalog *Catalog, lobby *Lobby, ledger *Ledger, clock clockwork.Clock, opts Options) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:   s,
		catalog: catalog,
		lobby:   lobby,
		ledger:  ledger,
		clock:   clock,
		opts:    opts.withDefaults(),
		live:    make(map[string]*liveSession),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// StartSession creates a session for playerID. Duel sessions join the
// question list shared by the room and start the room once both seats are
// filled.
func (e *Engine) StartSession(playerID, universeID, mode, difficulty, scoring, roomID string) (*SessionView, error) {
	universe, ok := e.catalog.Universe(universeID)
	if !ok {
		return nil, ErrUnknownUniverse
	}
	switch mode {
	case "":
		mode = models.ModeSolo
	case models.ModeSolo, models.ModeDuel, models.ModeLeague, models.ModeTournament:
	default:
		return nil, ErrUnknownMode
	}

	var scorer Scorer = FlatScorer{}
	if mode == models.ModeDuel {
		var err error
		if scorer, err = ScorerByName(scoring); err != nil {
			return nil, err
		}
	}

	level := 1
	stats, err := e.store.GetStats(playerID, universe.ID)
	if err != nil {
		return nil, err
	}
	if stats != nil && stats.Level > 0 {
		level = stats.Level
	}
	if difficulty == "" {
		difficulty = DifficultyForLevel(level)
	}

	gs := &models.GameSession{
		ID:         uuid.NewString(),
		Mode:       mode,
		UniverseID: universe.ID,
		Difficulty: difficulty,
		StartTime:  e.clock.Now(),
		PlayerID:   playerID,
	}

	if mode == models.ModeDuel {
		if err := e.joinDuel(gs, roomID, level); err != nil {
			return nil, err
		}
	} else {
		gs.Questions = e.catalog.Questions(universe.ID, level, e.opts.QuestionLimit)
	}

	session, err := NewSession(gs, scorer, e.clock, e.opts.QuestionTime)
	if err != nil {
		return nil, err
	}
	if err := e.store.SaveSession(gs); err != nil {
		return nil, err
	}

	ctx, stop := context.WithCancel(e.ctx)
	ls := &liveSession{
		id:       gs.ID,
		playerID: playerID,
		roomID:   gs.RoomID,
		session:  session,
		ctx:      ctx,
		stop:     stop,
	}

	e.mu.Lock()
	e.live[gs.ID] = ls
	e.mu.Unlock()

	e.wg.Add(1)
	go e.runTimer(ctx, ls)

	log.Printf("Session %s started: player=%s universe=%s mode=%s questions=%d", gs.ID, playerID, universe.ID, mode, len(gs.Questions))

	ls.mu.Lock()
	defer ls.mu.Unlock()
	return e.viewLocked(ls), nil
}

func (e *Engine) joinDuel(gs *models.GameSession, roomID string, level int) error {
	if roomID == "" {
		return ErrRoomRequired
	}

	// Serializes question generation so both seats share one list.
	e.mu.Lock()
	defer e.mu.Unlock()

	room, ok := e.lobby.GetRoom(roomID)
	if !ok {
		return ErrRoomNotFound
	}
	if !room.Seated(gs.PlayerID) {
		return ErrNotInRoom
	}
	if room.UniverseID != gs.UniverseID {
		return ErrInvalidRoom
	}

	questions := e.lobby.Questions(roomID)
	if len(questions) == 0 {
		questions = e.catalog.Questions(gs.UniverseID, level, e.opts.QuestionLimit)
		if err := e.lobby.SetQuestions(roomID, questions); err != nil {
			return err
		}
	}
	if room.Status == RoomReady {
		if err := e.lobby.Start(roomID); err != nil {
			return err
		}
	}

	gs.Questions = questions
	gs.RoomID = roomID
	if gs.PlayerID == room.CreatorID {
		gs.OpponentID = room.OpponentID
	} else {
		gs.OpponentID = room.CreatorID
	}
	return nil
}

func (e *Engine) runTimer(ctx context.Context, ls *liveSession) {
	defer e.wg.Done()

	ticker := e.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			e.tick(ls)
		}
	}
}

func (e *Engine) tick(ls *liveSession) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	round, timedOut := ls.session.Tick()
	if !timedOut {
		return
	}

	if ls.roomID != "" {
		e.beginExchangeLocked(ls, round)
		return
	}

	e.persistLocked(ls)
	e.scheduleAdvanceLocked(ls)
}

// scheduleAdvanceLocked arms the reveal timer. The pending timer counts
// against e.wg until it fires or is cancelled.
func (e *Engine) scheduleAdvanceLocked(ls *liveSession) {
	e.wg.Add(1)
	ls.advance = e.clock.AfterFunc(e.opts.RevealDelay, func() {
		defer e.wg.Done()
		if e.ctx.Err() != nil {
			return
		}
		if _, err := e.advance(ls); err != nil && !errors.Is(err, ErrNotRevealing) {
			log.Printf("Auto-advance of session %s failed: %v", ls.id, err)
		}
	})
}

func (e *Engine) cancelAdvanceLocked(ls *liveSession) {
	if ls.advance == nil {
		return
	}
	if ls.advance.Stop() {
		e.wg.Done()
	}
	ls.advance = nil
}

func (e *Engine) session(sessionID, playerID string) (*liveSession, error) {
	e.mu.Lock()
	ls, ok := e.live[sessionID]
	e.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if ls.playerID != playerID {
		return nil, ErrNotSessionOwner
	}
	return ls, nil
}

// SubmitAnswer records the player's answer to the current question. For
// duels it waits for the opponent's answer until OpponentWait elapses or ctx
// is done, whichever comes first, and returns the state at that point.
func (e *Engine) SubmitAnswer(ctx context.Context, sessionID, playerID string, answer *int) (*SessionView, error) {
	ls, err := e.session(sessionID, playerID)
	if err != nil {
		return nil, err
	}

	ls.mu.Lock()
	round, err := ls.session.Submit(answer)
	if err != nil {
		ls.mu.Unlock()
		return nil, err
	}

	if ls.roomID == "" {
		e.persistLocked(ls)
		view := e.viewLocked(ls)
		ls.mu.Unlock()
		return view, nil
	}

	done := e.beginExchangeLocked(ls, round)
	ls.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	return e.viewLocked(ls), nil
}

// beginExchangeLocked publishes the player's answer to the room and resolves
// the round in the background once the opponent answers or forfeits.
func (e *Engine) beginExchangeLocked(ls *liveSession, round Round) <-chan struct{} {
	done := make(chan struct{})

	e.syncRoomLocked(ls)
	qi := round.QuestionIndex
	if err := e.lobby.SubmitAnswer(ls.roomID, ls.playerID, qi, round.Answer, round.TimeLeft); err != nil {
		log.Printf("Failed to publish answer for session %s: %v", ls.id, err)
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer close(done)

		opponent := e.lobby.AwaitOpponent(ls.ctx, ls.roomID, qi, ls.playerID, e.opts.OpponentWait)

		ls.mu.Lock()
		defer ls.mu.Unlock()
		if ls.session.Phase() != PhaseAwaitingOpponent || ls.session.Index() != qi {
			return
		}
		e.syncRoomLocked(ls)
		if opponent == nil {
			log.Printf("Opponent forfeited round %d of session %s", qi, ls.id)
		}
		if _, err := ls.session.ResolveRound(opponent); err != nil {
			log.Printf("Failed to resolve round %d of session %s: %v", qi, ls.id, err)
			return
		}
		e.persistLocked(ls)
	}()
	return done
}

// syncRoomLocked picks up an opponent who took the second seat after the
// session started and moves the room to playing once it is ready.
func (e *Engine) syncRoomLocked(ls *liveSession) {
	if ls.session.OpponentID() != "" {
		return
	}
	room, ok := e.lobby.GetRoom(ls.roomID)
	if !ok || room.OpponentID == "" {
		return
	}
	if ls.playerID == room.CreatorID {
		ls.session.SetOpponent(room.OpponentID)
	} else {
		ls.session.SetOpponent(room.CreatorID)
	}
	if room.Status == RoomReady {
		if err := e.lobby.Start(ls.roomID); err != nil && !errors.Is(err, ErrRoomNotReady) {
			log.Printf("Failed to start room %s: %v", ls.roomID, err)
		}
	}
}

// Advance moves past the revealed round. Completing the last question
// records the session in the ledger and returns any badges it earned.
func (e *Engine) Advance(sessionID, playerID string) (*SessionView, error) {
	ls, err := e.session(sessionID, playerID)
	if err != nil {
		return nil, err
	}
	return e.advance(ls)
}

func (e *Engine) advance(ls *liveSession) (*SessionView, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	e.cancelAdvanceLocked(ls)
	if err := ls.session.Advance(); err != nil {
		return nil, err
	}
	if ls.session.Phase() != PhaseComplete {
		e.persistLocked(ls)
		return e.viewLocked(ls), nil
	}

	view, err := e.completeLocked(ls)
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (e *Engine) completeLocked(ls *liveSession) (*SessionView, error) {
	ls.stop()
	e.mu.Lock()
	delete(e.live, ls.id)
	e.mu.Unlock()

	gs := ls.session.Game()
	if err := e.store.SaveSession(gs); err != nil {
		return nil, err
	}

	badges, err := e.ledger.RecordSession(gs)
	if err != nil {
		return nil, err
	}

	if ls.roomID != "" {
		if err := e.lobby.Finish(ls.roomID); err != nil && !errors.Is(err, ErrRoomNotFound) {
			log.Printf("Failed to close room %s: %v", ls.roomID, err)
		}
	}

	log.Printf("Session %s complete: score=%d/%d badges=%d", gs.ID, gs.Score, len(gs.Questions), len(badges))

	view := e.viewLocked(ls)
	view.NewBadges = badges
	return view, nil
}

// GetSession returns the live state of a session, falling back to the
// stored record once the engine no longer drives it.
func (e *Engine) GetSession(sessionID, playerID string) (*SessionView, error) {
	ls, err := e.session(sessionID, playerID)
	if err == nil {
		ls.mu.Lock()
		defer ls.mu.Unlock()
		return e.viewLocked(ls), nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}

	gs, err := e.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if gs == nil {
		return nil, ErrSessionNotFound
	}
	if gs.PlayerID != playerID {
		return nil, ErrNotSessionOwner
	}

	phase := PhaseAbandoned
	if gs.Completed() {
		phase = PhaseComplete
	}
	return viewOf(gs, phase), nil
}

// Abandon stops driving a session. A duel room is closed for both seats.
func (e *Engine) Abandon(sessionID, playerID string) error {
	ls, err := e.session(sessionID, playerID)
	if err != nil {
		return err
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	ls.stop()
	e.cancelAdvanceLocked(ls)
	e.mu.Lock()
	delete(e.live, ls.id)
	e.mu.Unlock()

	e.persistLocked(ls)
	if ls.roomID != "" {
		if err := e.lobby.Abandon(ls.roomID, playerID); err != nil && !errors.Is(err, ErrRoomNotFound) {
			return err
		}
	}
	return nil
}

// Close stops every timer and waits for in-flight exchanges.
func (e *Engine) Close() {
	e.cancel()

	e.mu.Lock()
	live := make([]*liveSession, 0, len(e.live))
	for _, ls := range e.live {
		live = append(live, ls)
	}
	e.mu.Unlock()

	for _, ls := range live {
		ls.mu.Lock()
		e.cancelAdvanceLocked(ls)
		ls.mu.Unlock()
	}

	e.wg.Wait()
}

func (e *Engine) persistLocked(ls *liveSession) {
	if err := e.store.SaveSession(ls.session.Game()); err != nil {
		log.Printf("Failed to save session %s: %v", ls.id, err)
	}
}

func (e *Engine) viewLocked(ls *liveSession) *SessionView {
	s := ls.session
	view := viewOf(s.Game(), s.Phase())
	view.Scoring = s.Scorer().Name()
	view.TimeLeft = s.TimeLeft()

	switch s.Phase() {
	case PhaseAwaitingAnswer, PhaseAwaitingOpponent:
		view.Question = NewQuestionView(s.Current())
	case PhaseRevealing, PhaseComplete:
		view.Question = NewQuestionView(s.Current())
		round := s.LastRound()
		view.LastRound = &round
	}
	return view
}
