package game

import (
	"errors"
	"time"

	"codequest/models"

	"github.com/jonboulle/clockwork"
)

type Phase string

const (
	PhaseAwaitingAnswer   Phase = "awaiting_answer"
	PhaseAwaitingOpponent Phase = "awaiting_opponent"
	PhaseRevealing        Phase = "revealing"
	PhaseComplete         Phase = "complete"
)

const DefaultQuestionTime = 30 * time.Second

var (
	ErrNoQuestions        = errors.New("session has no questions")
	ErrNotAwaitingAnswer  = errors.New("session is not accepting answers")
	ErrNotAwaitingOutcome = errors.New("session is not waiting for the opponent")
	ErrNotRevealing       = errors.New("session is not revealing a round")
	ErrNotDuel            = errors.New("session is not a duel")
)

// Round is the outcome of one question, filled in as the round progresses.
type Round struct {
	QuestionIndex   int           `json:"questionIndex"`
	Answer          *int          `json:"answer"`
	TimedOut        bool          `json:"timedOut"`
	TimeLeft        int           `json:"timeLeft"`
	Correct         bool          `json:"correct"`
	Points          int           `json:"points"`
	CorrectAnswer   int           `json:"correctAnswer"`
	Explanation     string        `json:"explanation"`
	Opponent        *AnswerRecord `json:"opponent,omitempty"`
	OpponentCorrect bool          `json:"opponentCorrect,omitempty"`
	OpponentPoints  int           `json:"opponentPoints,omitempty"`
}

// Session walks one player through an ordered question list. It is not safe
// for concurrent use; Engine serializes access.
type Session struct {
	game         *models.GameSession
	scorer       Scorer
	clock        clockwork.Clock
	questionTime int
	phase        Phase
	timeLeft     int
	round        Round
	rounds       []Round
}

func NewSession(gs *models.GameSession, scorer Scorer, clock clockwork.Clock, questionTime time.Duration) (*Session, error) {
	if len(gs.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	if scorer == nil {
		scorer = FlatScorer{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if questionTime <= 0 {
		questionTime = DefaultQuestionTime
	}

	s := &Session{
		game:         gs,
		scorer:       scorer,
		clock:        clock,
		questionTime: int(questionTime / time.Second),
	}
	s.enterQuestion()
	return s, nil
}

func (s *Session) enterQuestion() {
	s.phase = PhaseAwaitingAnswer
	s.timeLeft = s.questionTime
	s.round = Round{QuestionIndex: s.game.CurrentQuestionIndex}
}

func (s *Session) isDuel() bool {
	return s.game.Mode == models.ModeDuel
}

func (s *Session) Phase() Phase       { return s.phase }
func (s *Session) TimeLeft() int      { return s.timeLeft }
func (s *Session) Scorer() Scorer     { return s.scorer }
func (s *Session) Rounds() []Round    { return append([]Round{}, s.rounds...) }
func (s *Session) LastRound() Round   { return s.round }
func (s *Session) Index() int         { return s.game.CurrentQuestionIndex }
func (s *Session) QuestionCount() int { return len(s.game.Questions) }

func (s *Session) Current() models.Question {
	return s.game.Questions[s.game.CurrentQuestionIndex]
}

func (s *Session) IsLastQuestion() bool {
	return s.game.CurrentQuestionIndex == len(s.game.Questions)-1
}

// SetOpponent records the duel opponent once they take the second seat.
func (s *Session) SetOpponent(playerID string) {
	s.game.OpponentID = playerID
}

func (s *Session) OpponentID() string { return s.game.OpponentID }

// Game returns a copy of the underlying session record.
func (s *Session) Game() *models.GameSession {
	cp := *s.game
	cp.Questions = append([]models.Question{}, s.game.Questions...)
	if s.game.EndTime != nil {
		end := *s.game.EndTime
		cp.EndTime = &end
	}
	return &cp
}

// Tick counts down one second. When the timer reaches zero it submits "no
// answer" and returns the resulting round and true.
func (s *Session) Tick() (Round, bool) {
	if s.phase != PhaseAwaitingAnswer {
		return Round{}, false
	}
	s.timeLeft--
	if s.timeLeft > 0 {
		return Round{}, false
	}
	s.timeLeft = 0
	round, _ := s.submit(nil, true)
	return round, true
}

// Submit records the player's answer for the current question. A nil answer
// means the player gave none.
func (s *Session) Submit(answer *int) (Round, error) {
	if s.phase != PhaseAwaitingAnswer {
		return Round{}, ErrNotAwaitingAnswer
	}
	return s.submit(answer, false)
}

func (s *Session) submit(answer *int, timedOut bool) (Round, error) {
	q := s.Current()
	correct := q.IsCorrect(answer)

	s.round.Answer = copyAnswer(answer)
	s.round.TimedOut = timedOut
	s.round.TimeLeft = s.timeLeft
	s.round.Correct = correct
	if correct {
		s.game.CorrectAnswers++
	}

	if s.isDuel() {
		s.phase = PhaseAwaitingOpponent
		return s.round, nil
	}

	s.round.Points = s.scorer.Points(correct, s.timeLeft)
	s.game.Score += s.round.Points
	s.reveal()
	return s.round, nil
}

// ResolveRound scores both duel seats once the opponent's record is known.
// A nil opponent forfeits the round.
func (s *Session) ResolveRound(opponent *AnswerRecord) (Round, error) {
	if !s.isDuel() {
		return Round{}, ErrNotDuel
	}
	if s.phase != PhaseAwaitingOpponent {
		return Round{}, ErrNotAwaitingOutcome
	}

	q := s.Current()
	s.round.Points = s.scorer.Points(s.round.Correct, s.round.TimeLeft)
	s.game.Score += s.round.Points

	if opponent != nil {
		rec := *opponent
		rec.Answer = copyAnswer(opponent.Answer)
		s.round.Opponent = &rec
		s.round.OpponentCorrect = q.IsCorrect(rec.Answer)
		s.round.OpponentPoints = s.scorer.Points(s.round.OpponentCorrect, rec.TimeLeft)
		s.game.OpponentScore += s.round.OpponentPoints
	}

	s.reveal()
	return s.round, nil
}

func (s *Session) reveal() {
	q := s.Current()
	s.round.CorrectAnswer = q.CorrectAnswer
	s.round.Explanation = q.Explanation
	s.rounds = append(s.rounds, s.round)
	s.phase = PhaseRevealing
}

// Advance leaves the reveal phase. It completes the session after the last
// question and otherwise moves to the next one with a fresh timer.
func (s *Session) Advance() error {
	if s.phase != PhaseRevealing {
		return ErrNotRevealing
	}
	if s.IsLastQuestion() {
		end := s.clock.Now()
		s.game.EndTime = &end
		s.phase = PhaseComplete
		return nil
	}
	s.game.CurrentQuestionIndex++
	s.enterQuestion()
	return nil
}

func copyAnswer(answer *int) *int {
	if answer == nil {
		return nil
	}
	v := *answer
	return &v
}
