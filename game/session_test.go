package game

import (
	"errors"
	"testing"
	"time"

	"codequest/models"

	"github.com/jonboulle/clockwork"
)

func intPtr(v int) *int { return &v }

func testQuestions(n int) []models.Question {
	qs := make([]models.Question, n)
	for i := range qs {
		qs[i] = models.Question{
			ID:            "q" + string(rune('a'+i)),
			UniverseID:    "javascript",
			Level:         1,
			Prompt:        "question",
			Options:       []string{"a", "b", "c", "d"},
			CorrectAnswer: i % 4,
			Explanation:   "because",
		}
	}
	return qs
}

func newTestSession(t *testing.T, mode string, n int, scorer Scorer) (*Session, *models.GameSession) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	gs := &models.GameSession{
		ID:         "s1",
		Mode:       mode,
		UniverseID: "javascript",
		Questions:  testQuestions(n),
		StartTime:  clock.Now(),
		PlayerID:   "p1",
	}
	s, err := NewSession(gs, scorer, clock, 30*time.Second)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s, gs
}

func TestNewSessionRejectsEmptyQuestions(t *testing.T) {
	_, err := NewSession(&models.GameSession{ID: "s1"}, nil, nil, 0)
	if !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("err = %v, want ErrNoQuestions", err)
	}
}

func TestSoloSessionScoresAndCompletes(t *testing.T) {
	s, _ := newTestSession(t, models.ModeSolo, 3, nil)

	if s.Phase() != PhaseAwaitingAnswer || s.Index() != 0 || s.TimeLeft() != 30 {
		t.Fatalf("initial state = %s/%d/%d", s.Phase(), s.Index(), s.TimeLeft())
	}

	answers := []*int{intPtr(0), intPtr(3), intPtr(2)}
	for i, a := range answers {
		round, err := s.Submit(a)
		if err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
		if s.Phase() != PhaseRevealing {
			t.Fatalf("phase after submit = %s", s.Phase())
		}
		if round.CorrectAnswer != i%4 {
			t.Errorf("round %d correct answer = %d", i, round.CorrectAnswer)
		}
		if err := s.Advance(); err != nil {
			t.Fatalf("Advance %d: %v", i, err)
		}
	}

	if s.Phase() != PhaseComplete {
		t.Fatalf("phase = %s, want complete", s.Phase())
	}
	gs := s.Game()
	if gs.Score != 2 {
		t.Errorf("score = %d, want 2", gs.Score)
	}
	if gs.EndTime == nil {
		t.Fatal("EndTime not set")
	}
	if len(s.Rounds()) != 3 {
		t.Errorf("rounds = %d, want 3", len(s.Rounds()))
	}
}

func TestSoloSessionPartialScore(t *testing.T) {
	s, _ := newTestSession(t, models.ModeSolo, 5, nil)

	for i := 0; i < 5; i++ {
		answer := (s.Current().CorrectAnswer + 1) % 4
		if i >= 1 && i <= 3 {
			answer = s.Current().CorrectAnswer
		}
		if _, err := s.Submit(intPtr(answer)); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
		if err := s.Advance(); err != nil {
			t.Fatalf("Advance %d: %v", i, err)
		}
	}

	gs := s.Game()
	if s.Phase() != PhaseComplete || gs.EndTime == nil {
		t.Fatalf("phase=%s endTime=%v", s.Phase(), gs.EndTime)
	}
	if gs.Score != 3 {
		t.Errorf("score = %d, want 3", gs.Score)
	}
}

func TestSubmitOutsideAnsweringIsIgnored(t *testing.T) {
	s, gs := newTestSession(t, models.ModeSolo, 2, nil)

	if _, err := s.Submit(intPtr(0)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Submit(intPtr(0)); !errors.Is(err, ErrNotAwaitingAnswer) {
		t.Fatalf("second submit err = %v", err)
	}
	if gs.Score != 1 {
		t.Errorf("score = %d, want 1", gs.Score)
	}
	if err := s.Advance(); err != nil {
		t.Fatal(err)
	}
	if err := s.Advance(); !errors.Is(err, ErrNotRevealing) {
		t.Fatalf("advance while answering err = %v", err)
	}
}

func TestTickTimesOutWithNoAnswer(t *testing.T) {
	s, gs := newTestSession(t, models.ModeSolo, 1, nil)

	for i := 0; i < 29; i++ {
		if _, fired := s.Tick(); fired {
			t.Fatalf("timed out early at tick %d", i)
		}
	}
	round, fired := s.Tick()
	if !fired {
		t.Fatal("expected timeout on 30th tick")
	}
	if !round.TimedOut || round.Answer != nil || round.Correct {
		t.Errorf("round = %+v", round)
	}
	if s.TimeLeft() != 0 {
		t.Errorf("timeLeft = %d", s.TimeLeft())
	}
	if gs.Score != 0 {
		t.Errorf("score = %d", gs.Score)
	}
	if _, fired := s.Tick(); fired {
		t.Error("tick fired again while revealing")
	}
}

func TestNilAnswerIsNeverCorrect(t *testing.T) {
	q := models.Question{CorrectAnswer: 0}
	if q.IsCorrect(nil) {
		t.Error("nil answer matched option 0")
	}
	if !q.IsCorrect(intPtr(0)) {
		t.Error("option 0 did not match")
	}
}

func TestDuelSessionWaitsForOpponent(t *testing.T) {
	s, gs := newTestSession(t, models.ModeDuel, 1, SpeedScorer{})

	for i := 0; i < 6; i++ {
		s.Tick()
	}
	if _, err := s.Submit(intPtr(0)); err != nil {
		t.Fatal(err)
	}
	if s.Phase() != PhaseAwaitingOpponent {
		t.Fatalf("phase = %s", s.Phase())
	}
	if err := s.Advance(); !errors.Is(err, ErrNotRevealing) {
		t.Fatalf("advance before resolve err = %v", err)
	}

	round, err := s.ResolveRound(&AnswerRecord{PlayerID: "p2", Answer: intPtr(0), TimeLeft: 9})
	if err != nil {
		t.Fatal(err)
	}
	// 24s left scores 8, 9s left scores 3.
	if round.Points != 8 || round.OpponentPoints != 3 || !round.OpponentCorrect {
		t.Errorf("round = %+v", round)
	}
	if gs.Score != 8 || gs.OpponentScore != 3 {
		t.Errorf("scores = %d/%d", gs.Score, gs.OpponentScore)
	}
	if _, err := s.ResolveRound(nil); !errors.Is(err, ErrNotAwaitingOutcome) {
		t.Errorf("second resolve err = %v", err)
	}
}

func TestDuelForfeitScoresNothingForOpponent(t *testing.T) {
	s, gs := newTestSession(t, models.ModeDuel, 1, nil)

	if _, err := s.Submit(intPtr(3)); err != nil {
		t.Fatal(err)
	}
	round, err := s.ResolveRound(nil)
	if err != nil {
		t.Fatal(err)
	}
	if round.Opponent != nil || round.OpponentPoints != 0 {
		t.Errorf("round = %+v", round)
	}
	if gs.Score != 0 || gs.OpponentScore != 0 {
		t.Errorf("scores = %d/%d", gs.Score, gs.OpponentScore)
	}
}

func TestResolveRoundRejectsSolo(t *testing.T) {
	s, _ := newTestSession(t, models.ModeSolo, 1, nil)
	if _, err := s.ResolveRound(nil); !errors.Is(err, ErrNotDuel) {
		t.Fatalf("err = %v", err)
	}
}

func TestScorers(t *testing.T) {
	tests := []struct {
		name     string
		scorer   Scorer
		correct  bool
		timeLeft int
		want     int
	}{
		{"flat correct", FlatScorer{}, true, 30, 1},
		{"flat wrong", FlatScorer{}, false, 30, 0},
		{"speed fast", SpeedScorer{}, true, 30, 10},
		{"speed slow", SpeedScorer{}, true, 2, 1},
		{"speed zero time", SpeedScorer{}, true, 0, 1},
		{"speed wrong", SpeedScorer{}, false, 30, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.scorer.Points(tt.correct, tt.timeLeft); got != tt.want {
				t.Errorf("Points = %d, want %d", got, tt.want)
			}
		})
	}

	if _, err := ScorerByName("bogus"); !errors.Is(err, ErrUnknownScoring) {
		t.Errorf("ScorerByName(bogus) err = %v", err)
	}
	if s, _ := ScorerByName(""); s.Name() != ScoringFlat {
		t.Errorf("default scorer = %s", s.Name())
	}
}
