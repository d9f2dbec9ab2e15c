package game

import (
	"time"

	"codequest/models"
)

// PhaseAbandoned is reported for stored sessions that are no longer driven
// by the engine and never completed.
const PhaseAbandoned Phase = "abandoned"

// QuestionView is a question as shown to a player before the reveal.
type QuestionView struct {
	ID         string   `json:"id"`
	Level      int      `json:"level"`
	Prompt     string   `json:"question"`
	Options    []string `json:"options"`
	Difficulty string   `json:"difficulty"`
}

// NewQuestionView hides the answer key of q.
func NewQuestionView(q models.Question) *QuestionView {
	return &QuestionView{
		ID:         q.ID,
		Level:      q.Level,
		Prompt:     q.Prompt,
		Options:    append([]string{}, q.Options...),
		Difficulty: q.Difficulty,
	}
}

// SessionView is the client-facing state of a session. The correct answer
// of the current question is only exposed through LastRound after the
// reveal.
type SessionView struct {
	ID             string         `json:"id"`
	Mode           string         `json:"mode"`
	UniverseID     string         `json:"universeId"`
	Difficulty     string         `json:"difficulty"`
	Scoring        string         `json:"scoring"`
	Phase          Phase          `json:"phase"`
	QuestionIndex  int            `json:"currentQuestionIndex"`
	QuestionCount  int            `json:"questionCount"`
	TimeLeft       int            `json:"timeLeft"`
	Question       *QuestionView  `json:"question,omitempty"`
	Score          int            `json:"score"`
	CorrectAnswers int            `json:"correctAnswers"`
	OpponentID     string         `json:"opponentId,omitempty"`
	OpponentScore  int            `json:"opponentScore,omitempty"`
	RoomID         string         `json:"roomId,omitempty"`
	StartTime      time.Time      `json:"startTime"`
	EndTime        *time.Time     `json:"endTime,omitempty"`
	LastRound      *Round         `json:"lastRound,omitempty"`
	NewBadges      []models.Badge `json:"newBadges,omitempty"`
}

func viewOf(gs *models.GameSession, phase Phase) *SessionView {
	return &SessionView{
		ID:             gs.ID,
		Mode:           gs.Mode,
		UniverseID:     gs.UniverseID,
		Difficulty:     gs.Difficulty,
		Phase:          phase,
		QuestionIndex:  gs.CurrentQuestionIndex,
		QuestionCount:  len(gs.Questions),
		Score:          gs.Score,
		CorrectAnswers: gs.CorrectAnswers,
		OpponentID:     gs.OpponentID,
		OpponentScore:  gs.OpponentScore,
		RoomID:         gs.RoomID,
		StartTime:      gs.StartTime,
		EndTime:        gs.EndTime,
	}
}
