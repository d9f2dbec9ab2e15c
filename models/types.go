// Package models holds the CodeQuest entities shared by the store, game and
// HTTP layers.
package models

import "time"

const (
	ModeSolo       = "solo"
	ModeDuel       = "duel"
	ModeLeague     = "league"
	ModeTournament = "tournament"
)

const (
	RarityCommon    = "common"
	RarityRare      = "rare"
	RarityEpic      = "epic"
	RarityLegendary = "legendary"
)

const (
	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
	DifficultyExpert       = "expert"
)

type Player struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email,omitempty"`
	TotalScore  int       `json:"totalScore"`
	GamesPlayed int       `json:"gamesPlayed"`
	Wins        int       `json:"wins"`
	Losses      int       `json:"losses"`
	CreatedAt   time.Time `json:"createdAt"`
	LastActive  time.Time `json:"lastActive"`
}

// Universe is static topic reference data.
type Universe struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
	Category    string `json:"category"`
	TotalLevels int    `json:"totalLevels"`
}

type Question struct {
	ID            string   `json:"id"`
	UniverseID    string   `json:"universeId"`
	Level         int      `json:"level"`
	Prompt        string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Explanation   string   `json:"explanation"`
	Difficulty    string   `json:"difficulty"`
}

// IsCorrect reports whether answer picks the correct option. A nil answer
// never matches.
func (q Question) IsCorrect(answer *int) bool {
	return answer != nil && *answer == q.CorrectAnswer
}

type PlayerStats struct {
	PlayerID          string        `json:"playerId"`
	UniverseID        string        `json:"universeId"`
	Level             int           `json:"level"`
	Score             int           `json:"score"`
	QuestionsAnswered int           `json:"questionsAnswered"`
	CorrectAnswers    int           `json:"correctAnswers"`
	CompletedLevels   []int         `json:"completedLevels"`
	Badges            []Badge       `json:"badges"`
	Certificates      []Certificate `json:"certificates"`
}

type Badge struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Rarity      string    `json:"rarity"`
	UnlockedAt  time.Time `json:"unlockedAt"`
}

type Certificate struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	UniverseID       string    `json:"universeId"`
	Level            string    `json:"level"`
	IssuedAt         time.Time `json:"issuedAt"`
	VerificationCode string    `json:"verificationCode"`
}

// GameSession is one play-through of an ordered question list.
type GameSession struct {
	ID                   string     `json:"id"`
	Mode                 string     `json:"mode"`
	UniverseID           string     `json:"universeId"`
	Difficulty           string     `json:"difficulty"`
	Questions            []Question `json:"questions"`
	CurrentQuestionIndex int        `json:"currentQuestionIndex"`
	Score                int        `json:"score"`
	StartTime            time.Time  `json:"startTime"`
	EndTime              *time.Time `json:"endTime,omitempty"`
	PlayerID             string     `json:"playerId"`
	OpponentID           string     `json:"opponentId,omitempty"`

	// Duel-only bookkeeping
	RoomID         string `json:"roomId,omitempty"`
	OpponentScore  int    `json:"opponentScore,omitempty"`
	CorrectAnswers int    `json:"correctAnswers,omitempty"`
}

func (s *GameSession) Completed() bool {
	return s.EndTime != nil
}

type League struct {
	ID           string           `json:"id"`
	UniverseID   string           `json:"universeId"`
	Name         string           `json:"name"`
	Season       int              `json:"season"`
	StartDate    time.Time        `json:"startDate"`
	EndDate      time.Time        `json:"endDate"`
	Participants []string         `json:"participants"`
	Standings    []LeagueStanding `json:"standings"`
}

type LeagueStanding struct {
	PlayerID string `json:"playerId"`
	Points   int    `json:"points"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
	Rank     int    `json:"rank"`
}

const (
	TournamentUpcoming  = "upcoming"
	TournamentActive    = "active"
	TournamentCompleted = "completed"
)

type Tournament struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	UniverseID   string            `json:"universeId"`
	Bracket      []TournamentMatch `json:"bracket"`
	Status       string            `json:"status"`
	Participants []string          `json:"participants"`
	WinnerID     string            `json:"winnerId,omitempty"`
}

type TournamentMatch struct {
	ID        string `json:"id"`
	Round     int    `json:"round"`
	Player1ID string `json:"player1Id"`
	Player2ID string `json:"player2Id"`
	WinnerID  string `json:"winnerId,omitempty"`
	Score1    int    `json:"score1,omitempty"`
	Score2    int    `json:"score2,omitempty"`
}
