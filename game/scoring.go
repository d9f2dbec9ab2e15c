package game

import "errors"

const (
	ScoringFlat  = "flat"
	ScoringSpeed = "speed"
)

var ErrUnknownScoring = errors.New("unknown scoring strategy")

// Scorer turns one answered round into points. timeLeft is the whole
// seconds remaining on the question timer at submission.
type Scorer interface {
	Name() string
	Points(correct bool, timeLeft int) int
}

// FlatScorer awards one point per correct answer.
type FlatScorer struct{}

func (FlatScorer) Name() string { return ScoringFlat }

func (FlatScorer) Points(correct bool, _ int) int {
	if correct {
		return 1
	}
	return 0
}

// SpeedScorer rewards fast correct answers with max(1, timeLeft/3) points.
type SpeedScorer struct{}

func (SpeedScorer) Name() string { return ScoringSpeed }

func (SpeedScorer) Points(correct bool, timeLeft int) int {
	if !correct {
		return 0
	}
	return max(1, timeLeft/3)
}

// ScorerByName resolves a strategy name. An empty name selects flat scoring.
func ScorerByName(name string) (Scorer, error) {
	switch name {
	case "", ScoringFlat:
		return FlatScorer{}, nil
	case ScoringSpeed:
		return SpeedScorer{}, nil
	default:
		return nil, ErrUnknownScoring
	}
}
