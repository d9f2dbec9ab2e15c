package game

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"codequest/models"
	"codequest/store"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/jonboulle/clockwork"
)

const (
	// levelPassRatio is the share of correct answers that completes a level.
	levelPassRatio = 0.7
	speedBadgeTime = 60 * time.Second
	leagueLength   = 30 * 24 * time.Hour
	defaultLeagues = 5
)

var (
	ErrPlayerNotFound     = errors.New("player not found")
	ErrLeagueNotFound     = errors.New("league not found")
	ErrAlreadyInLeague    = errors.New("already in league")
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrTournamentClosed   = errors.New("tournament is no longer accepting players")
	ErrAlreadyInTourney   = errors.New("already in tournament")
	ErrUnknownUniverse    = errors.New("unknown universe")
)

type LeaderboardEntry struct {
	Rank              int    `json:"rank"`
	RankLabel         string `json:"rankLabel"`
	PlayerID          string `json:"playerId"`
	PlayerName        string `json:"playerName"`
	Points            int    `json:"points"`
	QuestionsAnswered int    `json:"questionsAnswered"`
	CorrectAnswers    int    `json:"correctAnswers"`
}

// Ledger owns per-universe player statistics, badges, leagues and
// tournaments.
type Ledger struct {
	store   store.Store
	catalog *Catalog
	clock   clockwork.Clock
}

func NewLedger(s store.Store, catalog *Catalog, clock clockwork.Clock) *Ledger {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Ledger{store: s, catalog: catalog, clock: clock}
}

// EnsureStats creates a stats row for every universe the player lacks.
func (l *Ledger) EnsureStats(playerID string) error {
	for _, u := range l.catalog.Universes() {
		existing, err := l.store.GetStats(playerID, u.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if err := l.store.SaveStats(newStats(playerID, u.ID)); err != nil {
			return err
		}
	}
	return nil
}

func newStats(playerID, universeID string) *models.PlayerStats {
	return &models.PlayerStats{
		PlayerID:        playerID,
		UniverseID:      universeID,
		Level:           1,
		CompletedLevels: []int{},
		Badges:          []models.Badge{},
		Certificates:    []models.Certificate{},
	}
}

// RecordSession folds a completed session into the player's aggregates and
// returns the badges it earned.
func (l *Ledger) RecordSession(gs *models.GameSession) ([]models.Badge, error) {
	if !gs.Completed() {
		return nil, fmt.Errorf("session %s is not complete", gs.ID)
	}

	var badges []models.Badge
	err := l.store.Transaction(func() error {
		var err error
		badges, err = l.recordLocked(gs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return badges, nil
}

func (l *Ledger) recordLocked(gs *models.GameSession) ([]models.Badge, error) {
	stats, err := l.store.GetStats(gs.PlayerID, gs.UniverseID)
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = newStats(gs.PlayerID, gs.UniverseID)
	}

	total := len(gs.Questions)
	correct := gs.Score
	if gs.Mode == models.ModeDuel {
		correct = gs.CorrectAnswers
	}

	stats.QuestionsAnswered += total
	stats.CorrectAnswers += correct
	stats.Score += gs.Score

	badges := l.evaluateBadges(gs, correct)
	stats.Badges = append(stats.Badges, badges...)

	l.progressLevel(stats, total, correct)

	if err := l.store.SaveStats(stats); err != nil {
		return nil, err
	}
	if err := l.updatePlayer(gs); err != nil {
		return nil, err
	}
	if gs.Mode == models.ModeLeague {
		if err := l.awardLeaguePoints(gs); err != nil {
			return nil, err
		}
	}
	return badges, nil
}

// evaluateBadges applies the badge rules in their fixed order: perfect score,
// then speed. Both may fire for one session.
func (l *Ledger) evaluateBadges(gs *models.GameSession, correct int) []models.Badge {
	now := l.clock.Now()
	var badges []models.Badge

	if total := len(gs.Questions); total > 0 && correct == total {
		badges = append(badges, models.Badge{
			ID:          fmt.Sprintf("perfect_%s_%d", gs.UniverseID, now.UnixMilli()),
			Name:        "Perfect Score",
			Description: fmt.Sprintf("Perfect score in %s", gs.UniverseID),
			Icon:        "🎯",
			Rarity:      models.RarityRare,
			UnlockedAt:  now,
		})
	}

	if gs.EndTime.Sub(gs.StartTime) < speedBadgeTime {
		badges = append(badges, models.Badge{
			ID:          fmt.Sprintf("speed_%s_%d", gs.UniverseID, now.UnixMilli()),
			Name:        "Lightning Fast",
			Description: "Completed in under a minute",
			Icon:        "⚡",
			Rarity:      models.RarityEpic,
			UnlockedAt:  now,
		})
	}
	return badges
}

func (l *Ledger) progressLevel(stats *models.PlayerStats, total, correct int) {
	if total == 0 || float64(correct)/float64(total) < levelPassRatio {
		return
	}
	universe, ok := l.catalog.Universe(stats.UniverseID)
	if !ok {
		return
	}

	level := stats.Level
	if !slices.Contains(stats.CompletedLevels, level) {
		stats.CompletedLevels = append(stats.CompletedLevels, level)
	}
	if level < universe.TotalLevels {
		stats.Level++
		return
	}

	for _, c := range stats.Certificates {
		if c.UniverseID == universe.ID {
			return
		}
	}
	stats.Certificates = append(stats.Certificates, models.Certificate{
		ID:               uuid.NewString(),
		Name:             universe.Name + " Master",
		UniverseID:       universe.ID,
		Level:            models.DifficultyExpert,
		IssuedAt:         l.clock.Now(),
		VerificationCode: uuid.NewString()[:8],
	})
}

func (l *Ledger) updatePlayer(gs *models.GameSession) error {
	player, err := l.store.GetPlayer(gs.PlayerID)
	if err != nil {
		return err
	}
	if player == nil {
		return ErrPlayerNotFound
	}

	player.TotalScore += gs.Score
	player.GamesPlayed++
	if gs.Mode == models.ModeDuel && gs.OpponentID != "" {
		switch {
		case gs.Score > gs.OpponentScore:
			player.Wins++
		case gs.Score < gs.OpponentScore:
			player.Losses++
		}
	}
	player.LastActive = l.clock.Now()
	return l.store.UpdatePlayer(player)
}

func (l *Ledger) awardLeaguePoints(gs *models.GameSession) error {
	leagues, err := l.store.ListLeagues(gs.UniverseID)
	if err != nil {
		return err
	}
	for _, league := range leagues {
		idx := slices.IndexFunc(league.Standings, func(s models.LeagueStanding) bool {
			return s.PlayerID == gs.PlayerID
		})
		if idx < 0 {
			continue
		}
		league.Standings[idx].Points += gs.Score
		rankStandings(league.Standings)
		if err := l.store.SaveLeague(league); err != nil {
			return err
		}
	}
	return nil
}

func rankStandings(standings []models.LeagueStanding) {
	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].Points > standings[j].Points
	})
	for i := range standings {
		standings[i].Rank = i + 1
	}
}

// Stats returns the player's row for one universe, or all rows when
// universeID is empty.
func (l *Ledger) Stats(playerID, universeID string) ([]*models.PlayerStats, error) {
	if universeID == "" {
		return l.store.ListStats(playerID)
	}
	st, err := l.store.GetStats(playerID, universeID)
	if err != nil || st == nil {
		return nil, err
	}
	return []*models.PlayerStats{st}, nil
}

// Leaderboard ranks players of a universe by accumulated points.
func (l *Ledger) Leaderboard(universeID string) ([]LeaderboardEntry, error) {
	if _, ok := l.catalog.Universe(universeID); !ok {
		return nil, ErrUnknownUniverse
	}
	rows, err := l.store.ListUniverseStats(universeID)
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(rows))
	for _, st := range rows {
		player, err := l.store.GetPlayer(st.PlayerID)
		if err != nil {
			return nil, err
		}
		if player == nil {
			continue
		}
		entries = append(entries, LeaderboardEntry{
			PlayerID:          st.PlayerID,
			PlayerName:        player.Name,
			Points:            st.Score,
			QuestionsAnswered: st.QuestionsAnswered,
			CorrectAnswers:    st.CorrectAnswers,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		return entries[i].PlayerName < entries[j].PlayerName
	})
	for i := range entries {
		entries[i].Rank = i + 1
		entries[i].RankLabel = humanize.Ordinal(i + 1)
	}
	return entries, nil
}

// EnsureDefaultLeagues opens a season-one league for the first universes
// when no league exists yet.
func (l *Ledger) EnsureDefaultLeagues() error {
	return l.store.Transaction(func() error {
		existing, err := l.store.ListLeagues("")
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return nil
		}
		for _, u := range l.catalog.Universes()[:defaultLeagues] {
			if _, err := l.CreateLeague(u.ID, 1); err != nil {
				return err
			}
		}
		return nil
	})
}

func (l *Ledger) CreateLeague(universeID string, season int) (*models.League, error) {
	universe, ok := l.catalog.Universe(universeID)
	if !ok {
		return nil, ErrUnknownUniverse
	}
	name := fmt.Sprintf("%s League S%d", universe.Name, season)
	now := l.clock.Now()
	league := &models.League{
		ID:           slug.Make(universe.ID + " league s" + fmt.Sprint(season)),
		UniverseID:   universe.ID,
		Name:         name,
		Season:       season,
		StartDate:    now,
		EndDate:      now.Add(leagueLength),
		Participants: []string{},
		Standings:    []models.LeagueStanding{},
	}
	if err := l.store.SaveLeague(league); err != nil {
		return nil, err
	}
	return league, nil
}

func (l *Ledger) Leagues(universeID string) ([]*models.League, error) {
	return l.store.ListLeagues(universeID)
}

func (l *Ledger) JoinLeague(leagueID, playerID string) (*models.League, error) {
	var league *models.League
	err := l.store.Transaction(func() error {
		var err error
		league, err = l.joinLeagueLocked(leagueID, playerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return league, nil
}

func (l *Ledger) joinLeagueLocked(leagueID, playerID string) (*models.League, error) {
	league, err := l.store.GetLeague(leagueID)
	if err != nil {
		return nil, err
	}
	if league == nil {
		return nil, ErrLeagueNotFound
	}
	if slices.Contains(league.Participants, playerID) {
		return nil, ErrAlreadyInLeague
	}

	league.Participants = append(league.Participants, playerID)
	league.Standings = append(league.Standings, models.LeagueStanding{
		PlayerID: playerID,
		Rank:     len(league.Standings) + 1,
	})
	if err := l.store.SaveLeague(league); err != nil {
		return nil, err
	}
	return league, nil
}

func (l *Ledger) CreateTournament(name, universeID string) (*models.Tournament, error) {
	universe, ok := l.catalog.Universe(universeID)
	if !ok {
		return nil, ErrUnknownUniverse
	}
	if name == "" {
		name = universe.Name + " Open"
	}
	tournament := &models.Tournament{
		ID:           slug.Make(name) + "-" + uuid.NewString()[:8],
		Name:         name,
		UniverseID:   universe.ID,
		Bracket:      []models.TournamentMatch{},
		Status:       models.TournamentUpcoming,
		Participants: []string{},
	}
	if err := l.store.SaveTournament(tournament); err != nil {
		return nil, err
	}
	return tournament, nil
}

func (l *Ledger) Tournaments(universeID string) ([]*models.Tournament, error) {
	return l.store.ListTournaments(universeID)
}

func (l *Ledger) JoinTournament(tournamentID, playerID string) (*models.Tournament, error) {
	var tournament *models.Tournament
	err := l.store.Transaction(func() error {
		var err error
		tournament, err = l.joinTournamentLocked(tournamentID, playerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tournament, nil
}

func (l *Ledger) joinTournamentLocked(tournamentID, playerID string) (*models.Tournament, error) {
	tournament, err := l.store.GetTournament(tournamentID)
	if err != nil {
		return nil, err
	}
	if tournament == nil {
		return nil, ErrTournamentNotFound
	}
	if tournament.Status != models.TournamentUpcoming {
		return nil, ErrTournamentClosed
	}
	if slices.Contains(tournament.Participants, playerID) {
		return nil, ErrAlreadyInTourney
	}

	tournament.Participants = append(tournament.Participants, playerID)
	if err := l.store.SaveTournament(tournament); err != nil {
		return nil, err
	}
	return tournament, nil
}
