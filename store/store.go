package store

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"codequest/models"
)

// DataKey is the backend key holding the game snapshot.
const DataKey = "codequest_data"

type Store interface {
	CreatePlayer(player *models.Player) error
	GetPlayer(playerID string) (*models.Player, error)
	FindPlayer(name, email string) (*models.Player, error)
	ListPlayers() ([]*models.Player, error)
	UpdatePlayer(player *models.Player) error

	GetStats(playerID, universeID string) (*models.PlayerStats, error)
	ListStats(playerID string) ([]*models.PlayerStats, error)
	ListUniverseStats(universeID string) ([]*models.PlayerStats, error)
	SaveStats(stats *models.PlayerStats) error

	SaveSession(session *models.GameSession) error
	GetSession(sessionID string) (*models.GameSession, error)
	ListSessions(playerID string) ([]*models.GameSession, error)

	SaveLeague(league *models.League) error
	GetLeague(leagueID string) (*models.League, error)
	ListLeagues(universeID string) ([]*models.League, error)

	SaveTournament(tournament *models.Tournament) error
	GetTournament(tournamentID string) (*models.Tournament, error)
	ListTournaments(universeID string) ([]*models.Tournament, error)

	// Transaction runs fn with every other transaction excluded, so a
	// read-modify-write sequence inside fn sees no interleaved writer.
	Transaction(fn func() error) error

	Reset() error
	Close() error
}

// snapshot is the persisted shape. It carries no version field, so a schema
// change orphans older data.
type snapshot struct {
	Players     map[string]*models.Player        `json:"players"`
	PlayerStats map[string][]*models.PlayerStats `json:"playerStats"`
	Sessions    map[string]*models.GameSession   `json:"sessions"`
	Leagues     map[string]*models.League        `json:"leagues"`
	Tournaments map[string]*models.Tournament    `json:"tournaments"`
}

func emptySnapshot() *snapshot {
	return &snapshot{
		Players:     make(map[string]*models.Player),
		PlayerStats: make(map[string][]*models.PlayerStats),
		Sessions:    make(map[string]*models.GameSession),
		Leagues:     make(map[string]*models.League),
		Tournaments: make(map[string]*models.Tournament),
	}
}

// MapStore keeps every entity in memory and writes the full snapshot to its
// backend after each mutation.
type MapStore struct {
	mu      sync.RWMutex
	txMu    sync.Mutex
	data    *snapshot
	backend Backend
}

// NewMapStore loads the snapshot from backend. A malformed snapshot is
// logged and replaced with an empty one.
func NewMapStore(backend Backend) (*MapStore, error) {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	s := &MapStore{data: emptySnapshot(), backend: backend}

	raw, err := backend.Load(DataKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if raw != nil {
		loaded := emptySnapshot()
		if err := json.Unmarshal(raw, loaded); err != nil {
			log.Printf("Error loading saved data, starting fresh: %v", err)
		} else {
			loaded.fillNil()
			s.data = loaded
		}
	}
	return s, nil
}

func (d *snapshot) fillNil() {
	fresh := emptySnapshot()
	if d.Players == nil {
		d.Players = fresh.Players
	}
	if d.PlayerStats == nil {
		d.PlayerStats = fresh.PlayerStats
	}
	if d.Sessions == nil {
		d.Sessions = fresh.Sessions
	}
	if d.Leagues == nil {
		d.Leagues = fresh.Leagues
	}
	if d.Tournaments == nil {
		d.Tournaments = fresh.Tournaments
	}
}

func (s *MapStore) persistLocked() error {
	data, err := json.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := s.backend.Save(DataKey, data); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Transaction serialises fn against other transactions. Single reads and
// writes outside a transaction still see a consistent snapshot. Transactions
// do not nest.
func (s *MapStore) Transaction(fn func() error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn()
}

func (s *MapStore) CreatePlayer(player *models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data.Players[player.ID]; exists {
		return fmt.Errorf("failed to create player: id %s already taken", player.ID)
	}
	p := *player
	s.data.Players[p.ID] = &p
	return s.persistLocked()
}

func (s *MapStore) GetPlayer(playerID string) (*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.data.Players[playerID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

// FindPlayer matches name or email case-insensitively. Empty arguments never
// match.
func (s *MapStore) FindPlayer(name, email string) (*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.sortedPlayersLocked() {
		if name != "" && strings.EqualFold(p.Name, name) {
			cp := *p
			return &cp, nil
		}
		if email != "" && p.Email != "" && strings.EqualFold(p.Email, email) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MapStore) ListPlayers() ([]*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sorted := s.sortedPlayersLocked()
	players := make([]*models.Player, len(sorted))
	for i, p := range sorted {
		cp := *p
		players[i] = &cp
	}
	return players, nil
}

func (s *MapStore) sortedPlayersLocked() []*models.Player {
	players := make([]*models.Player, 0, len(s.data.Players))
	for _, p := range s.data.Players {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool {
		if players[i].CreatedAt.Equal(players[j].CreatedAt) {
			return players[i].ID < players[j].ID
		}
		return players[i].CreatedAt.Before(players[j].CreatedAt)
	})
	return players
}

func (s *MapStore) UpdatePlayer(player *models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Players[player.ID]; !ok {
		return fmt.Errorf("failed to update player: %s not found", player.ID)
	}
	p := *player
	s.data.Players[p.ID] = &p
	return s.persistLocked()
}

func (s *MapStore) GetStats(playerID, universeID string) (*models.PlayerStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, st := range s.data.PlayerStats[playerID] {
		if st.UniverseID == universeID {
			return cloneStats(st), nil
		}
	}
	return nil, nil
}

func (s *MapStore) ListStats(playerID string) ([]*models.PlayerStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.data.PlayerStats[playerID]
	stats := make([]*models.PlayerStats, len(rows))
	for i, st := range rows {
		stats[i] = cloneStats(st)
	}
	return stats, nil
}

func (s *MapStore) ListUniverseStats(universeID string) ([]*models.PlayerStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats []*models.PlayerStats
	for _, p := range s.sortedPlayersLocked() {
		for _, st := range s.data.PlayerStats[p.ID] {
			if st.UniverseID == universeID {
				stats = append(stats, cloneStats(st))
			}
		}
	}
	return stats, nil
}

// SaveStats inserts or replaces the row for the stats' player and universe.
func (s *MapStore) SaveStats(stats *models.PlayerStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.data.PlayerStats[stats.PlayerID]
	replaced := false
	for i, st := range rows {
		if st.UniverseID == stats.UniverseID {
			rows[i] = cloneStats(stats)
			replaced = true
			break
		}
	}
	if !replaced {
		rows = append(rows, cloneStats(stats))
	}
	s.data.PlayerStats[stats.PlayerID] = rows
	return s.persistLocked()
}

func (s *MapStore) SaveSession(session *models.GameSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Sessions[session.ID] = cloneSession(session)
	return s.persistLocked()
}

func (s *MapStore) GetSession(sessionID string) (*models.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	gs, ok := s.data.Sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return cloneSession(gs), nil
}

func (s *MapStore) ListSessions(playerID string) ([]*models.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sessions []*models.GameSession
	for _, gs := range s.data.Sessions {
		if gs.PlayerID == playerID {
			sessions = append(sessions, cloneSession(gs))
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartTime.Before(sessions[j].StartTime)
	})
	return sessions, nil
}

func (s *MapStore) SaveLeague(league *models.League) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Leagues[league.ID] = cloneLeague(league)
	return s.persistLocked()
}

func (s *MapStore) GetLeague(leagueID string) (*models.League, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.data.Leagues[leagueID]
	if !ok {
		return nil, nil
	}
	return cloneLeague(l), nil
}

// ListLeagues returns leagues ordered by id. An empty universeID lists all.
func (s *MapStore) ListLeagues(universeID string) ([]*models.League, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var leagues []*models.League
	for _, l := range s.data.Leagues {
		if universeID == "" || l.UniverseID == universeID {
			leagues = append(leagues, cloneLeague(l))
		}
	}
	sort.Slice(leagues, func(i, j int) bool { return leagues[i].ID < leagues[j].ID })
	return leagues, nil
}

func (s *MapStore) SaveTournament(tournament *models.Tournament) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Tournaments[tournament.ID] = cloneTournament(tournament)
	return s.persistLocked()
}

func (s *MapStore) GetTournament(tournamentID string) (*models.Tournament, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.data.Tournaments[tournamentID]
	if !ok {
		return nil, nil
	}
	return cloneTournament(t), nil
}

func (s *MapStore) ListTournaments(universeID string) ([]*models.Tournament, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tournaments []*models.Tournament
	for _, t := range s.data.Tournaments {
		if universeID == "" || t.UniverseID == universeID {
			tournaments = append(tournaments, cloneTournament(t))
		}
	}
	sort.Slice(tournaments, func(i, j int) bool { return tournaments[i].ID < tournaments[j].ID })
	return tournaments, nil
}

// Reset drops every entity and removes the persisted snapshot.
func (s *MapStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = emptySnapshot()
	if err := s.backend.Delete(DataKey); err != nil {
		return fmt.Errorf("failed to reset store: %w", err)
	}
	return nil
}

func (s *MapStore) Close() error {
	return s.backend.Close()
}

func cloneStats(st *models.PlayerStats) *models.PlayerStats {
	cp := *st
	cp.CompletedLevels = append([]int{}, st.CompletedLevels...)
	cp.Badges = append([]models.Badge{}, st.Badges...)
	cp.Certificates = append([]models.Certificate{}, st.Certificates...)
	return &cp
}

func cloneSession(gs *models.GameSession) *models.GameSession {
	cp := *gs
	cp.Questions = append([]models.Question{}, gs.Questions...)
	if gs.EndTime != nil {
		end := *gs.EndTime
		cp.EndTime = &end
	}
	return &cp
}

func cloneLeague(l *models.League) *models.League {
	cp := *l
	cp.Participants = append([]string{}, l.Participants...)
	cp.Standings = append([]models.LeagueStanding{}, l.Standings...)
	return &cp
}

func cloneTournament(t *models.Tournament) *models.Tournament {
	cp := *t
	cp.Participants = append([]string{}, t.Participants...)
	cp.Bracket = append([]models.TournamentMatch{}, t.Bracket...)
	return &cp
}
