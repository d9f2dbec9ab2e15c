package auth

import (
	"errors"
	"fmt"
	"net/mail"
	"unicode/utf8"

	"codequest/models"
	"codequest/store"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

var (
	ErrInvalidName   = errors.New("name must be 2-32 characters")
	ErrInvalidEmail  = errors.New("email address is not valid")
	ErrPlayerExists  = errors.New("a player with that name or email already exists")
	ErrPlayerMissing = errors.New("player not found")
)

// StatsInitializer prepares per-universe stats for a new player.
type StatsInitializer interface {
	EnsureStats(playerID string) error
}

type Service struct {
	store   store.Store
	stats   StatsInitializer
	session *SessionManager
	clock   clockwork.Clock
}

func NewService(store store.Store, stats StatsInitializer, sessionManager *SessionManager, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		store:   store,
		stats:   stats,
		session: sessionManager,
		clock:   clock,
	}
}

// Register creates a new player and signs them in. It fails when the name or
// email is already taken.
func (s *Service) Register(name, email string) (*models.Player, string, error) {
	name, email, err := cleanIdentity(name, email)
	if err != nil {
		return nil, "", err
	}

	var player *models.Player
	err = s.store.Transaction(func() error {
		existing, err := s.store.FindPlayer(name, email)
		if err != nil {
			return fmt.Errorf("failed to check existing player: %w", err)
		}
		if existing != nil {
			return ErrPlayerExists
		}
		player, err = s.createPlayer(name, email)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	return s.signIn(player)
}

// Login signs in the player matching name or email, creating one when no
// player matches.
func (s *Service) Login(name, email string) (*models.Player, string, error) {
	name = SanitizeName(name)
	email = SanitizeString(email)
	if name == "" && email == "" {
		return nil, "", ErrInvalidName
	}

	var player *models.Player
	err := s.store.Transaction(func() error {
		var err error
		player, err = s.store.FindPlayer(name, email)
		if err != nil {
			return fmt.Errorf("failed to get player: %w", err)
		}
		if player == nil {
			if name, email, err = cleanIdentity(name, email); err != nil {
				return err
			}
			player, err = s.createPlayer(name, email)
			return err
		}
		player.LastActive = s.clock.Now()
		if err := s.store.UpdatePlayer(player); err != nil {
			return fmt.Errorf("failed to update player: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return s.signIn(player)
}

func (s *Service) createPlayer(name, email string) (*models.Player, error) {
	now := s.clock.Now()
	player := &models.Player{
		ID:         uuid.NewString(),
		Name:       name,
		Email:      email,
		CreatedAt:  now,
		LastActive: now,
	}
	if err := s.store.CreatePlayer(player); err != nil {
		return nil, fmt.Errorf("failed to create player: %w", err)
	}
	if s.stats != nil {
		if err := s.stats.EnsureStats(player.ID); err != nil {
			return nil, fmt.Errorf("failed to initialise stats: %w", err)
		}
	}
	return player, nil
}

func (s *Service) signIn(player *models.Player) (*models.Player, string, error) {
	sessionID, err := s.session.CreateSession(player.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}
	return player, sessionID, nil
}

func (s *Service) Logout(sessionID string) {
	s.session.DeleteSession(sessionID)
}

func (s *Service) ValidateSession(sessionID string) (string, bool) {
	return s.session.GetPlayerID(sessionID)
}

func (s *Service) GetSessionManager() *SessionManager {
	return s.session
}

func (s *Service) Profile(playerID string) (*models.Player, error) {
	player, err := s.store.GetPlayer(playerID)
	if err != nil {
		return nil, err
	}
	if player == nil {
		return nil, ErrPlayerMissing
	}
	return player, nil
}

// UpdateProfile renames a player or changes their email. Empty values keep
// the current ones.
func (s *Service) UpdateProfile(playerID, name, email string) (*models.Player, error) {
	var player *models.Player
	err := s.store.Transaction(func() error {
		var err error
		player, err = s.updateProfileLocked(playerID, name, email)
		return err
	})
	if err != nil {
		return nil, err
	}
	return player, nil
}

func (s *Service) updateProfileLocked(playerID, name, email string) (*models.Player, error) {
	player, err := s.Profile(playerID)
	if err != nil {
		return nil, err
	}

	if name == "" {
		name = player.Name
	}
	if email == "" {
		email = player.Email
	}
	name, email, err = cleanIdentity(name, email)
	if err != nil {
		return nil, err
	}

	for _, match := range [][2]string{{name, ""}, {"", email}} {
		other, err := s.store.FindPlayer(match[0], match[1])
		if err != nil {
			return nil, err
		}
		if other != nil && other.ID != player.ID {
			return nil, ErrPlayerExists
		}
	}

	player.Name = name
	player.Email = email
	player.LastActive = s.clock.Now()
	if err := s.store.UpdatePlayer(player); err != nil {
		return nil, err
	}
	return player, nil
}

// Reset wipes every stored entity and signs everybody out.
func (s *Service) Reset() error {
	s.session.Clear()
	return s.store.Reset()
}

func cleanIdentity(name, email string) (string, string, error) {
	name = SanitizeName(name)
	email = SanitizeString(email)
	if err := validateName(name); err != nil {
		return "", "", err
	}
	if err := validateEmail(email); err != nil {
		return "", "", err
	}
	return name, email, nil
}

func validateName(name string) error {
	if n := utf8.RuneCountInString(name); n < 2 || n > 32 {
		return ErrInvalidName
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return nil
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	return nil
}
