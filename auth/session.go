package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/jonboulle/clockwork"
)

const (
	cookieName    = "session_id"
	sessionTTL    = 7 * 24 * time.Hour
	cleanupPeriod = time.Hour
)

type Session struct {
	PlayerID  string
	ExpiresAt time.Time
}

type SessionManager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	codec    *securecookie.SecureCookie
	clock    clockwork.Clock
	done     chan struct{}
	once     sync.Once
}

// NewSessionManager signs cookies with a key derived from secret.
func NewSessionManager(secret string, clock clockwork.Clock) *SessionManager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	hashKey := sha256.Sum256([]byte(secret))
	codec := securecookie.New(hashKey[:], nil)
	codec.MaxAge(int(sessionTTL / time.Second))

	sm := &SessionManager{
		sessions: make(map[string]*Session),
		codec:    codec,
		clock:    clock,
		done:     make(chan struct{}),
	}

	go sm.cleanupExpiredSessions()

	return sm
}

func (sm *SessionManager) CreateSession(playerID string) (string, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return "", err
	}

	sm.mu.Lock()
	sm.sessions[sessionID] = &Session{
		PlayerID:  playerID,
		ExpiresAt: sm.clock.Now().Add(sessionTTL),
	}
	sm.mu.Unlock()

	return sessionID, nil
}

func (sm *SessionManager) GetPlayerID(sessionID string) (string, bool) {
	sm.mu.RLock()
	session, exists := sm.sessions[sessionID]
	sm.mu.RUnlock()

	if !exists {
		return "", false
	}

	if sm.clock.Now().After(session.ExpiresAt) {
		sm.DeleteSession(sessionID)
		return "", false
	}

	return session.PlayerID, true
}

func (sm *SessionManager) DeleteSession(sessionID string) {
	sm.mu.Lock()
	delete(sm.sessions, sessionID)
	sm.mu.Unlock()
}

func (sm *SessionManager) Clear() {
	sm.mu.Lock()
	sm.sessions = make(map[string]*Session)
	sm.mu.Unlock()
}

func (sm *SessionManager) SetSessionCookie(w http.ResponseWriter, sessionID string) error {
	encoded, err := sm.codec.Encode(cookieName, sessionID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    encoded,
		Path:     "/",
		MaxAge:   int(sessionTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		// Secure: true, // Enable in production with HTTPS
	})
	return nil
}

func (sm *SessionManager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// SessionFromRequest returns the session id carried by the request's cookie,
// or "" when the cookie is missing or its signature does not verify.
func (sm *SessionManager) SessionFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}
	var sessionID string
	if err := sm.codec.Decode(cookieName, cookie.Value, &sessionID); err != nil {
		return ""
	}
	return sessionID
}

// Close stops the cleanup loop.
func (sm *SessionManager) Close() {
	sm.once.Do(func() { close(sm.done) })
}

func (sm *SessionManager) cleanupExpiredSessions() {
	ticker := sm.clock.NewTicker(cleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-sm.done:
			return
		case <-ticker.Chan():
			sm.purgeExpired()
		}
	}
}

func (sm *SessionManager) purgeExpired() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := sm.clock.Now()
	removed := 0
	for id, session := range sm.sessions {
		if now.After(session.ExpiresAt) {
			delete(sm.sessions, id)
			removed++
		}
	}
	return removed
}

func generateSessionID() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}
