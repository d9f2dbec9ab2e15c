package auth

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"codequest/store"

	"github.com/jonboulle/clockwork"
)

type recordingStats struct {
	players []string
}

func (r *recordingStats) EnsureStats(playerID string) error {
	r.players = append(r.players, playerID)
	return nil
}

func newTestService(t *testing.T) (*Service, *recordingStats, store.Store) {
	t.Helper()
	s, err := store.NewMapStore(nil)
	if err != nil {
		t.Fatal(err)
	}
	stats := &recordingStats{}
	sm := NewSessionManager("test-secret", nil)
	t.Cleanup(sm.Close)
	return NewService(s, stats, sm, nil), stats, s
}

func TestLoginCreatesThenFindsPlayer(t *testing.T) {
	svc, stats, _ := newTestService(t)

	first, sid, err := svc.Login("Ada", "ada@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if sid == "" || first.ID == "" {
		t.Fatalf("player=%+v sid=%q", first, sid)
	}
	if len(stats.players) != 1 || stats.players[0] != first.ID {
		t.Errorf("stats initialised for %v", stats.players)
	}

	again, _, err := svc.Login("ADA", "")
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != first.ID {
		t.Errorf("case-insensitive login created %s", again.ID)
	}
	byEmail, _, _ := svc.Login("", "ADA@example.com")
	if byEmail.ID != first.ID {
		t.Errorf("email login created %s", byEmail.ID)
	}
	if len(stats.players) != 1 {
		t.Errorf("stats initialised %d times", len(stats.players))
	}

	if got, ok := svc.ValidateSession(sid); !ok || got != first.ID {
		t.Errorf("ValidateSession = %q, %v", got, ok)
	}
	svc.Logout(sid)
	if _, ok := svc.ValidateSession(sid); ok {
		t.Error("session still valid after logout")
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, _, err := svc.Register("Grace", ""); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		player  string
		email   string
		wantErr error
	}{
		{"duplicate name", "grace", "", ErrPlayerExists},
		{"too short", "G", "", ErrInvalidName},
		{"markup only", "<b></b>", "", ErrInvalidName},
		{"too long", "abcdefghijklmnopqrstuvwxyz0123456", "", ErrInvalidName},
		{"bad email", "Linus", "not-an-email", ErrInvalidEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := svc.Register(tt.player, tt.email); !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegisterSanitizesName(t *testing.T) {
	svc, _, _ := newTestService(t)
	p, _, err := svc.Register("  <script>x</script>Bob ", "")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Bob" {
		t.Errorf("name = %q", p.Name)
	}
}

func TestUpdateProfile(t *testing.T) {
	svc, _, _ := newTestService(t)
	ada, _, _ := svc.Register("Ada", "")
	_, _, _ = svc.Register("Grace", "")

	if _, err := svc.UpdateProfile(ada.ID, "grace", ""); !errors.Is(err, ErrPlayerExists) {
		t.Errorf("rename to taken name err = %v", err)
	}
	p, err := svc.UpdateProfile(ada.ID, "", "ada@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Ada" || p.Email != "ada@example.com" {
		t.Errorf("profile = %+v", p)
	}
	if _, err := svc.UpdateProfile("ghost", "Ghost", ""); !errors.Is(err, ErrPlayerMissing) {
		t.Errorf("missing player err = %v", err)
	}
}

func TestResetClearsEverything(t *testing.T) {
	svc, _, s := newTestService(t)
	_, sid, _ := svc.Register("Ada", "")

	if err := svc.Reset(); err != nil {
		t.Fatal(err)
	}
	if _, ok := svc.ValidateSession(sid); ok {
		t.Error("session survived reset")
	}
	players, _ := s.ListPlayers()
	if len(players) != 0 {
		t.Errorf("players = %d", len(players))
	}
}

func TestSessionExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sm := NewSessionManager("secret", clock)
	defer sm.Close()

	sid, err := sm.CreateSession("p1")
	if err != nil {
		t.Fatal(err)
	}
	clock.Advance(6 * 24 * time.Hour)
	if _, ok := sm.GetPlayerID(sid); !ok {
		t.Fatal("session expired early")
	}
	clock.Advance(2 * 24 * time.Hour)
	if _, ok := sm.GetPlayerID(sid); ok {
		t.Fatal("session outlived its TTL")
	}
}

func TestSessionCookieIsSigned(t *testing.T) {
	sm := NewSessionManager("secret", nil)
	defer sm.Close()

	rec := httptest.NewRecorder()
	if err := sm.SetSessionCookie(rec, "abc"); err != nil {
		t.Fatal(err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value == "abc" {
		t.Fatalf("cookies = %+v", cookies)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	if got := sm.SessionFromRequest(req); got != "abc" {
		t.Errorf("SessionFromRequest = %q", got)
	}

	forged := httptest.NewRequest(http.MethodGet, "/", nil)
	forged.AddCookie(&http.Cookie{Name: cookieName, Value: "abc"})
	if got := sm.SessionFromRequest(forged); got != "" {
		t.Errorf("forged cookie accepted: %q", got)
	}

	other := NewSessionManager("other-secret", nil)
	defer other.Close()
	if got := other.SessionFromRequest(req); got != "" {
		t.Errorf("cookie verified under a different key: %q", got)
	}
}

func TestConcurrentLoginsCreateOnePlayer(t *testing.T) {
	svc, stats, s := newTestService(t)

	start := make(chan struct{})
	var wg sync.WaitGroup
	ids := make([]string, 50)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			player, _, err := svc.Login("Ada", "ada@example.com")
			if err != nil {
				t.Errorf("login %d: %v", i, err)
				return
			}
			ids[i] = player.ID
		}(i)
	}
	close(start)
	wg.Wait()

	players, _ := s.ListPlayers()
	if len(players) != 1 {
		t.Fatalf("players = %d, want 1", len(players))
	}
	for i, id := range ids {
		if id != players[0].ID {
			t.Errorf("login %d got %q", i, id)
		}
	}
	if len(stats.players) != 1 {
		t.Errorf("stats initialised %d times", len(stats.players))
	}

	var registered int
	var mu sync.Mutex
	start = make(chan struct{})
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, _, err := svc.Register("Grace", fmt.Sprintf("grace%d@example.com", i))
			switch {
			case err == nil:
				mu.Lock()
				registered++
				mu.Unlock()
			case !errors.Is(err, ErrPlayerExists):
				t.Errorf("register %d: %v", i, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()
	if registered != 1 {
		t.Errorf("registered %d players named Grace", registered)
	}
}
