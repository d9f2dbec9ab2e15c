package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"codequest/auth"
	"codequest/game"
	"codequest/models"
	"codequest/ws"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// In production, check against allowed origins
		// For now, only allow same origin
		return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
	},
}

// Dependencies are the services the HTTP layer dispatches to.
type Dependencies struct {
	Auth         *auth.Service
	Catalog      *game.Catalog
	Ledger       *game.Ledger
	Lobby        *game.Lobby
	Engine       *game.Engine
	Bots         *game.BotFactory
	WSManager    *ws.Manager
	LobbyManager *ws.LobbyManager
}

type Handlers struct {
	authService  *auth.Service
	catalog      *game.Catalog
	ledger       *game.Ledger
	lobby        *game.Lobby
	engine       *game.Engine
	bots         *game.BotFactory
	wsManager    *ws.Manager
	lobbyManager *ws.LobbyManager
}

func NewHandlers(deps Dependencies) *Handlers {
	return &Handlers{
		authService:  deps.Auth,
		catalog:      deps.Catalog,
		ledger:       deps.Ledger,
		lobby:        deps.Lobby,
		engine:       deps.Engine,
		bots:         deps.Bots,
		wsManager:    deps.WSManager,
		lobbyManager: deps.LobbyManager,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to write JSON response: %v", err)
	}
}

// statusFor maps domain errors onto HTTP statuses. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrSessionNotFound),
		errors.Is(err, game.ErrRoomNotFound),
		errors.Is(err, game.ErrLeagueNotFound),
		errors.Is(err, game.ErrTournamentNotFound),
		errors.Is(err, game.ErrUnknownUniverse),
		errors.Is(err, auth.ErrPlayerMissing):
		return http.StatusNotFound
	case errors.Is(err, game.ErrNotSessionOwner),
		errors.Is(err, game.ErrNotInRoom):
		return http.StatusForbidden
	case errors.Is(err, game.ErrNotAwaitingAnswer),
		errors.Is(err, game.ErrNotRevealing),
		errors.Is(err, game.ErrRoomNotWaiting),
		errors.Is(err, game.ErrRoomNotReady),
		errors.Is(err, game.ErrAlreadyInRoom),
		errors.Is(err, game.ErrAlreadyInLeague),
		errors.Is(err, game.ErrAlreadyInTourney),
		errors.Is(err, game.ErrTournamentClosed),
		errors.Is(err, auth.ErrPlayerExists):
		return http.StatusConflict
	case errors.Is(err, game.ErrUnknownMode),
		errors.Is(err, game.ErrUnknownScoring),
		errors.Is(err, game.ErrRoomRequired),
		errors.Is(err, game.ErrInvalidRoom),
		errors.Is(err, game.ErrNoQuestions),
		errors.Is(err, auth.ErrInvalidName),
		errors.Is(err, auth.ErrInvalidEmail):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, action string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s error: %v", action, err)
		http.Error(w, action+" failed", status)
		return
	}
	http.Error(w, err.Error(), status)
}

func decode(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	return json.NewDecoder(r.Body).Decode(v)
}

func playerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := GetPlayerIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}
	return id, ok
}

type identityRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Auth handlers
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	h.signIn(w, r, "Register", http.StatusCreated, h.authService.Register)
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	h.signIn(w, r, "Login", http.StatusOK, h.authService.Login)
}

func (h *Handlers) signIn(w http.ResponseWriter, r *http.Request, action string, status int, fn func(name, email string) (*models.Player, string, error)) {
	var req identityRequest
	if err := decode(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	player, sessionID, err := fn(req.Name, req.Email)
	if err != nil {
		writeError(w, action, err)
		return
	}

	if err := h.authService.GetSessionManager().SetSessionCookie(w, sessionID); err != nil {
		h.authService.Logout(sessionID)
		writeError(w, action, err)
		return
	}

	log.Printf("%s successful for player %s (ID: %s)", action, player.Name, player.ID)
	writeJSON(w, status, player)
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	sessions := h.authService.GetSessionManager()
	if sessionID := sessions.SessionFromRequest(r); sessionID != "" {
		h.authService.Logout(sessionID)
		sessions.ClearSessionCookie(w)
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// Profile handlers
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := playerID(w, r)
	if !ok {
		return
	}
	player, err := h.authService.Profile(id)
	if err != nil {
		writeError(w, "Profile", err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse(player))
}

func (h *Handlers) UpdateMe(w http.ResponseWriter, r *http.Request) {
	id, ok := playerID(w, r)
	if !ok {
		return
	}
	var req identityRequest
	if err := decode(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	player, err := h.authService.UpdateProfile(id, req.Name, req.Email)
	if err != nil {
		writeError(w, "Update profile", err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse(player))
}

func profileResponse(p *models.Player) map[string]interface{} {
	return map[string]interface{}{
		"player":     p,
		"lastActive": humanize.Time(p.LastActive),
	}
}

func (h *Handlers) MyStats(w http.ResponseWriter, r *http.Request) {
	id, ok := playerID(w, r)
	if !ok {
		return
	}
	stats, err := h.ledger.Stats(id, r.URL.Query().Get("universe"))
	if err != nil {
		writeError(w, "Stats", err)
		return
	}
	if stats == nil {
		stats = []*models.PlayerStats{}
	}
	writeJSON(w, http.StatusOK, stats)
}

// Catalog handlers
func (h *Handlers) ListUniverses(w http.ResponseWriter, r *http.Request) {
	universes := h.catalog.Universes()
	if category := r.URL.Query().Get("category"); category != "" {
		universes = h.catalog.UniversesByCategory(category)
	}
	if universes == nil {
		universes = []models.Universe{}
	}
	writeJSON(w, http.StatusOK, universes)
}

func (h *Handlers) UniverseQuestions(w http.ResponseWriter, r *http.Request) {
	universeID := mux.Vars(r)["universeId"]
	if _, ok := h.catalog.Universe(universeID); !ok {
		writeError(w, "Questions", game.ErrUnknownUniverse)
		return
	}

	level := queryInt(r, "level", 1)
	limit := queryInt(r, "limit", game.DefaultQuestionLimit)
	if level < 1 || limit < 1 {
		http.Error(w, "level and limit must be positive", http.StatusBadRequest)
		return
	}

	questions := h.catalog.Questions(universeID, level, limit)
	views := make([]*game.QuestionView, len(questions))
	for i, q := range questions {
		views[i] = game.NewQuestionView(q)
	}
	writeJSON(w, http.StatusOK, views)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return v
}

// Session handlers
func (h *Handlers) StartSession(w http.ResponseWriter, r *http.Request) {
	id, ok := playerID(w, r)
	if !ok {
		return
	}
	var req struct {
		UniverseID string `json:"universeId"`
		Mode       string `json:"mode"`
		Difficulty string `json:"difficulty"`
		Scoring    string `json:"scoring"`
		RoomID     string `json:"roomId"`
	}
	if err := decode(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	view, err := h.engine.StartSession(id, req.UniverseID, req.Mode, req.Difficulty, req.Scoring, req.RoomID)
	if err != nil {
		writeError(w, "Start session", err)
		return
	}
	if view.RoomID != "" {
		h.lobbyManager.BroadcastUpdate(view.UniverseID)
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := playerID(w, r)
	if !ok {
		return
	}
	view, err := h.engine.GetSession(mux.Vars(r)["sessionId"], id)
	if err != nil {
		writeError(w, "Get session", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handlers) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	id, ok := playerID(w, r)
	if !ok {
		return
	}
	var req struct {
		Answer *int `json:"answer"`
	}
	if err := decode(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	view, err := h.engine.SubmitAnswer(r.Context(), mux.Vars(r)["sessionId"], id, req.Answer)
	if err != nil {
		writeError(w, "Submit answer", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handlers) AdvanceSession(w http.ResponseWriter, r *http.Request) {
	id, ok := playerID(w, r)
	if !ok {
		return
	}
	view, err := h.engine.Advance(mux.Vars(r)["sessionId"], id)
	if err != nil {
		writeError(w, "Advance", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handlers) AbandonSession(w http.ResponseWriter, r *http.Request) {
	id, ok := playerID(w, r)
	if !ok {
		return
	}
	if err := h.engine.Abandon(mux.Vars(r)["sessionId"], id); err != nil {
		writeError(w, "Abandon", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Duel handlers
func (h *Handlers) CreateDuel(w http.ResponseWriter, r *http.Request) {
	id, ok := playerID(w, r)
	if !ok {
		return
	}
	var req struct {
		UniverseID string `json:"universeId"`
		Bot        bool   `json:"bot"`
	}
	if err := decode(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if _, ok := h.catalog.Universe(req.UniverseID); !ok {
		writeError(w, "Create duel", game.ErrUnknownUniverse)
		return
	}

	roomID, err := h.lobby.CreateRoom(id, req.UniverseID)
	if err != nil {
		writeError(w, "Create duel", err)
		return
	}

	if req.Bot && h.bots != nil {
		bot := h.bots.New()
		if _, err := bot.Enter(context.Background(), roomID); err != nil {
			writeError(w, "Create duel", err)
			return
		}
		log.Printf("Bot %s joined room %s", bot.ID, roomID)
	}

	h.lobbyManager.BroadcastUpdate(req.UniverseID)

	room, _ := h.lobby.GetRoom(roomID)
	writeJSON(w, http.StatusCreated, room)
}

func (h *Handlers) ListDuels(w http.ResponseWriter, r *http.Request) {
	universeID := r.URL.Query().Get("universe")
	if universeID == "" {
		http.Error(w, "universe is required", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.lobby.ListAvailable(universeID))
}

func (h *Handlers) JoinDuel(w http.ResponseWriter, r *http.Request) {
	id, ok := playerID(w, r)
	if !ok {
		return
	}
	roomID := mux.Vars(r)["roomId"]
	if err := h.lobby.JoinRoom(roomID, id); err != nil {
		writeError(w, "Join duel", err)
		return
	}

	room, _ := h.lobby.GetRoom(roomID)
	h.lobbyManager.BroadcastUpdate(room.UniverseID)
	writeJSON(w, http.StatusOK, room)
}

func (h *Handlers) StartDuel(w http.ResponseWriter, r *http.Request) {
	id, ok := playerID(w, r)
	if !ok {
		return
	}
	roomID := mux.Vars(r)["roomId"]
	room, found := h.lobby.GetRoom(roomID)
	if !found {
		writeError(w, "Start duel", game.ErrRoomNotFound)
		return
	}
	if !room.Seated(id) {
		writeError(w, "Start duel", game.ErrNotInRoom)
		return
	}
	if err := h.lobby.Start(roomID); err != nil {
		writeError(w, "Start duel", err)
		return
	}

	room, _ = h.lobby.GetRoom(roomID)
	writeJSON(w, http.StatusOK, room)
}

func (h *Handlers) DuelRound(w http.ResponseWriter, r *http.Request) {
	id, ok := playerID(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	index, err := strconv.Atoi(vars["index"])
	if err != nil || index < 0 {
		http.Error(w, "Invalid question index", http.StatusBadRequest)
		return
	}

	room, found := h.lobby.GetRoom(vars["roomId"])
	if !found {
		writeError(w, "Round result", game.ErrRoomNotFound)
		return
	}
	if !room.Seated(id) {
		writeError(w, "Round result", game.ErrNotInRoom)
		return
	}

	result, _ := h.lobby.RoundResult(room.ID, index)
	writeJSON(w, http.StatusOK, result)
}

// Ranking handlers
func (h *Handlers) Leaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := h.ledger.Leaderboard(mux.Vars(r)["universeId"])
	if err != nil {
		writeError(w, "Leaderboard", err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (h *Handlers) ListLeagues(w http.ResponseWriter, r *http.Request) {
	leagues, err := h.ledger.Leagues(r.URL.Query().Get("universe"))
	if err != nil {
		writeError(w, "List leagues", err)
		return
	}
	if leagues == nil {
		leagues = []*models.League{}
	}
	writeJSON(w, http.StatusOK, leagues)
}

func (h *Handlers) JoinLeague(w http.ResponseWriter, r *http.Request) {
	id, ok := playerID(w, r)
	if !ok {
		return
	}
	league, err := h.ledger.JoinLeague(mux.Vars(r)["leagueId"], id)
	if err != nil {
		writeError(w, "Join league", err)
		return
	}
	writeJSON(w, http.StatusOK, league)
}

func (h *Handlers) ListTournaments(w http.ResponseWriter, r *http.Request) {
	tournaments, err := h.ledger.Tournaments(r.URL.Query().Get("universe"))
	if err != nil {
		writeError(w, "List tournaments", err)
		return
	}
	if tournaments == nil {
		tournaments = []*models.Tournament{}
	}
	writeJSON(w, http.StatusOK, tournaments)
}

func (h *Handlers) CreateTournament(w http.ResponseWriter, r *http.Request) {
	if _, ok := playerID(w, r); !ok {
		return
	}
	var req struct {
		Name       string `json:"name"`
		UniverseID string `json:"universeId"`
	}
	if err := decode(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	tournament, err := h.ledger.CreateTournament(auth.SanitizeString(req.Name), req.UniverseID)
	if err != nil {
		writeError(w, "Create tournament", err)
		return
	}
	writeJSON(w, http.StatusCreated, tournament)
}

func (h *Handlers) JoinTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := playerID(w, r)
	if !ok {
		return
	}
	tournament, err := h.ledger.JoinTournament(mux.Vars(r)["tournamentId"], id)
	if err != nil {
		writeError(w, "Join tournament", err)
		return
	}
	writeJSON(w, http.StatusOK, tournament)
}

// WebSocket handlers
func (h *Handlers) HandleDuelSocket(w http.ResponseWriter, r *http.Request) {
	id, ok := playerID(w, r)
	if !ok {
		return
	}
	roomID := mux.Vars(r)["roomId"]
	room, found := h.lobby.GetRoom(roomID)
	if !found {
		writeError(w, "Duel socket", game.ErrRoomNotFound)
		return
	}
	if !room.Seated(id) {
		writeError(w, "Duel socket", game.ErrNotInRoom)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	h.wsManager.HandleConnection(conn, roomID, id)
}

func (h *Handlers) HandleLobbySocket(w http.ResponseWriter, r *http.Request) {
	id, ok := playerID(w, r)
	if !ok {
		return
	}
	universeID := r.URL.Query().Get("universe")
	if _, found := h.catalog.Universe(universeID); !found {
		writeError(w, "Lobby socket", game.ErrUnknownUniverse)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	h.lobbyManager.HandleConnection(conn, id, universeID)
}
