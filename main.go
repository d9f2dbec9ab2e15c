package main

import (
	"context"
	"flag"
	"log"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codequest/auth"
	"codequest/config"
	"codequest/game"
	httpserver "codequest/http"
	"codequest/kv"
	"codequest/store"
	"codequest/ws"

	"github.com/jonboulle/clockwork"
)

func main() {
	reset := flag.Bool("reset", false, "wipe all stored players, stats and sessions before starting")
	flag.Parse()

	log.Println("Starting CodeQuest server...")

	// Load configuration
	cfg := config.Load()
	log.Printf("Configuration loaded - Server port: %s, DB path: %s", cfg.ServerPort, cfg.DBPath)

	// Initialize persistence
	backend, err := store.NewSQLiteBackend(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	db, err := store.NewMapStore(backend)
	if err != nil {
		log.Fatalf("Failed to load saved data: %v", err)
	}
	defer db.Close()
	log.Println("Database initialized successfully")

	clock := clockwork.NewRealClock()

	// Initialize services
	catalog := game.NewCatalog(uint64(time.Now().UnixNano()))
	ledger := game.NewLedger(db, catalog, clock)
	sharedKV := kv.New(clock)
	lobby := game.NewLobby(sharedKV, clock)
	engine := game.NewEngine(db, catalog, lobby, ledger, clock, game.Options{
		QuestionTime: cfg.QuestionTime,
		RevealDelay:  cfg.RevealDelay,
		OpponentWait: cfg.OpponentWait,
	})
	defer engine.Close()

	sessionManager := auth.NewSessionManager(cfg.SessionSecret, clock)
	defer sessionManager.Close()
	authService := auth.NewService(db, ledger, sessionManager, clock)

	if *reset {
		if err := authService.Reset(); err != nil {
			log.Fatalf("Failed to reset data: %v", err)
		}
		log.Println("Stored data reset")
	}
	if err := ledger.EnsureDefaultLeagues(); err != nil {
		log.Fatalf("Failed to create default leagues: %v", err)
	}

	sweeper, err := game.NewSweeper(lobby, sharedKV, clock, cfg.SweepInterval, cfg.RoomMaxAge)
	if err != nil {
		log.Fatalf("Failed to create sweeper: %v", err)
	}

	wsManager := ws.NewManager(lobby, engine)
	lobbyManager := ws.NewLobbyManager(lobby)
	sweeper.Notify(lobbyManager)
	sweeper.Start()

	bots := &game.BotFactory{
		Lobby:        lobby,
		Clock:        clock,
		Accuracy:     cfg.BotAccuracy,
		ThinkTime:    cfg.BotThinkTime,
		QuestionTime: cfg.QuestionTime,
	}

	// Initialize HTTP server
	server := httpserver.NewServer(httpserver.Dependencies{
		Auth:         authService,
		Catalog:      catalog,
		Ledger:       ledger,
		Lobby:        lobby,
		Engine:       engine,
		Bots:         bots,
		WSManager:    wsManager,
		LobbyManager: lobbyManager,
	})
	srv := server.GetHTTPServer(cfg.ServerPort)

	// Start server in a goroutine
	go func() {
		log.Printf("Server listening on http://localhost%s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	if err := sweeper.Shutdown(); err != nil {
		log.Printf("Sweeper shutdown: %v", err)
	}

	log.Println("Server stopped")
}
