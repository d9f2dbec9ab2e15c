package config

import (
	"crypto/rand"
	"encoding/base64"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort    string
	DBPath        string
	SessionSecret string

	// Round timing
	QuestionTime time.Duration
	RevealDelay  time.Duration
	OpponentWait time.Duration

	// Duel room housekeeping
	RoomMaxAge    time.Duration
	SweepInterval time.Duration

	BotAccuracy  float64
	BotThinkTime time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading environment variables directly")
	}

	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		secret = generateSessionSecret()
	}

	return &Config{
		ServerPort:    envString("SERVER_PORT", ":8080"),
		DBPath:        envString("DB_PATH", "./codequest.db"),
		SessionSecret: secret,
		QuestionTime:  envDuration("QUESTION_TIME", 30*time.Second),
		RevealDelay:   envDuration("REVEAL_DELAY", 3*time.Second),
		OpponentWait:  envDuration("OPPONENT_WAIT", 30*time.Second),
		RoomMaxAge:    envDuration("ROOM_MAX_AGE", 15*time.Minute),
		SweepInterval: envDuration("SWEEP_INTERVAL", time.Minute),
		BotAccuracy:   envFloat("BOT_ACCURACY", 0.6),
		BotThinkTime:  envDuration("BOT_THINK_TIME", 4*time.Second),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("Invalid %s=%q, using default %v", key, v, fallback)
		return fallback
	}
	return d
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || f > 1 {
		log.Printf("Invalid %s=%q, using default %v", key, v, fallback)
		return fallback
	}
	return f
}

func generateSessionSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		log.Fatal("Failed to generate session secret:", err)
	}
	return base64.StdEncoding.EncodeToString(bytes)
}
