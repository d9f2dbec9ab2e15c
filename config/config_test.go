package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	t.Setenv("QUESTION_TIME", "")
	t.Setenv("SESSION_SECRET", "")

	cfg := Load()

	if cfg.ServerPort != ":8080" {
		t.Errorf("ServerPort = %q, want :8080", cfg.ServerPort)
	}
	if cfg.QuestionTime != 30*time.Second {
		t.Errorf("QuestionTime = %v, want 30s", cfg.QuestionTime)
	}
	if cfg.RevealDelay != 3*time.Second {
		t.Errorf("RevealDelay = %v, want 3s", cfg.RevealDelay)
	}
	if cfg.SessionSecret == "" {
		t.Error("expected a generated session secret")
	}
}

func TestLoadOverrides(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		check func(*Config) bool
	}{
		{"port", "SERVER_PORT", ":9000", func(c *Config) bool { return c.ServerPort == ":9000" }},
		{"question time", "QUESTION_TIME", "10s", func(c *Config) bool { return c.QuestionTime == 10*time.Second }},
		{"bad duration falls back", "OPPONENT_WAIT", "soon", func(c *Config) bool { return c.OpponentWait == 30*time.Second }},
		{"bot accuracy", "BOT_ACCURACY", "0.9", func(c *Config) bool { return c.BotAccuracy == 0.9 }},
		{"accuracy out of range", "BOT_ACCURACY", "3", func(c *Config) bool { return c.BotAccuracy == 0.6 }},
		{"secret", "SESSION_SECRET", "fixed", func(c *Config) bool { return c.SessionSecret == "fixed" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if cfg := Load(); !tt.check(cfg) {
				t.Errorf("%s=%q not applied as expected: %+v", tt.key, tt.value, cfg)
			}
		})
	}
}
