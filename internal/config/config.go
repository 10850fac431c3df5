// Package config holds the tunable parameters of the match lifecycle engine.
// Everything time- or threshold-based lives here so that tests can construct
// engines with arbitrary windows instead of reading globals.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	// Matching
	DefaultScoreThreshold    = 0.50
	DefaultTopCandidates     = 3
	DefaultCooldownWindow    = 7 * 24 * time.Hour
	DefaultActiveWindow      = 24 * time.Hour
	DefaultProposalQuota     = 3
	DefaultAutoMatchInterval = 3 * time.Hour

	// Conversation rooms
	DefaultRoomTTL     = 2 * time.Hour
	DefaultSweepPeriod = time.Minute

	// Scheduler tick (how often we check whether a pass is due)
	DefaultSchedulerTick = 5 * time.Minute

	// Redis lock that keeps two processes from overlapping a pass
	PassLockKey = "match:pass_lock"
	PassLockTTL = 30 * time.Minute
)

// Config збирає всі параметри рушія в одну явну структуру.
type Config struct {
	ScoreThreshold    float64
	TopCandidates     int
	CooldownWindow    time.Duration
	ActiveWindow      time.Duration
	ProposalQuota     int
	AutoMatchInterval time.Duration

	RoomTTL       time.Duration
	SweepPeriod   time.Duration
	SchedulerTick time.Duration

	ListenAddr       string
	JWTSecret        string
	TelegramBotToken string
}

// Default returns the production parameter set.
func Default() Config {
	return Config{
		ScoreThreshold:    DefaultScoreThreshold,
		TopCandidates:     DefaultTopCandidates,
		CooldownWindow:    DefaultCooldownWindow,
		ActiveWindow:      DefaultActiveWindow,
		ProposalQuota:     DefaultProposalQuota,
		AutoMatchInterval: DefaultAutoMatchInterval,
		RoomTTL:           DefaultRoomTTL,
		SweepPeriod:       DefaultSweepPeriod,
		SchedulerTick:     DefaultSchedulerTick,
		ListenAddr:        ":8080",
		JWTSecret:         "CHANGE_ME_IN_PRODUCTION",
	}
}

// FromEnv overlays environment variables onto the defaults.
// Числові значення, які не парсяться, ігноруються (залишаються дефолтними).
func FromEnv() Config {
	cfg := Default()

	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")

	if v := os.Getenv("AUTO_MATCH_INTERVAL_HOURS"); v != "" {
		if h, err := strconv.Atoi(v); err == nil && h > 0 {
			cfg.AutoMatchInterval = time.Duration(h) * time.Hour
		}
	}
	if v := os.Getenv("ROOM_TTL_SECONDS"); v != "" {
		if s, err := strconv.Atoi(v); err == nil && s > 0 {
			cfg.RoomTTL = time.Duration(s) * time.Second
		}
	}
	if v := os.Getenv("SCORE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.ScoreThreshold = f
		}
	}

	return cfg
}

// PostgresDSN builds the gorm DSN from the DB_* variables.
func PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		envOr("DB_HOST", "localhost"),
		envOr("DB_USER", "user"),
		envOr("DB_PASSWORD", "password"),
		envOr("DB_NAME", "pairlinedb"),
		envOr("DB_PORT", "5432"),
	)
}

// RedisAddr returns the Redis address (host:port).
func RedisAddr() string {
	return envOr("REDIS_ADDR", "localhost:6380")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
