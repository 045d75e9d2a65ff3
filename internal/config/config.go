// Package config loads arcade settings from the environment.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Port      string `env:"PORT"       envDefault:"5000"`
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// Store is one of "postgres" or "sqlite".
	Store       string `env:"ARCADE_STORE" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	PGUser      string `env:"POSTGRES_USER"`
	PGPassword  string `env:"POSTGRES_PASSWORD"`
	PGHost      string `env:"PG_HOST"     envDefault:"localhost"`
	PGPort      string `env:"PG_PORT"     envDefault:"5432"`
	PGDatabase  string `env:"PG_DATABASE" envDefault:"arcade"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"arcade.db"`

	RedisAddr     string `env:"REDIS_ADDR"     envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"       envDefault:"0"`

	// GuestScoreBackend is one of "database", "redis" or "memory".
	GuestScoreBackend string `env:"GUEST_SCORE_BACKEND" envDefault:"database"`
	GuestScoreKey     string `env:"GUEST_SCORE_KEY"     envDefault:"arcade:guessnumber_scores"`

	// MatchResults is "direct" or "queue".
	MatchResults      string `env:"MATCH_RESULTS"       envDefault:"direct"`
	MatchResultsQueue string `env:"MATCH_RESULTS_QUEUE" envDefault:"arcade_match_results"`

	SessionSecret       string        `env:"SESSION_SECRET"`
	SessionTTL          time.Duration `env:"SESSION_TTL"           envDefault:"0s"`
	SessionCookieSecure bool          `env:"SESSION_COOKIE_SECURE" envDefault:"false"`
	CORSOrigins         []string      `env:"CORS_ORIGINS"          envDefault:"http://localhost:5173" envSeparator:","`

	ScoreUpdatePolicy string `env:"SCORE_UPDATE_POLICY" envDefault:"overwrite"`
	LeaderboardOrder  string `env:"LEADERBOARD_ORDER"   envDefault:"asc"`
	TTTWinPoints      int    `env:"TTT_WIN_POINTS"      envDefault:"10"`

	HistorianBatchSize int `env:"HISTORIAN_BATCH_SIZE" envDefault:"20"`
	HistorianFlushMs   int `env:"HISTORIAN_FLUSH_MS"   envDefault:"500"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := oneOf("ARCADE_STORE", c.Store, "postgres", "sqlite"); err != nil {
		return err
	}
	if err := oneOf("GUEST_SCORE_BACKEND", c.GuestScoreBackend, "database", "redis", "memory"); err != nil {
		return err
	}
	if err := oneOf("MATCH_RESULTS", c.MatchResults, "direct", "queue"); err != nil {
		return err
	}
	if err := oneOf("SCORE_UPDATE_POLICY", c.ScoreUpdatePolicy, "overwrite", "max"); err != nil {
		return err
	}
	if err := oneOf("LEADERBOARD_ORDER", c.LeaderboardOrder, "asc", "desc"); err != nil {
		return err
	}
	if err := oneOf("LOG_FORMAT", c.LogFormat, "text", "json"); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.SessionTTL < 0 {
		return fmt.Errorf("SESSION_TTL must not be negative")
	}
	if c.TTTWinPoints < 0 {
		return fmt.Errorf("TTT_WIN_POINTS must not be negative")
	}
	if c.HistorianBatchSize <= 0 {
		return fmt.Errorf("HISTORIAN_BATCH_SIZE must be positive")
	}
	if c.HistorianFlushMs <= 0 {
		return fmt.Errorf("HISTORIAN_FLUSH_MS must be positive")
	}
	return nil
}

// PostgresURL returns DATABASE_URL when set, otherwise a URL assembled from
// the individual PG settings.
func (c Config) PostgresURL() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   c.PGHost + ":" + c.PGPort,
		Path:   "/" + c.PGDatabase,
	}
	if c.PGUser != "" {
		u.User = url.UserPassword(c.PGUser, c.PGPassword)
	}
	return u.String()
}

func (c Config) HistorianFlushDelay() time.Duration {
	return time.Duration(c.HistorianFlushMs) * time.Millisecond
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if c.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s: unsupported value %q (want one of %v)", key, value, allowed)
}
