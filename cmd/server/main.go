// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/arcade/internal/auth"
	"github.com/jason-s-yu/arcade/internal/cache"
	"github.com/jason-s-yu/arcade/internal/config"
	"github.com/jason-s-yu/arcade/internal/database"
	"github.com/jason-s-yu/arcade/internal/handlers"
	"github.com/jason-s-yu/arcade/internal/models"
	"github.com/jason-s-yu/arcade/internal/scoring"
	"github.com/jason-s-yu/arcade/internal/ttt"
	"github.com/jason-s-yu/arcade/internal/users"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := database.Open(ctx, cfg.Store, cfg.PostgresURL(), cfg.SQLitePath)
	if err != nil {
		logger.Fatalf("store: %v", err)
	}
	defer store.Close()
	logger.WithField("store", cfg.Store).Info("connected to store")

	var rdb *redis.Client
	if cfg.GuestScoreBackend == "redis" || cfg.MatchResults == "queue" {
		rdb, err = cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
	}

	var guests scoring.GuestStore
	switch cfg.GuestScoreBackend {
	case "redis":
		guests = cache.NewGuestScores(rdb, cfg.GuestScoreKey)
	case "memory":
		guests = scoring.NewMemoryGuestStore()
	default:
		guests = store
	}

	scores := scoring.NewService(store, guests, logger, scoring.Options{
		UpdatePolicy: models.Combine(cfg.ScoreUpdatePolicy),
		Order:        scoring.Order(cfg.LeaderboardOrder),
		WinPoints:    cfg.TTTWinPoints,
	})

	var recorder ttt.ResultRecorder = scores
	if cfg.MatchResults == "queue" {
		recorder = cache.NewMatchQueue(rdb, cfg.MatchResultsQueue)
	}

	sessions, err := auth.NewSessions(cfg.SessionSecret, cfg.SessionTTL, cfg.SessionCookieSecure)
	if err != nil {
		logger.Fatalf("sessions: %v", err)
	}
	if cfg.SessionSecret == "" {
		logger.Warn("SESSION_SECRET not set; sessions will not survive a restart")
	}

	api := &handlers.APIServer{
		Logger:     logger,
		Users:      users.NewUserService(store, auth.NewHasher(auth.DefaultParams)),
		Scores:     scores,
		Sessions:   sessions,
		Matchmaker: ttt.NewMatchmaker(recorder, logger),
		Origins:    cfg.CORSOrigins,
	}

	server := &http.Server{
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	l, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		logger.Fatalf("failed to listen: %v", err)
	}
	logger.Infof("listening on %s", l.Addr())

	errc := make(chan error, 1)
	go func() {
		errc <- server.Serve(l)
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("failed to serve: %v", err)
		}
	case <-ctx.Done():
		logger.Info("terminating")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("shutdown: %v", err)
	}
}
