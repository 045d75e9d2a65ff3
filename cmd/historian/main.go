// cmd/historian is an asynchronous worker that pops finished tic-tac-toe
// matches from a Redis list and records them in the database.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/arcade/internal/cache"
	"github.com/jason-s-yu/arcade/internal/config"
	"github.com/jason-s-yu/arcade/internal/database"
	"github.com/jason-s-yu/arcade/internal/historian"
	"github.com/jason-s-yu/arcade/internal/scoring"
	_ "github.com/joho/godotenv/autoload"
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

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	scores := scoring.NewService(store, nil, logger, scoring.Options{WinPoints: cfg.TTTWinPoints})
	svc := historian.New(cache.NewMatchQueue(rdb, cfg.MatchResultsQueue), scores, logger, historian.Options{
		BatchSize:  cfg.HistorianBatchSize,
		FlushDelay: cfg.HistorianFlushDelay(),
	})

	logger.WithField("queue", cfg.MatchResultsQueue).Info("arcade-historian service started")
	if err := svc.Run(ctx); err != nil {
		logger.Fatalf("historian: %v", err)
	}
}
