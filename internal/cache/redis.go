// Package cache holds the Redis-backed pieces of the arcade: the guest score
// sorted set and the match result queue drained by the historian.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/arcade/internal/models"
	"github.com/redis/go-redis/v9"
)

// Connect builds a Redis client and pings it once.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// GuestScores keeps guest guess-number scores in one sorted set, member =
// username, score = best submitted score.
type GuestScores struct {
	rdb *redis.Client
	key string
}

func NewGuestScores(rdb *redis.Client, key string) *GuestScores {
	return &GuestScores{rdb: rdb, key: key}
}

func (g *GuestScores) GetGuestScore(ctx context.Context, username string) (int, bool, error) {
	score, err := g.rdb.ZScore(ctx, g.key, username).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return int(score), true, nil
}

func (g *GuestScores) PutGuestScore(ctx context.Context, username string, score int) error {
	return g.rdb.ZAdd(ctx, g.key, redis.Z{Score: float64(score), Member: username}).Err()
}

// MaxGuestScore relies on ZADD GT, so concurrent submissions never lower the
// stored value. A first submission below zero stores 0.
func (g *GuestScores) MaxGuestScore(ctx context.Context, username string, score int) (int, error) {
	var stored *redis.FloatCmd
	_, err := g.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAddGT(ctx, g.key, redis.Z{Score: float64(max(score, 0)), Member: username})
		stored = pipe.ZScore(ctx, g.key, username)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("guest score %q: %w", username, err)
	}
	return int(stored.Val()), nil
}

// MatchQueue publishes finished tic-tac-toe matches to a Redis list. The
// historian pops them and writes them to the database in batches.
type MatchQueue struct {
	rdb  *redis.Client
	name string
}

func NewMatchQueue(rdb *redis.Client, name string) *MatchQueue {
	return &MatchQueue{rdb: rdb, name: name}
}

// RecordMatch serializes the result and pushes it to the queue. It only waits
// for the RPUSH round trip.
func (q *MatchQueue) RecordMatch(ctx context.Context, result models.MatchResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal MatchResult: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.name, err)
	}
	return nil
}

// Pop blocks up to timeout for the next result. ok is false when the timeout
// elapsed with nothing queued.
func (q *MatchQueue) Pop(ctx context.Context, timeout time.Duration) (result models.MatchResult, ok bool, err error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return models.MatchResult{}, false, nil
	}
	if err != nil {
		return models.MatchResult{}, false, err
	}
	if len(res) < 2 {
		return models.MatchResult{}, false, nil
	}

	// res[0] is the list name and res[1] the payload.
	if err := json.Unmarshal([]byte(res[1]), &result); err != nil {
		return models.MatchResult{}, false, fmt.Errorf("invalid match record: %w", err)
	}
	return result, true, nil
}
