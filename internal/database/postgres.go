package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/arcade/internal/models"
)

// Postgres is the pgx-backed Store.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects a pool, pings it and applies the schema.
func OpenPostgres(ctx context.Context, connStr string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	schema, err := schemaFS.ReadFile("schema/postgres.sql")
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("read schema: %w", err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) CreateUser(ctx context.Context, u *models.User) error {
	q := `INSERT INTO users (email, username, password, flappy, guessnum, slide, snake, tetris, ttt)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	      RETURNING id`

	args := append([]any{u.Email, u.Username, u.Password}, insertScores(u.Scores)...)
	err := pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, q, args...).Scan(&u.ID)
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s", ErrUserExists, pgErr.ConstraintName)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (p *Postgres) FindUsersByEmailOrUsername(ctx context.Context, email, username string) ([]models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email = $1 OR username = $2`
	return p.queryUsers(ctx, q, email, username)
}

func (p *Postgres) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	u, err := scanUser(p.pool.QueryRow(ctx, q, username))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (p *Postgres) ListUsers(ctx context.Context) ([]models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users ORDER BY id`
	return p.queryUsers(ctx, q)
}

func (p *Postgres) queryUsers(ctx context.Context, q string, args ...any) ([]models.User, error) {
	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (p *Postgres) GetScore(ctx context.Context, username string, game models.Game) (int, error) {
	col, err := scoreColumn(game)
	if err != nil {
		return 0, err
	}

	var score *int64
	err = p.pool.QueryRow(ctx, `SELECT `+col+` FROM users WHERE username = $1`, username).Scan(&score)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	if score == nil {
		return 0, nil
	}
	return int(*score), nil
}

func (p *Postgres) UpdateScore(ctx context.Context, key models.UserKey, game models.Game, score int, combine models.Combine) (bool, error) {
	col, err := scoreColumn(game)
	if err != nil {
		return false, err
	}
	expr, err := combineExpr(col, combine, "$1::bigint", "GREATEST")
	if err != nil {
		return false, err
	}

	where, arg := `username = $2`, any(key.Username)
	if key.ID != 0 {
		where, arg = `id = $2`, any(key.ID)
	}
	q := `UPDATE users SET ` + col + ` = ` + expr + ` WHERE ` + where

	var matched bool
	err = pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, q, score, arg)
		if err != nil {
			return err
		}
		matched = ct.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to update %s score: %w", game, err)
	}
	return matched, nil
}

func (p *Postgres) RecordMatch(ctx context.Context, res models.MatchResult, points int) error {
	insertQ := `
		INSERT INTO ttt_matches (id, player_x, player_o, winner, finished_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		ON CONFLICT (id) DO NOTHING
	`
	award, err := combineExpr("ttt", models.CombineAdd, "$1::bigint", "GREATEST")
	if err != nil {
		return err
	}
	awardQ := `UPDATE users SET ttt = ` + award + ` WHERE username = $2`

	err = pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, insertQ, res.MatchID, res.PlayerX, res.PlayerO, res.Winner, res.FinishedAt)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 || res.Draw() || points == 0 {
			return nil
		}
		_, err = tx.Exec(ctx, awardQ, points, res.Winner)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to record match %s: %w", res.MatchID, err)
	}
	return nil
}

func (p *Postgres) GetGuestScore(ctx context.Context, username string) (int, bool, error) {
	var score int
	err := p.pool.QueryRow(ctx, `SELECT score FROM guest_scores WHERE username = $1`, username).Scan(&score)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return score, true, nil
}

func (p *Postgres) PutGuestScore(ctx context.Context, username string, score int) error {
	q := `
		INSERT INTO guest_scores (username, score) VALUES ($1, $2)
		ON CONFLICT (username) DO UPDATE SET score = EXCLUDED.score, updated_at = NOW()
	`
	_, err := p.pool.Exec(ctx, q, username, score)
	return err
}

func (p *Postgres) MaxGuestScore(ctx context.Context, username string, score int) (int, error) {
	q := `
		INSERT INTO guest_scores (username, score) VALUES ($1, $2)
		ON CONFLICT (username) DO UPDATE
		SET score = GREATEST(guest_scores.score, EXCLUDED.score), updated_at = NOW()
		RETURNING score
	`
	var stored int
	// a first submission below zero still stores 0
	if err := p.pool.QueryRow(ctx, q, username, max(score, 0)).Scan(&stored); err != nil {
		return 0, err
	}
	return stored, nil
}

var _ Store = (*Postgres)(nil)
