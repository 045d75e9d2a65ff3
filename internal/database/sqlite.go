package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jason-s-yu/arcade/internal/models"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// MemoryPath opens a private in-memory SQLite database.
const MemoryPath = ":memory:"

// SQLite is the embedded Store used for local development and tests.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens the database at path (or MemoryPath) and applies the schema.
func OpenSQLite(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := MemoryPath
	if path != MemoryPath {
		dsn = filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == MemoryPath {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	schema, err := schemaFS.ReadFile("schema/sqlite.sql")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("read schema: %w", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() {
	_ = s.db.Close()
}

func (s *SQLite) CreateUser(ctx context.Context, u *models.User) error {
	q := `INSERT INTO users (email, username, password, flappy, guessnum, slide, snake, tetris, ttt)
	      VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	      RETURNING id`

	args := append([]any{u.Email, u.Username, u.Password}, insertScores(u.Scores)...)
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&u.ID); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", ErrUserExists, err)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *SQLite) FindUsersByEmailOrUsername(ctx context.Context, email, username string) ([]models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email = ? OR username = ?`
	return s.queryUsers(ctx, q, email, username)
}

func (s *SQLite) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE username = ?`
	u, err := scanUser(s.db.QueryRowContext(ctx, q, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQLite) ListUsers(ctx context.Context) ([]models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users ORDER BY id`
	return s.queryUsers(ctx, q)
}

func (s *SQLite) queryUsers(ctx context.Context, q string, args ...any) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
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

func (s *SQLite) GetScore(ctx context.Context, username string, game models.Game) (int, error) {
	col, err := scoreColumn(game)
	if err != nil {
		return 0, err
	}

	var score sql.NullInt64
	err = s.db.QueryRowContext(ctx, `SELECT `+col+` FROM users WHERE username = ?`, username).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return int(score.Int64), nil
}

func (s *SQLite) UpdateScore(ctx context.Context, key models.UserKey, game models.Game, score int, combine models.Combine) (bool, error) {
	col, err := scoreColumn(game)
	if err != nil {
		return false, err
	}
	expr, err := combineExpr(col, combine, "?1", "MAX")
	if err != nil {
		return false, err
	}

	where, arg := `username = ?2`, any(key.Username)
	if key.ID != 0 {
		where, arg = `id = ?2`, any(key.ID)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE users SET `+col+` = `+expr+` WHERE `+where, score, arg)
	if err != nil {
		return false, fmt.Errorf("failed to update %s score: %w", game, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLite) RecordMatch(ctx context.Context, r models.MatchResult, points int) error {
	award, err := combineExpr("ttt", models.CombineAdd, "?1", "MAX")
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO ttt_matches (id, player_x, player_o, winner, finished_at)
		VALUES (?, ?, ?, NULLIF(?, ''), ?)
		ON CONFLICT (id) DO NOTHING`,
		r.MatchID.String(), r.PlayerX, r.PlayerO, r.Winner, r.FinishedAt.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record match %s: %w", r.MatchID, err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if inserted > 0 && !r.Draw() && points != 0 {
		_, err = tx.ExecContext(ctx, `UPDATE users SET ttt = `+award+` WHERE username = ?2`, points, r.Winner)
		if err != nil {
			return fmt.Errorf("failed to award match %s: %w", r.MatchID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) GetGuestScore(ctx context.Context, username string) (int, bool, error) {
	var score int
	err := s.db.QueryRowContext(ctx, `SELECT score FROM guest_scores WHERE username = ?`, username).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return score, true, nil
}

func (s *SQLite) PutGuestScore(ctx context.Context, username string, score int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guest_scores (username, score) VALUES (?, ?)
		ON CONFLICT (username) DO UPDATE SET score = excluded.score, updated_at = unixepoch()`,
		username, score)
	return err
}

func (s *SQLite) MaxGuestScore(ctx context.Context, username string, score int) (int, error) {
	var stored int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO guest_scores (username, score) VALUES (?, ?)
		ON CONFLICT (username) DO UPDATE
		SET score = MAX(guest_scores.score, excluded.score), updated_at = unixepoch()
		RETURNING score`,
		username, max(score, 0)).Scan(&stored)
	if err != nil {
		return 0, err
	}
	return stored, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ Store = (*SQLite)(nil)
