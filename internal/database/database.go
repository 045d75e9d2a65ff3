// Package database persists arcade users, guest scores and tic-tac-toe match
// history. Postgres is the production store; SQLite backs local development
// and tests. Both implement Store.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/jason-s-yu/arcade/internal/models"
)

var (
	// ErrNotFound is returned when no user matches a lookup.
	ErrNotFound = errors.New("not found")
	// ErrUserExists is returned when an insert violates the email or username constraint.
	ErrUserExists = errors.New("user/email already exists")
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Store is the persistence collaborator used by the API and the historian.
type Store interface {
	// CreateUser inserts u and sets u.ID. Games missing from u.Scores are stored as null.
	CreateUser(ctx context.Context, u *models.User) error
	FindUsersByEmailOrUsername(ctx context.Context, email, username string) ([]models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	// ListUsers never returns a nil slice on success.
	ListUsers(ctx context.Context) ([]models.User, error)

	// GetScore returns ErrNotFound for an unknown user and 0 for a null field.
	GetScore(ctx context.Context, username string, game models.Game) (int, error)
	// UpdateScore merges score into one user's game field in a single
	// statement and reports whether a row matched.
	UpdateScore(ctx context.Context, key models.UserKey, game models.Game, score int, combine models.Combine) (bool, error)
	// RecordMatch stores a finished match and awards points to the winner.
	// Recording the same match id twice is a no-op.
	RecordMatch(ctx context.Context, result models.MatchResult, points int) error

	GetGuestScore(ctx context.Context, username string) (int, bool, error)
	PutGuestScore(ctx context.Context, username string, score int) error
	MaxGuestScore(ctx context.Context, username string, score int) (int, error)

	Ping(ctx context.Context) error
	Close()
}

// scoreColumns maps each game to its column. Game names are validated against
// this table before they reach SQL.
var scoreColumns = map[models.Game]string{
	models.Flappy:   "flappy",
	models.GuessNum: "guessnum",
	models.Slide:    "slide",
	models.Snake:    "snake",
	models.Tetris:   "tetris",
	models.TTT:      "ttt",
}

func scoreColumn(g models.Game) (string, error) {
	col, ok := scoreColumns[g]
	if !ok {
		return "", fmt.Errorf("unknown game %q", g)
	}
	return col, nil
}

// userColumns is the select list scanned by scanUser.
const userColumns = `id, email, password, username, flappy, guessnum, slide, snake, tetris, ttt`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (models.User, error) {
	var (
		u   models.User
		raw [6]*int64
	)
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.Username,
		&raw[0], &raw[1], &raw[2], &raw[3], &raw[4], &raw[5])
	if err != nil {
		return models.User{}, err
	}
	u.Scores = make(models.Scores, len(models.Games))
	for i, g := range models.Games {
		if raw[i] != nil {
			u.Scores[g] = int(*raw[i])
		}
	}
	return u, nil
}

// insertScores returns the six score values in models.Games order, nil for
// games missing from s.
func insertScores(s models.Scores) []any {
	vals := make([]any, len(models.Games))
	for i, g := range models.Games {
		if v, ok := s[g]; ok {
			vals[i] = v
		}
	}
	return vals
}

// combineExpr builds the SET expression for col. arg is the placeholder of the
// submitted score and greatest the dialect's two-argument maximum function.
func combineExpr(col string, c models.Combine, arg, greatest string) (string, error) {
	switch c {
	case models.CombineOverwrite:
		return arg, nil
	case models.CombineMax:
		return fmt.Sprintf("%s(COALESCE(%s, 0), %s)", greatest, col, arg), nil
	case models.CombineAdd:
		return fmt.Sprintf("COALESCE(%s, 0) + %s", col, arg), nil
	case models.CombineFewest:
		return fmt.Sprintf("CASE WHEN %[1]s IS NULL OR %[1]s <= 0 OR %[2]s < %[1]s THEN %[2]s ELSE %[1]s END", col, arg), nil
	}
	return "", fmt.Errorf("unknown combine policy %q", c)
}

// Open returns the Store selected by kind ("postgres" or "sqlite").
func Open(ctx context.Context, kind, postgresURL, sqlitePath string) (Store, error) {
	switch kind {
	case "postgres":
		pg, err := OpenPostgres(ctx, postgresURL)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case "sqlite":
		lite, err := OpenSQLite(sqlitePath)
		if err != nil {
			return nil, err
		}
		return lite, nil
	}
	return nil, fmt.Errorf("unknown store %q", kind)
}
