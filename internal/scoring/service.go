package scoring

import (
	"context"
	"errors"
	"fmt"

	"github.com/jason-s-yu/arcade/internal/apperrors"
	"github.com/jason-s-yu/arcade/internal/database"
	"github.com/jason-s-yu/arcade/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrLeaderboardUnavailable marks a failed leaderboard fetch, as opposed to an
// empty leaderboard.
var ErrLeaderboardUnavailable = errors.New("no data returned from store")

// UserStore is the part of the persistence collaborator the score logic needs.
type UserStore interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	GetScore(ctx context.Context, username string, game models.Game) (int, error)
	UpdateScore(ctx context.Context, key models.UserKey, game models.Game, score int, combine models.Combine) (bool, error)
	RecordMatch(ctx context.Context, result models.MatchResult, points int) error
}

type Options struct {
	// UpdatePolicy applies to UpdateScore. Guest scores always use max.
	UpdatePolicy models.Combine
	Order        Order
	// WinPoints is added to a tic-tac-toe winner's TTT score.
	WinPoints int
}

type Service struct {
	users  UserStore
	guests GuestStore
	logger *logrus.Logger
	opts   Options
}

func NewService(users UserStore, guests GuestStore, logger *logrus.Logger, opts Options) *Service {
	if opts.UpdatePolicy == "" {
		opts.UpdatePolicy = models.CombineOverwrite
	}
	if opts.Order == "" {
		opts.Order = Ascending
	}
	return &Service{users: users, guests: guests, logger: logger, opts: opts}
}

// Leaderboard ranks every user by total score. An empty order uses the
// configured default.
func (s *Service) Leaderboard(ctx context.Context, order Order) ([]models.LeaderboardEntry, error) {
	if order == "" {
		order = s.opts.Order
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("%w: %v", ErrLeaderboardUnavailable, err))
	}
	if users == nil {
		return nil, apperrors.Internal(ErrLeaderboardUnavailable)
	}
	return Rank(users, order), nil
}

// MaxScore returns username's stored score for game (default Flappy). An
// unknown user has no score yet and yields 0.
func (s *Service) MaxScore(ctx context.Context, username, game string) (int, error) {
	if username == "" {
		return 0, apperrors.BadRequest("Missing username")
	}
	g, err := models.ParseGame(game)
	if err != nil {
		return 0, apperrors.BadRequest(err.Error())
	}

	score, err := s.users.GetScore(ctx, username, g)
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, apperrors.Internal(err)
	}
	return score, nil
}

// ScoreUpdate is a submitted score. Identity, when set, takes precedence over
// Username. A nil Score means the field was absent.
type ScoreUpdate struct {
	Identity *models.Identity
	Username string
	Game     string
	Score    *int
}

// UpdateScore writes a score under the configured policy. The score itself is
// not range checked.
func (s *Service) UpdateScore(ctx context.Context, req ScoreUpdate) error {
	if req.Score == nil {
		return apperrors.BadRequest("Missing score")
	}
	g, err := models.ParseGame(req.Game)
	if err != nil {
		return apperrors.BadRequest(err.Error())
	}

	var key models.UserKey
	switch {
	case req.Identity != nil:
		key.ID = req.Identity.ID
	case req.Username != "":
		key.Username = req.Username
	default:
		return apperrors.Unauthorized("Not logged in")
	}

	matched, err := s.users.UpdateScore(ctx, key, g, *req.Score, s.opts.UpdatePolicy)
	if err != nil {
		return apperrors.Internal(err)
	}
	if !matched {
		s.logger.WithFields(logrus.Fields{
			"user_id":  key.ID,
			"username": key.Username,
			"game":     g,
		}).Warn("score update matched no user")
	}
	return nil
}

// SubmitGuestScore records a guess-number score for a username that may not
// have an account and returns the best score seen for it.
func (s *Service) SubmitGuestScore(ctx context.Context, username string, score *int) (int, error) {
	if username == "" || score == nil {
		return 0, apperrors.BadRequest("Invalid data")
	}
	best, err := s.guests.MaxGuestScore(ctx, username, *score)
	if err != nil {
		return 0, apperrors.Internal(err)
	}
	return best, nil
}

// UpdateGuessAttempts keeps the fewest attempts a registered user needed in
// the guess-number game. A stored 0 counts as no result yet.
func (s *Service) UpdateGuessAttempts(ctx context.Context, username string, attempts *int) error {
	if username == "" || attempts == nil {
		return apperrors.BadRequest("Missing data")
	}
	matched, err := s.users.UpdateScore(ctx, models.UserKey{Username: username}, models.GuessNum, *attempts, models.CombineFewest)
	if err != nil {
		return apperrors.Internal(err)
	}
	if !matched {
		return apperrors.NotFound("User not found")
	}
	return nil
}

// RecordMatch stores a finished tic-tac-toe match and awards the winner.
func (s *Service) RecordMatch(ctx context.Context, result models.MatchResult) error {
	if err := s.users.RecordMatch(ctx, result, s.opts.WinPoints); err != nil {
		return err
	}
	entry := s.logger.WithFields(logrus.Fields{"match_id": result.MatchID, "winner": result.Winner})
	if result.Draw() {
		entry.Info("recorded drawn match")
	} else {
		entry.Infof("recorded match, +%d TTT", s.opts.WinPoints)
	}
	return nil
}
