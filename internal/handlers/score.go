package handlers

import (
	"net/http"

	"github.com/jason-s-yu/arcade/internal/apperrors"
	"github.com/jason-s-yu/arcade/internal/auth"
	"github.com/jason-s-yu/arcade/internal/scoring"
)

type guestScoreRequest struct {
	Username string `json:"username"`
	Score    *int   `json:"score"`
}

type guessAttemptsRequest struct {
	Username string `json:"username"`
	Attempts *int   `json:"attempts"`
}

type maxScoreRequest struct {
	Username string `json:"username"`
	Game     string `json:"game"`
}

type updateScoreRequest struct {
	Username string `json:"username"`
	Game     string `json:"game"`
	Score    *int   `json:"score"`
}

func (s *APIServer) GuestScoreHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req guestScoreRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, s.Logger, apperrors.BadRequest("Invalid data"))
			return
		}
		best, err := s.Scores.SubmitGuestScore(r.Context(), req.Username, req.Score)
		if err != nil {
			writeError(w, s.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "Score saved", "score": best})
	}
}

func (s *APIServer) GuessAttemptsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req guessAttemptsRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, s.Logger, err)
			return
		}
		if err := s.Scores.UpdateGuessAttempts(r.Context(), req.Username, req.Attempts); err != nil {
			writeError(w, s.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Score updated"})
	}
}

// LeaderboardHandler ranks users by total score. ?order=asc|desc overrides
// the configured order.
func (s *APIServer) LeaderboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var order scoring.Order
		if raw := r.URL.Query().Get("order"); raw != "" {
			o, err := scoring.ParseOrder(raw)
			if err != nil {
				writeError(w, s.Logger, apperrors.BadRequest(err.Error()))
				return
			}
			order = o
		}

		entries, err := s.Scores.Leaderboard(r.Context(), order)
		if err != nil {
			writeError(w, s.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": entries})
	}
}

func (s *APIServer) MaxScoreHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req maxScoreRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, s.Logger, err)
			return
		}
		score, err := s.Scores.MaxScore(r.Context(), req.Username, req.Game)
		if err != nil {
			writeError(w, s.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"maxscore": score})
	}
}

// UpdateScoreHandler stores a score for the session user, or for the named
// user when there is no session.
func (s *APIServer) UpdateScoreHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateScoreRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, s.Logger, err)
			return
		}

		update := scoring.ScoreUpdate{Username: req.Username, Game: req.Game, Score: req.Score}
		if id, ok := auth.IdentityFrom(r.Context()); ok {
			update.Identity = &id
		}
		if err := s.Scores.UpdateScore(r.Context(), update); err != nil {
			writeError(w, s.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Score updated!"})
	}
}
