package models

import (
	"time"

	"github.com/google/uuid"
)

// LeaderboardEntry is one row of the aggregated leaderboard.
type LeaderboardEntry struct {
	Username   string `json:"username"`
	TotalScore int    `json:"total_score"`
}

// MatchResult is the outcome of a finished two-player tic-tac-toe match.
// Winner is empty for a draw.
type MatchResult struct {
	MatchID    uuid.UUID `json:"match_id"`
	PlayerX    string    `json:"player_x"`
	PlayerO    string    `json:"player_o"`
	Winner     string    `json:"winner,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

func (r MatchResult) Draw() bool {
	return r.Winner == ""
}
