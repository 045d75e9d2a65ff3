// Package scoring holds the arcade's score logic: per-user totals, the
// leaderboard, max-score lookups and the score update policies.
package scoring

import (
	"fmt"
	"sort"

	"github.com/jason-s-yu/arcade/internal/models"
)

// Total sums every recognized game in scores. Missing games count as 0.
func Total(scores models.Scores) int {
	total := 0
	for _, g := range models.Games {
		total += scores.Get(g)
	}
	return total
}

// Order is the leaderboard sort direction.
type Order string

const (
	Ascending  Order = "asc"
	Descending Order = "desc"
)

func ParseOrder(s string) (Order, error) {
	switch Order(s) {
	case Ascending, Descending:
		return Order(s), nil
	}
	return "", fmt.Errorf("unknown order %q", s)
}

// Rank computes each user's total and sorts the entries by total. Users with
// equal totals keep their input order. An empty input yields an empty,
// non-nil slice.
func Rank(users []models.User, order Order) []models.LeaderboardEntry {
	entries := make([]models.LeaderboardEntry, 0, len(users))
	for _, u := range users {
		entries = append(entries, models.LeaderboardEntry{
			Username:   u.Username,
			TotalScore: Total(u.Scores),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if order == Descending {
			return entries[i].TotalScore > entries[j].TotalScore
		}
		return entries[i].TotalScore < entries[j].TotalScore
	})
	return entries
}
