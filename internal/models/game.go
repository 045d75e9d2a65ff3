package models

import "fmt"

// Game names one of the arcade games with a score field on the user record.
type Game string

const (
	Tetris   Game = "Tetris"
	Slide    Game = "Slide"
	Snake    Game = "Snake"
	GuessNum Game = "guessnum"
	TTT      Game = "TTT"
	Flappy   Game = "Flappy"
)

// DefaultGame is used when a request does not name a game.
const DefaultGame = Flappy

// Games lists every recognized game in the order totals are summed.
var Games = []Game{Flappy, GuessNum, Slide, Snake, Tetris, TTT}

// Valid reports whether g is a recognized game name. Names are case sensitive.
func (g Game) Valid() bool {
	for _, known := range Games {
		if g == known {
			return true
		}
	}
	return false
}

// ParseGame returns DefaultGame for an empty name.
func ParseGame(name string) (Game, error) {
	if name == "" {
		return DefaultGame, nil
	}
	g := Game(name)
	if !g.Valid() {
		return "", fmt.Errorf("unknown game %q", name)
	}
	return g, nil
}

// Scores maps a game to its stored score.
type Scores map[Game]int

// NewScores returns a score set with every game initialized to zero.
func NewScores() Scores {
	s := make(Scores, len(Games))
	for _, g := range Games {
		s[g] = 0
	}
	return s
}

// Get returns the stored score, or 0 if the game has no value.
func (s Scores) Get(g Game) int {
	return s[g]
}

// Combine decides how a submitted score merges with the stored one.
type Combine string

const (
	// CombineOverwrite stores the submitted value (last write wins).
	CombineOverwrite Combine = "overwrite"
	// CombineMax keeps the larger of stored and submitted.
	CombineMax Combine = "max"
	// CombineAdd adds the submitted value to the stored one.
	CombineAdd Combine = "add"
	// CombineFewest keeps the smaller positive value; null or 0 counts as unset.
	CombineFewest Combine = "fewest"
)

func (c Combine) Valid() bool {
	switch c {
	case CombineOverwrite, CombineMax, CombineAdd, CombineFewest:
		return true
	}
	return false
}
