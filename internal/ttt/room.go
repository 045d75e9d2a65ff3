package ttt

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arcade/internal/models"
)

var (
	ErrUnknownRoom = errors.New("room does not exist")
	ErrNotInRoom   = errors.New("you are not playing in this room")
	ErrBadCell     = errors.New("cell index must be between 0 and 8")
	ErrCellTaken   = errors.New("cell is already taken")
	ErrNotYourTurn = errors.New("it is not your turn")
	ErrGameOver    = errors.New("game is over")
)

// Room is one match between two players. X is players[0]. A Room is guarded
// by its Matchmaker's mutex.
type Room struct {
	ID      uuid.UUID
	players [2]*Player
	board   Board
	turn    Mark
	winner  Mark
	over    bool

	// matchID changes on restart so each game is recorded once.
	matchID  uuid.UUID
	reported bool
}

func newRoom(x, o *Player) *Room {
	return &Room{
		ID:      uuid.New(),
		players: [2]*Player{x, o},
		turn:    X,
		matchID: uuid.New(),
	}
}

func (r *Room) markOf(p *Player) Mark {
	switch p {
	case r.players[0]:
		return X
	case r.players[1]:
		return O
	}
	return Empty
}

func (r *Room) player(m Mark) *Player {
	if m == X {
		return r.players[0]
	}
	return r.players[1]
}

func (r *Room) opponent(p *Player) *Player {
	if r.players[0] == p {
		return r.players[1]
	}
	return r.players[0]
}

// Move places p's mark at index.
func (r *Room) Move(p *Player, index int) error {
	mark := r.markOf(p)
	switch {
	case mark == Empty:
		return ErrNotInRoom
	case r.over:
		return ErrGameOver
	case index < 0 || index >= len(r.board):
		return ErrBadCell
	case r.turn != mark:
		return ErrNotYourTurn
	case r.board[index] != Empty:
		return ErrCellTaken
	}

	r.board[index] = mark
	if w := r.board.Winner(); w != Empty {
		r.winner = w
		r.over = true
	} else if r.board.Full() {
		r.over = true
	} else {
		r.turn = mark.Other()
	}
	return nil
}

// Restart clears the board for a new game. X moves first.
func (r *Room) Restart() {
	r.board = Board{}
	r.turn = X
	r.winner = Empty
	r.over = false
	r.matchID = uuid.New()
	r.reported = false
}

// takeResult returns the finished match exactly once per game.
func (r *Room) takeResult(now time.Time) (models.MatchResult, bool) {
	if !r.over || r.reported {
		return models.MatchResult{}, false
	}
	r.reported = true
	res := models.MatchResult{
		MatchID:    r.matchID,
		PlayerX:    r.players[0].Name,
		PlayerO:    r.players[1].Name,
		FinishedAt: now.UTC(),
	}
	if r.winner != Empty {
		res.Winner = r.player(r.winner).Name
	}
	return res, true
}

func (r *Room) state() Event {
	board := r.board
	ev := Event{
		Type:   EventGameState,
		RoomID: r.ID.String(),
		Board:  &board,
		Players: map[Mark]string{
			X: r.players[0].Name,
			O: r.players[1].Name,
		},
	}
	switch {
	case r.winner != Empty:
		ev.Winner = string(r.winner)
	case r.over:
		ev.Winner = "draw"
	default:
		ev.Turn = r.turn
	}
	return ev
}
