package ttt

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arcade/internal/models"
	"github.com/sirupsen/logrus"
)

// Server to client frame types.
const (
	EventWaiting   = "waiting"
	EventMatched   = "matched"
	EventGameState = "game_state"
	EventError     = "error"
	EventPong      = "pong"
)

// Event is one server to client frame.
type Event struct {
	Type    string          `json:"type"`
	RoomID  string          `json:"room_id,omitempty"`
	Mark    Mark            `json:"mark,omitempty"`
	Board   *Board          `json:"board,omitempty"`
	Turn    Mark            `json:"turn,omitempty"`
	Winner  string          `json:"winner,omitempty"`
	Players map[Mark]string `json:"players,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Player is one connected client. OutChan is drained by the connection's
// write pump.
type Player struct {
	ID      uuid.UUID
	Name    string
	OutChan chan Event

	room *Room
}

func NewPlayer(name string) *Player {
	return &Player{
		ID:      uuid.New(),
		Name:    name,
		OutChan: make(chan Event, 16),
	}
}

// Send queues ev without blocking. It reports false when the buffer is full.
func (p *Player) Send(ev Event) bool {
	select {
	case p.OutChan <- ev:
		return true
	default:
		return false
	}
}

func (p *Player) SendError(msg string) bool {
	return p.Send(Event{Type: EventError, Message: msg})
}

// ResultRecorder receives every finished match. The scoring service records
// inline; the Redis match queue defers to the historian.
type ResultRecorder interface {
	RecordMatch(ctx context.Context, result models.MatchResult) error
}

var ErrAlreadyQueued = errors.New("already waiting or playing")

// Matchmaker pairs waiting players and owns every active room.
type Matchmaker struct {
	mu       sync.Mutex
	waiting  *Player
	rooms    map[uuid.UUID]*Room
	recorder ResultRecorder
	logger   *logrus.Logger

	recordTimeout time.Duration
}

func NewMatchmaker(recorder ResultRecorder, logger *logrus.Logger) *Matchmaker {
	return &Matchmaker{
		rooms:         make(map[uuid.UUID]*Room),
		recorder:      recorder,
		logger:        logger,
		recordTimeout: 5 * time.Second,
	}
}

// FindMatch queues p, or pairs it with the waiting player. The arrival plays X.
// A non-empty name replaces p's display name.
func (m *Matchmaker) FindMatch(p *Player, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.room != nil || m.waiting == p {
		return ErrAlreadyQueued
	}
	if name != "" {
		p.Name = name
	}
	if m.waiting == nil {
		m.waiting = p
		m.send(p, Event{Type: EventWaiting})
		m.logger.WithField("player", p.Name).Debug("ttt: player waiting")
		return nil
	}

	opponent := m.waiting
	m.waiting = nil
	room := newRoom(p, opponent)
	p.room = room
	opponent.room = room
	m.rooms[room.ID] = room

	m.send(p, Event{Type: EventMatched, RoomID: room.ID.String(), Mark: X})
	m.send(opponent, Event{Type: EventMatched, RoomID: room.ID.String(), Mark: O})
	m.broadcast(room, room.state())

	m.logger.WithFields(logrus.Fields{
		"room_id":  room.ID,
		"player_x": p.Name,
		"player_o": opponent.Name,
	}).Info("ttt: match started")
	return nil
}

// Move applies p's move. The result of a finished game is reported to the
// recorder after the lock is released.
func (m *Matchmaker) Move(ctx context.Context, p *Player, roomID uuid.UUID, index int) error {
	m.mu.Lock()
	room, err := m.roomFor(p, roomID)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if err := room.Move(p, index); err != nil {
		m.mu.Unlock()
		return err
	}
	m.broadcast(room, room.state())
	result, finished := room.takeResult(time.Now())
	m.mu.Unlock()

	if finished {
		m.report(ctx, result)
	}
	return nil
}

func (m *Matchmaker) Restart(p *Player, roomID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, err := m.roomFor(p, roomID)
	if err != nil {
		return err
	}
	room.Restart()
	m.broadcast(room, room.state())
	return nil
}

// Leave drops p from the waiting slot or its room. The opponent is told and
// the room is closed.
func (m *Matchmaker) Leave(p *Player) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.waiting == p {
		m.waiting = nil
	}
	room := p.room
	if room == nil {
		return
	}
	other := room.opponent(p)
	other.room = nil
	p.room = nil
	delete(m.rooms, room.ID)
	m.send(other, Event{Type: EventError, RoomID: room.ID.String(), Message: "Opponent disconnected"})

	m.logger.WithFields(logrus.Fields{"room_id": room.ID, "player": p.Name}).Info("ttt: room closed")
}

// Rooms returns the number of active rooms.
func (m *Matchmaker) Rooms() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

func (m *Matchmaker) roomFor(p *Player, roomID uuid.UUID) (*Room, error) {
	room, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrUnknownRoom
	}
	if room.markOf(p) == Empty {
		return nil, ErrNotInRoom
	}
	return room, nil
}

func (m *Matchmaker) broadcast(room *Room, ev Event) {
	for _, p := range room.players {
		m.send(p, ev)
	}
}

func (m *Matchmaker) send(p *Player, ev Event) {
	if !p.Send(ev) {
		m.logger.Warnf("ttt: OutChan for player %s full, dropped %q", p.ID, ev.Type)
	}
}

func (m *Matchmaker) report(ctx context.Context, result models.MatchResult) {
	if m.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.recordTimeout)
	defer cancel()
	if err := m.recorder.RecordMatch(ctx, result); err != nil {
		m.logger.WithError(err).WithField("match_id", result.MatchID).Error("ttt: failed to record match")
	}
}
