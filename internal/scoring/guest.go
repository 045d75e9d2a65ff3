package scoring

import (
	"context"
	"sync"
)

// GuestStore keeps the best-seen guess-number score per username for players
// who submit without an account.
type GuestStore interface {
	GetGuestScore(ctx context.Context, username string) (int, bool, error)
	PutGuestScore(ctx context.Context, username string, score int) error
	// MaxGuestScore stores max(previous, score), with a missing previous
	// counted as 0, and returns the stored value.
	MaxGuestScore(ctx context.Context, username string, score int) (int, error)
}

// MemoryGuestStore is a process-local GuestStore. Scores are lost on restart
// and are not shared between server instances.
type MemoryGuestStore struct {
	mu     sync.Mutex
	scores map[string]int
}

func NewMemoryGuestStore() *MemoryGuestStore {
	return &MemoryGuestStore{scores: make(map[string]int)}
}

func (m *MemoryGuestStore) GetGuestScore(_ context.Context, username string) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	score, ok := m.scores[username]
	return score, ok, nil
}

func (m *MemoryGuestStore) PutGuestScore(_ context.Context, username string, score int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[username] = score
	return nil
}

func (m *MemoryGuestStore) MaxGuestScore(_ context.Context, username string, score int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	best := max(m.scores[username], score)
	m.scores[username] = best
	return best, nil
}
