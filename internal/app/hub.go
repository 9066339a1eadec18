package app

import (
	"sync"

	"escape-room-service/internal/domain"
)

// TeamSnapshot is a full view of one team's private record. Registered is
// false once the record has been deleted by a restart.
type TeamSnapshot struct {
	TeamID     string             `json:"teamId"`
	Registered bool               `json:"registered"`
	Team       *domain.TeamRecord `json:"team,omitempty"`
	Rank       int                `json:"rank,omitempty"`
}

// Hub fans out full snapshots per logical collection: config, leaderboard and
// each team's own record.
type Hub struct {
	config      *feed[domain.GameConfig]
	leaderboard *feed[domain.Leaderboard]

	mu    sync.Mutex
	teams map[string]*feed[TeamSnapshot]
}

func NewHub() *Hub {
	return &Hub{
		config:      newFeed[domain.GameConfig](),
		leaderboard: newFeed[domain.Leaderboard](),
		teams:       make(map[string]*feed[TeamSnapshot]),
	}
}

func (h *Hub) subscribeTeam(teamID string, initial TeamSnapshot) (<-chan TeamSnapshot, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, ok := h.teams[teamID]
	if !ok {
		f = newFeed[TeamSnapshot]()
		h.teams[teamID] = f
	}
	return f.subscribe(initial)
}

// watchedTeams returns the team feeds that still have subscribers and drops the rest.
func (h *Hub) watchedTeams() map[string]*feed[TeamSnapshot] {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]*feed[TeamSnapshot], len(h.teams))
	for id, f := range h.teams {
		if f.size() == 0 {
			delete(h.teams, id)
			continue
		}
		out[id] = f
	}
	return out
}

// feed is a single-topic broadcaster. Subscribers receive the latest snapshot
// first and every later one; a slow subscriber loses stale snapshots, never the newest.
type feed[T any] struct {
	mu          sync.Mutex
	last        T
	published   bool
	subscribers map[chan T]struct{}
}

func newFeed[T any]() *feed[T] {
	return &feed[T]{subscribers: make(map[chan T]struct{})}
}

// subscribe registers a subscriber. initial is delivered first unless a
// snapshot was already published, in which case the published one wins.
func (f *feed[T]) subscribe(initial T) (<-chan T, func()) {
	ch := make(chan T, 8)

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	if f.published {
		initial = f.last
	}
	ch <- initial
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

func (f *feed[T]) publish(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = v
	f.published = true
	for ch := range f.subscribers {
		select {
		case ch <- v:
		default:
			// drop the oldest pending snapshot to make room for the newest
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	}
}

func (f *feed[T]) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}
