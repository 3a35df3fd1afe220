package matchmaker

import (
	"context"
	"math/rand"
	"sync"
)

type memRepo struct {
	mu         sync.Mutex
	pools      map[string]map[string]struct{} // rule -> set(playerID)
	players    map[string]string              // playerID -> rule
	rooms      map[string]*Room               // roomID -> room
	playerRoom map[string]string              // playerID -> roomID
}

// NewMemoryRepo is the in-process fallback used in tests and single-node
// deployments without redis.
func NewMemoryRepo() Repo {
	return &memRepo{
		pools:      make(map[string]map[string]struct{}),
		players:    make(map[string]string),
		rooms:      make(map[string]*Room),
		playerRoom: make(map[string]string),
	}
}

func (m *memRepo) Enqueue(ctx context.Context, rule, playerID string, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pools[rule]; !ok {
		m.pools[rule] = make(map[string]struct{})
	}
	m.pools[rule][playerID] = struct{}{}
	m.players[playerID] = rule
	// TTL ignored in memory; only the redis repo needs leak protection.
	return nil
}

func (m *memRepo) PopNRandom(ctx context.Context, rule string, n int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.pools[rule]
	if !ok || len(s) < n {
		return []string{}, nil
	}

	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	chosen := ids[:n]

	for _, id := range chosen {
		delete(s, id)
		delete(m.players, id)
	}
	if len(s) == 0 {
		delete(m.pools, rule)
	}
	return chosen, nil
}

func (m *memRepo) Remove(ctx context.Context, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule, ok := m.players[playerID]
	if !ok {
		return nil
	}
	if s, ok := m.pools[rule]; ok {
		delete(s, playerID)
	}
	delete(m.players, playerID)
	return nil
}

func (m *memRepo) Count(ctx context.Context, rule string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.pools[rule])), nil
}

func (m *memRepo) SaveRoom(ctx context.Context, room *Room, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[room.ID] = room
	for _, id := range room.Players {
		m.playerRoom[id] = room.ID
	}
	return nil
}

func (m *memRepo) GetPlayerRoom(ctx context.Context, playerID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playerRoom[playerID], nil
}
