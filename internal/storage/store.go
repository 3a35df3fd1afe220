package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"

	"github.com/kokutaro/mahjong-point-manager-sub001/internal/game/table"
)

// MatchStore persists the score table. The engine calls SaveMatch exactly
// once per mutating operation, before the new state becomes visible, so the
// durable record never lags a committed mutation.
type MatchStore interface {
	SaveMatch(ctx context.Context, m *table.Match) error
	LoadMatch(ctx context.Context, id string) (*table.Match, error)
}

// ---------- Postgres ----------

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema:
//
//	CREATE TABLE matches (
//	    id         TEXT PRIMARY KEY,
//	    status     TEXT NOT NULL,
//	    snapshot   JSONB NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
func (s *PostgresStore) SaveMatch(ctx context.Context, m *table.Match) error {
	snapshot, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO matches (id, status, snapshot, updated_at)
        VALUES ($1, $2, $3, now())
        ON CONFLICT (id) DO UPDATE
        SET status = EXCLUDED.status, snapshot = EXCLUDED.snapshot, updated_at = now()`,
		m.ID, string(m.Status), snapshot)
	return err
}

func (s *PostgresStore) LoadMatch(ctx context.Context, id string) (*table.Match, error) {
	var snapshot []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot FROM matches WHERE id = $1`, id).Scan(&snapshot)
	if err == sql.ErrNoRows {
		return nil, table.ErrMatchNotFound
	}
	if err != nil {
		return nil, err
	}
	var m table.Match
	if err := json.Unmarshal(snapshot, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ---------- Memory (tests, single-node solo deployments) ----------

type MemoryStore struct {
	mu      sync.RWMutex
	matches map[string]*table.Match
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{matches: make(map[string]*table.Match)}
}

func (s *MemoryStore) SaveMatch(ctx context.Context, m *table.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[m.ID] = m.Clone()
	return nil
}

func (s *MemoryStore) LoadMatch(ctx context.Context, id string) (*table.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, table.ErrMatchNotFound
	}
	return m.Clone(), nil
}
