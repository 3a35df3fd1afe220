package matchmaker

import "context"

// Repo abstracts the waiting pools.
type Repo interface {
	// Enqueue adds a player to a rule pool.
	Enqueue(ctx context.Context, rule, playerID string, ttlSeconds int) error
	// PopNRandom atomically removes and returns n random players once the
	// pool holds at least n.
	PopNRandom(ctx context.Context, rule string, n int) ([]string, error)
	// Remove takes a player out of whatever pool they are queued in.
	Remove(ctx context.Context, playerID string) error
	// Count reports the pool size.
	Count(ctx context.Context, rule string) (int64, error)
	// SaveRoom records a formed table and indexes its players so they
	// cannot queue into a second game while one is live.
	SaveRoom(ctx context.Context, room *Room, ttlSeconds int) error
	// GetPlayerRoom returns the room a player is seated at, or "" if none.
	GetPlayerRoom(ctx context.Context, playerID string) (string, error)
}
