package matchmaker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisRepo struct {
	rdb *redis.Client
}

func NewRedisRepo(rdb *redis.Client) Repo {
	return &redisRepo{rdb: rdb}
}

// Key layout:
//
//	set: mm:pool:{rule}          -> Set(playerID, ...)
//	kv : mm:player:{playerID}    -> rule (locates the pool on cancel)
//	kv : mm:playerRoom:{playerID}-> roomID (double-join guard)
//
// Player keys carry a TTL so abandoned queues drain themselves.
func poolKey(rule string) string {
	return "mm:pool:" + rule
}
func playerKey(id string) string {
	return "mm:player:" + id
}
func playerRoomKey(id string) string {
	return "mm:playerRoom:" + id
}

func (r *redisRepo) Enqueue(ctx context.Context, rule, playerID string, ttlSeconds int) error {
	p := r.rdb.Pipeline()
	p.SAdd(ctx, poolKey(rule), playerID)
	p.Set(ctx, playerKey(playerID), rule, time.Duration(ttlSeconds)*time.Second)
	_, err := p.Exec(ctx)
	return err
}

func (r *redisRepo) PopNRandom(ctx context.Context, rule string, n int) ([]string, error) {
	// SPOP with count is atomic, so two racing joins can never pull the same
	// player into two tables.
	res, err := r.rdb.SPopN(ctx, poolKey(rule), int64(n)).Result()
	if err != nil {
		return nil, err
	}
	if len(res) > 0 {
		p := r.rdb.Pipeline()
		for _, id := range res {
			p.Del(ctx, playerKey(id))
		}
		_, _ = p.Exec(ctx)
	}
	return res, nil
}

func (r *redisRepo) Remove(ctx context.Context, playerID string) error {
	rule, err := r.rdb.Get(ctx, playerKey(playerID)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}

	// Drop the player key, pull the member, clean an emptied pool.
	script := `
        redis.call("DEL", KEYS[1])
        redis.call("SREM", KEYS[2], ARGV[1])
        if redis.call("SCARD", KEYS[2]) == 0 then
            redis.call("DEL", KEYS[2])
        end
        return 1
    `
	if err := r.rdb.Eval(ctx, script, []string{playerKey(playerID), poolKey(rule)}, playerID).Err(); err != nil {
		// Fallback for redis builds without scripting.
		p := r.rdb.Pipeline()
		p.SRem(ctx, poolKey(rule), playerID)
		p.Del(ctx, playerKey(playerID))
		if _, execErr := p.Exec(ctx); execErr != nil {
			return execErr
		}
		if n, _ := r.rdb.SCard(ctx, poolKey(rule)).Result(); n == 0 {
			_ = r.rdb.Del(ctx, poolKey(rule)).Err()
		}
	}
	return nil
}

func (r *redisRepo) Count(ctx context.Context, rule string) (int64, error) {
	return r.rdb.SCard(ctx, poolKey(rule)).Result()
}

// SaveRoom records the formed table and a player->room index so a player
// cannot queue into a second game while one is live.
func (r *redisRepo) SaveRoom(ctx context.Context, room *Room, ttlSeconds int) error {
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}
	p := r.rdb.Pipeline()
	p.Set(ctx, fmt.Sprintf("mm:room:%s", room.ID), data, time.Duration(ttlSeconds)*time.Second)
	for _, id := range room.Players {
		p.Set(ctx, playerRoomKey(id), room.ID, time.Duration(ttlSeconds)*time.Second)
	}
	_, err = p.Exec(ctx)
	return err
}

func (r *redisRepo) GetPlayerRoom(ctx context.Context, playerID string) (string, error) {
	val, err := r.rdb.Get(ctx, playerRoomKey(playerID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}
