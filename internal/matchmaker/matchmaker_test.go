package matchmaker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ws "github.com/kokutaro/mahjong-point-manager-sub001/internal/websocket"
)

// mockHub captures the matched broadcast per player.
type mockHub struct {
	mu   sync.Mutex
	msgs map[string]ws.OutgoingMessage
}

func newMockHub() *mockHub {
	return &mockHub{msgs: make(map[string]ws.OutgoingMessage)}
}

func (m *mockHub) BroadcastToPlayers(ids []string, msg ws.OutgoingMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		m.msgs[id] = msg
	}
}

func (m *mockHub) getMsg(id string) (ws.OutgoingMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.msgs[id]
	return msg, ok
}

func runMatchFlow(t *testing.T, repo Repo) {
	t.Helper()
	hub := newMockHub()
	svc := NewService(repo, 60, hub)

	var readyRoom *Room
	var wg sync.WaitGroup
	wg.Add(1)
	svc.OnRoomReady = func(r *Room) {
		readyRoom = r
		wg.Done()
	}

	players := []string{"u1", "u2", "u3", "u4"}

	// First three queue up without forming a table.
	for i := 0; i < 3; i++ {
		_, queued, err := svc.Join(context.Background(), JoinRequest{
			PlayerID: players[i], Rule: "east",
		})
		require.NoError(t, err)
		assert.True(t, queued)
	}

	// Fourth player completes the table.
	room, queued, err := svc.Join(context.Background(), JoinRequest{
		PlayerID: players[3], Rule: "east",
	})
	require.NoError(t, err)
	assert.False(t, queued)
	require.NotNil(t, room)
	assert.Len(t, room.Players, SeatsPerTable)
	assert.ElementsMatch(t, players, room.Players)

	// Every matched player got the broadcast with the room id.
	for _, p := range room.Players {
		msg, ok := hub.getMsg(p)
		require.True(t, ok, "player %s should have received a message", p)
		assert.Equal(t, "matched", msg.Event)

		raw, _ := json.Marshal(msg.Data)
		var payload map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &payload))
		assert.Equal(t, room.ID, payload["roomId"])
	}

	wg.Wait()
	require.NotNil(t, readyRoom)
	assert.Equal(t, room.ID, readyRoom.ID)

	// Pool is drained.
	cnt, err := repo.Count(context.Background(), "east")
	require.NoError(t, err)
	assert.Zero(t, cnt)
}

func Test_MemoryRepo_MatchFlow(t *testing.T) {
	runMatchFlow(t, NewMemoryRepo())
}

func Test_RedisRepo_MatchFlow(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	runMatchFlow(t, NewRedisRepo(rdb))
}

func runDoubleJoinGuard(t *testing.T, repo Repo) {
	t.Helper()
	svc := NewService(repo, 60, newMockHub())
	ctx := context.Background()

	for _, p := range []string{"u1", "u2", "u3"} {
		_, _, err := svc.Join(ctx, JoinRequest{PlayerID: p, Rule: "east"})
		require.NoError(t, err)
	}
	room, queued, err := svc.Join(ctx, JoinRequest{PlayerID: "u4", Rule: "east"})
	require.NoError(t, err)
	require.False(t, queued)
	require.NotNil(t, room)

	// A player seated at a live table cannot queue into a second game.
	_, _, err = svc.Join(ctx, JoinRequest{PlayerID: "u1", Rule: "east_south"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), room.ID)

	roomID, err := repo.GetPlayerRoom(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, room.ID, roomID)

	// Players who never formed a table are unaffected.
	roomID, err = repo.GetPlayerRoom(ctx, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, roomID)
}

func Test_MemoryRepo_DoubleJoinGuard(t *testing.T) {
	runDoubleJoinGuard(t, NewMemoryRepo())
}

func Test_RedisRepo_DoubleJoinGuard(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	runDoubleJoinGuard(t, NewRedisRepo(rdb))
}

func Test_Cancel(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, 60, newMockHub())

	_, queued, err := svc.Join(context.Background(), JoinRequest{PlayerID: "u1", Rule: "east"})
	require.NoError(t, err)
	assert.True(t, queued)

	require.NoError(t, svc.Cancel(context.Background(), "u1"))
	cnt, err := repo.Count(context.Background(), "east")
	require.NoError(t, err)
	assert.Zero(t, cnt)

	// Cancelling an unqueued player is a no-op.
	assert.NoError(t, svc.Cancel(context.Background(), "u1"))
}

func Test_RedisRepo_Remove(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := NewRedisRepo(rdb)
	ctx := context.Background()

	require.NoError(t, repo.Enqueue(ctx, "east_south", "u1", 60))
	require.NoError(t, repo.Enqueue(ctx, "east_south", "u2", 60))

	require.NoError(t, repo.Remove(ctx, "u1"))
	cnt, err := repo.Count(ctx, "east_south")
	require.NoError(t, err)
	assert.Equal(t, int64(1), cnt)
}

func Test_PoolsAreIndependent(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, 60, newMockHub())
	ctx := context.Background()

	for _, p := range []string{"a", "b", "c"} {
		_, _, err := svc.Join(ctx, JoinRequest{PlayerID: p, Rule: "east"})
		require.NoError(t, err)
	}
	// Fourth player in a different pool must not complete the east table.
	_, queued, err := svc.Join(ctx, JoinRequest{PlayerID: "d", Rule: "east_south"})
	require.NoError(t, err)
	assert.True(t, queued)
}
