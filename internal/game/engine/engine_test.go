package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kokutaro/mahjong-point-manager-sub001/internal/game/table"
	"github.com/kokutaro/mahjong-point-manager-sub001/internal/storage"
	"github.com/kokutaro/mahjong-point-manager-sub001/internal/websocket"
)

// mockHub implements HubInterface and records broadcasts.
type mockHub struct {
	mu         sync.Mutex
	broadcasts []websocket.OutgoingMessage
	direct     map[string][]websocket.OutgoingMessage
}

func newMockHub() *mockHub {
	return &mockHub{direct: make(map[string][]websocket.OutgoingMessage)}
}

func (h *mockHub) BroadcastToPlayers(ids []string, msg websocket.OutgoingMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcasts = append(h.broadcasts, msg)
}

func (h *mockHub) SendToPlayer(id string, msg websocket.OutgoingMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.direct[id] = append(h.direct[id], msg)
}

func (h *mockHub) ClientByID(id string) (*websocket.Client, bool) { return nil, false }
func (h *mockHub) Close()                                         {}

func (h *mockHub) events() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.broadcasts))
	for _, b := range h.broadcasts {
		out = append(out, b.Event)
	}
	return out
}

type failingStore struct{}

func (failingStore) SaveMatch(ctx context.Context, m *table.Match) error {
	return errors.New("store down")
}
func (failingStore) LoadMatch(ctx context.Context, id string) (*table.Match, error) {
	return nil, table.ErrMatchNotFound
}

var players = [4]string{"p0", "p1", "p2", "p3"}

func newTestEngine(t *testing.T, length table.GameLength) (*Engine, *mockHub) {
	t.Helper()
	hub := newMockHub()
	m := table.NewMatch("m-test", players, length, 25000)
	eng := NewEngine(m, hub, storage.NewMemoryStore())
	require.NoError(t, eng.Start(context.Background()))
	return eng, hub
}

// conserved asserts the fundamental invariant: seat points plus escrow never
// change value.
func conserved(t *testing.T, eng *Engine) {
	t.Helper()
	m := eng.State()
	sum := m.RiichiSticks * 1000
	for _, s := range m.Seats {
		sum += s.Points
	}
	assert.Equal(t, 4*m.BasePoints, sum)
}

func TestDeclareReach(t *testing.T) {
	eng, hub := newTestEngine(t, table.EastOnly)
	ctx := context.Background()

	m, err := eng.DeclareReach(ctx, table.ByPosition(2))
	require.NoError(t, err)

	assert.Equal(t, 24000, m.Seats[2].Points)
	assert.True(t, m.Seats[2].IsReach)
	assert.Equal(t, 1, m.RiichiSticks)
	assert.Contains(t, hub.events(), "reach")
	conserved(t, eng)
}

func TestDeclareReach_Failures(t *testing.T) {
	eng, _ := newTestEngine(t, table.EastOnly)
	ctx := context.Background()

	_, err := eng.DeclareReach(ctx, table.ByPosition(7))
	assert.ErrorIs(t, err, table.ErrSeatNotFound)

	_, err = eng.DeclareReach(ctx, table.ByIdentity("nobody"))
	assert.ErrorIs(t, err, table.ErrSeatNotFound)

	_, err = eng.DeclareReach(ctx, table.ByPosition(1))
	require.NoError(t, err)
	_, err = eng.DeclareReach(ctx, table.ByPosition(1))
	assert.ErrorIs(t, err, table.ErrAlreadyReach)

	conserved(t, eng)
}

func TestDeclareReach_InsufficientPoints(t *testing.T) {
	hub := newMockHub()
	m := table.NewMatch("m-poor", players, table.EastOnly, 25000)
	m.Seats[3].Points = 900
	m.Seats[0].Points = 49100 // keep the table total intact
	eng := NewEngine(m, hub, storage.NewMemoryStore())
	require.NoError(t, eng.Start(context.Background()))

	_, err := eng.DeclareReach(context.Background(), table.ByPosition(3))
	assert.ErrorIs(t, err, table.ErrInsufficientPoints)
	assert.Equal(t, 900, eng.State().Seats[3].Points)
}

func TestDealerTsumo_RepeatsDealer(t *testing.T) {
	// Scenario: dealer seat 0 tsumo 1 han 30 fu -> +1500, honba 1, round 1.
	eng, hub := newTestEngine(t, table.EastOnly)

	out, err := eng.DistributeWinPoints(context.Background(), table.ByPosition(0), 1, 30, true, nil)
	require.NoError(t, err)

	m := out.Table
	assert.Equal(t, 26500, m.Seats[0].Points)
	for i := 1; i < 4; i++ {
		assert.Equal(t, 24500, m.Seats[i].Points, "seat %d", i)
	}
	assert.True(t, out.DealerRepeat)
	assert.Equal(t, 1, m.Honba)
	assert.Equal(t, 1, m.Round)
	assert.Equal(t, 0, m.DealerSeat)
	assert.False(t, out.GameEnded)
	assert.Contains(t, hub.events(), "win")
	conserved(t, eng)
}

func TestRonClaimsEscrow(t *testing.T) {
	// Scenario: seat 2 declares riichi, then seat 1 rons seat 3 for 3 han
	// 40 fu and takes the stick along with the 5200 payment.
	eng, _ := newTestEngine(t, table.EastOnly)
	ctx := context.Background()

	_, err := eng.DeclareReach(ctx, table.ByPosition(2))
	require.NoError(t, err)

	loser := table.ByPosition(3)
	out, err := eng.DistributeWinPoints(ctx, table.ByPosition(1), 3, 40, false, &loser)
	require.NoError(t, err)

	m := out.Table
	assert.Equal(t, 25000+5200+1000, m.Seats[1].Points)
	assert.Equal(t, 25000-5200, m.Seats[3].Points)
	assert.Equal(t, 24000, m.Seats[2].Points)
	assert.Equal(t, 0, m.RiichiSticks)

	// Non-dealer win: round advances, dealer rotates, honba resets.
	assert.False(t, out.DealerRepeat)
	assert.Equal(t, 2, m.Round)
	assert.Equal(t, 1, m.DealerSeat)
	assert.Equal(t, 0, m.Honba)
	assert.False(t, m.Seats[2].IsReach, "reach resets each hand")
	conserved(t, eng)
}

func TestDistributeWinPoints_Validation(t *testing.T) {
	eng, _ := newTestEngine(t, table.EastOnly)
	ctx := context.Background()
	before := eng.State()

	// Tsumo with a loser seat.
	loser := table.ByPosition(1)
	_, err := eng.DistributeWinPoints(ctx, table.ByPosition(0), 2, 30, true, &loser)
	assert.ErrorIs(t, err, table.ErrInvalidInput)

	// Ron without a loser.
	_, err = eng.DistributeWinPoints(ctx, table.ByPosition(0), 2, 30, false, nil)
	assert.ErrorIs(t, err, table.ErrInvalidInput)

	// Ron off self.
	self := table.ByPosition(0)
	_, err = eng.DistributeWinPoints(ctx, table.ByPosition(0), 2, 30, false, &self)
	assert.ErrorIs(t, err, table.ErrInvalidInput)

	// Invalid han/fu propagates from the calculator.
	loser3 := table.ByPosition(3)
	_, err = eng.DistributeWinPoints(ctx, table.ByPosition(0), 2, 35, false, &loser3)
	assert.ErrorIs(t, err, table.ErrInvalidInput)

	// No state mutation on any failure.
	assert.Equal(t, before.Points(), eng.State().Points())
	assert.Equal(t, before.Round, eng.State().Round)
}

func TestRyukyoku_DealerTenpaiRepeats(t *testing.T) {
	// Scenario: tenpai [0,1], dealer 0: seats 2,3 pay 1500 each, dealer
	// repeats with honba 1.
	eng, hub := newTestEngine(t, table.EastOnly)

	out, err := eng.HandleRyukyoku(context.Background(), DrawExhaustive, []int{0, 1})
	require.NoError(t, err)

	m := out.Table
	assert.Equal(t, 26500, m.Seats[0].Points)
	assert.Equal(t, 26500, m.Seats[1].Points)
	assert.Equal(t, 23500, m.Seats[2].Points)
	assert.Equal(t, 23500, m.Seats[3].Points)

	assert.True(t, out.DealerRepeat)
	assert.Equal(t, 0, m.DealerSeat)
	assert.Equal(t, 1, m.Honba)
	assert.Equal(t, 1, m.Round)
	assert.Contains(t, hub.events(), "draw")
	conserved(t, eng)
}

func TestRyukyoku_DealerNotenRotates(t *testing.T) {
	eng, _ := newTestEngine(t, table.EastOnly)

	out, err := eng.HandleRyukyoku(context.Background(), DrawExhaustive, []int{1, 2})
	require.NoError(t, err)

	assert.False(t, out.DealerRepeat)
	assert.Equal(t, 1, out.Table.DealerSeat)
	assert.Equal(t, 2, out.Table.Round)
	assert.Equal(t, 0, out.Table.Honba)
}

func TestRyukyoku_SticksCarryOver(t *testing.T) {
	eng, _ := newTestEngine(t, table.EastOnly)
	ctx := context.Background()

	_, err := eng.DeclareReach(ctx, table.ByPosition(1))
	require.NoError(t, err)

	out, err := eng.HandleRyukyoku(ctx, DrawExhaustive, []int{1})
	require.NoError(t, err)

	assert.Equal(t, 1, out.Table.RiichiSticks, "escrow is not claimed on a draw")
	conserved(t, eng)
}

func TestRyukyoku_ReachImpliesTenpai(t *testing.T) {
	eng, _ := newTestEngine(t, table.EastOnly)
	ctx := context.Background()

	_, err := eng.DeclareReach(ctx, table.ByPosition(2))
	require.NoError(t, err)
	before := eng.State()

	_, err = eng.HandleRyukyoku(ctx, DrawExhaustive, []int{0, 1})
	assert.ErrorIs(t, err, table.ErrReachPlayerNotTenpai)
	assert.Equal(t, before.Points(), eng.State().Points())
	assert.True(t, eng.State().Seats[2].IsReach)
}

func TestRyukyoku_BadTenpaiLists(t *testing.T) {
	eng, _ := newTestEngine(t, table.EastOnly)
	ctx := context.Background()

	_, err := eng.HandleRyukyoku(ctx, DrawExhaustive, []int{4})
	assert.ErrorIs(t, err, table.ErrInvalidInput)

	_, err = eng.HandleRyukyoku(ctx, DrawExhaustive, []int{1, 1})
	assert.ErrorIs(t, err, table.ErrInvalidInput)
}

func TestRyukyoku_AbortiveDraw(t *testing.T) {
	eng, _ := newTestEngine(t, table.EastOnly)
	ctx := context.Background()

	// All four declare riichi, then the hand aborts. No payments, no tenpai
	// check, dealer repeats, sticks stay escrowed.
	for i := 0; i < 4; i++ {
		_, err := eng.DeclareReach(ctx, table.ByPosition(i))
		require.NoError(t, err)
	}

	out, err := eng.HandleRyukyoku(ctx, DrawFourRiichi, nil)
	require.NoError(t, err)

	assert.True(t, out.DealerRepeat)
	assert.Equal(t, 1, out.Table.Honba)
	assert.Equal(t, 4, out.Table.RiichiSticks)
	for _, s := range out.Table.Seats {
		assert.Equal(t, 24000, s.Points)
		assert.False(t, s.IsReach)
	}
	conserved(t, eng)
}

func TestMatchEndsAfterAllLast(t *testing.T) {
	// Scenario: east-only match on its final hand; a non-dealer win ends it
	// and ranks come from final points with ties to the lower seat.
	hub := newMockHub()
	m := table.NewMatch("m-last", players, table.EastOnly, 25000)
	m.Round = 4
	m.DealerSeat = 3
	eng := NewEngine(m, hub, storage.NewMemoryStore())
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))

	loser := table.ByPosition(3)
	out, err := eng.DistributeWinPoints(ctx, table.ByPosition(1), 3, 40, false, &loser)
	require.NoError(t, err)

	assert.True(t, out.GameEnded)
	assert.Equal(t, table.StatusFinished, out.Table.Status)
	require.NotNil(t, out.Table.Result)

	res := *out.Table.Result
	assert.Equal(t, 1, res[1].Rank) // 30200
	assert.Equal(t, 4, res[3].Rank) // 19800
	// Seats 0 and 2 tied at 25000: lower index ranks higher.
	assert.Equal(t, 2, res[0].Rank)
	assert.Equal(t, 3, res[2].Rank)

	sum := 0
	for _, r := range res {
		sum += r.Settlement
	}
	assert.Zero(t, sum)
	assert.Contains(t, hub.events(), "match_ended")

	// Once finished, every mutation fails.
	_, err = eng.DeclareReach(ctx, table.ByPosition(0))
	assert.ErrorIs(t, err, table.ErrMatchNotPlaying)
	_, err = eng.HandleRyukyoku(ctx, DrawExhaustive, nil)
	assert.ErrorIs(t, err, table.ErrMatchNotPlaying)
}

func TestDealerRepeatExtendsAllLast(t *testing.T) {
	hub := newMockHub()
	m := table.NewMatch("m-renchan", players, table.EastOnly, 25000)
	m.Round = 4
	m.DealerSeat = 3
	eng := NewEngine(m, hub, storage.NewMemoryStore())
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))

	// Dealer win on all-last keeps the match alive.
	out, err := eng.DistributeWinPoints(ctx, table.ByPosition(3), 1, 30, true, nil)
	require.NoError(t, err)
	assert.False(t, out.GameEnded)
	assert.Equal(t, table.StatusPlaying, out.Table.Status)
	assert.Equal(t, 4, out.Table.Round)
	assert.Equal(t, 1, out.Table.Honba)
}

func TestForceEndGame(t *testing.T) {
	eng, hub := newTestEngine(t, table.EastSouth)
	ctx := context.Background()

	m, err := eng.ForceEndGame(ctx, "table abandoned")
	require.NoError(t, err)
	assert.Equal(t, table.StatusFinished, m.Status)
	assert.Equal(t, "table abandoned", m.EndReason)
	require.NotNil(t, m.Result)
	assert.Contains(t, hub.events(), "match_ended")

	// Idempotency guard: a second call is a conflict, not a rewrite.
	_, err = eng.ForceEndGame(ctx, "again")
	assert.ErrorIs(t, err, table.ErrMatchAlreadyFinished)
	assert.Equal(t, "table abandoned", eng.State().EndReason)
}

func TestForceEndGame_LeftoverSticksGoToLeader(t *testing.T) {
	eng, _ := newTestEngine(t, table.EastOnly)
	ctx := context.Background()

	_, err := eng.DeclareReach(ctx, table.ByPosition(2))
	require.NoError(t, err)
	loser := table.ByPosition(0)
	_, err = eng.DistributeWinPoints(ctx, table.ByPosition(1), 1, 30, false, &loser)
	require.NoError(t, err)
	_, err = eng.DeclareReach(ctx, table.ByPosition(3))
	require.NoError(t, err)

	m, err := eng.ForceEndGame(ctx, "aborted")
	require.NoError(t, err)

	// Seat 1 leads (won 1000 ron + seat 2's earlier stick), so the stick
	// seat 3 left in escrow lands there before settlement.
	assert.Equal(t, 0, m.RiichiSticks)
	conserved(t, eng)

	sum := 0
	for _, r := range *m.Result {
		sum += r.Settlement
	}
	assert.Zero(t, sum)
}

func TestStoreFailureLeavesStateUntouched(t *testing.T) {
	hub := newMockHub()
	m := table.NewMatch("m-store", players, table.EastOnly, 25000)
	m.Status = table.StatusPlaying
	eng := NewEngine(m, hub, failingStore{})

	before := eng.State()
	_, err := eng.DeclareReach(context.Background(), table.ByPosition(0))
	assert.Error(t, err)
	assert.Equal(t, before.Points(), eng.State().Points())
	assert.Equal(t, 0, eng.State().RiichiSticks)
}

func TestPointConservationAcrossSequence(t *testing.T) {
	eng, _ := newTestEngine(t, table.EastSouth)
	ctx := context.Background()

	_, err := eng.DeclareReach(ctx, table.ByPosition(0))
	require.NoError(t, err)
	_, err = eng.HandleRyukyoku(ctx, DrawExhaustive, []int{0})
	require.NoError(t, err)
	conserved(t, eng)

	_, err = eng.DistributeWinPoints(ctx, table.ByPosition(2), 4, 30, true, nil)
	require.NoError(t, err)
	conserved(t, eng)

	loser := table.ByPosition(0)
	_, err = eng.DistributeWinPoints(ctx, table.ByPosition(3), 2, 40, false, &loser)
	require.NoError(t, err)
	conserved(t, eng)
}

func TestConcurrentMutationsSerialize(t *testing.T) {
	eng, _ := newTestEngine(t, table.EastSouth)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(seat int) {
			defer wg.Done()
			_, _ = eng.DeclareReach(ctx, table.ByPosition(seat))
		}(i)
	}
	// Readers race the writers and must always see a conserved table.
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conserved(t, eng)
		}()
	}
	wg.Wait()

	m := eng.State()
	assert.Equal(t, 4, m.RiichiSticks)
	conserved(t, eng)
}

func TestEmittedSnapshotsAreDetached(t *testing.T) {
	eng, hub := newTestEngine(t, table.EastOnly)

	_, err := eng.DeclareReach(context.Background(), table.ByPosition(0))
	require.NoError(t, err)

	// Grab the table carried by the reach broadcast.
	var snap *table.Match
	hub.mu.Lock()
	for _, b := range hub.broadcasts {
		if b.Event != "reach" {
			continue
		}
		data, ok := b.Data.(map[string]any)
		require.True(t, ok)
		snap, ok = data["table"].(*table.Match)
		require.True(t, ok)
	}
	hub.mu.Unlock()
	require.NotNil(t, snap)

	// A presence flip after the emit must not rewrite a payload the hub
	// may still be serializing.
	eng.SetConnected("p1", true)
	assert.False(t, snap.Seats[1].IsConnected)
	assert.True(t, eng.State().Seats[1].IsConnected)
}
