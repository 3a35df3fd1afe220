package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/kokutaro/mahjong-point-manager-sub001/internal/game/table"
	"github.com/kokutaro/mahjong-point-manager-sub001/internal/score"
	"github.com/kokutaro/mahjong-point-manager-sub001/internal/storage"
	"github.com/kokutaro/mahjong-point-manager-sub001/internal/websocket"
)

// Draw reason labels. Anything outside the abortive set is handled as an
// exhaustive draw with the label recorded verbatim.
const (
	DrawExhaustive = "exhaustive_draw"
	DrawFourRiichi = "four_riichi"
	DrawNineTiles  = "nine_terminals"
	DrawFourWinds  = "four_winds"
	DrawFourKans   = "four_kans"
)

var abortiveReasons = map[string]bool{
	DrawFourRiichi: true,
	DrawNineTiles:  true,
	DrawFourWinds:  true,
	DrawFourKans:   true,
}

// Engine owns one match's score table. All mutations are serialized by the
// per-engine mutex; operations on other matches run in parallel through their
// own engines. Mutations are prepared on a clone, persisted, and only then
// swapped in, so no caller ever observes a half-applied payment.
type Engine struct {
	mu    sync.Mutex
	match *table.Match
	hub   websocket.HubInterface // nil = no push transport attached
	store storage.MatchStore     // nil = in-memory only
	uma   [4]int
}

func NewEngine(m *table.Match, hub websocket.HubInterface, store storage.MatchStore) *Engine {
	return &Engine{match: m, hub: hub, store: store, uma: score.DefaultUma}
}

// SetUma overrides the placement bonus table. Tables that do not sum to zero
// are rejected so settlements stay zero-sum.
func (e *Engine) SetUma(uma [4]int) error {
	if uma[0]+uma[1]+uma[2]+uma[3] != 0 {
		return fmt.Errorf("%w: uma table must sum to zero", table.ErrInvalidInput)
	}
	e.mu.Lock()
	e.uma = uma
	e.mu.Unlock()
	return nil
}

// State returns a deep copy of the score table. Readers either see the state
// before a concurrent mutation or after it, never in between.
func (e *Engine) State() *table.Match {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.match.Clone()
}

// Start moves the match from waiting to playing and announces the initial
// table.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.match.Status != table.StatusWaiting {
		return fmt.Errorf("%w: cannot start from %s", table.ErrMatchNotPlaying, e.match.Status)
	}
	next := e.match.Clone()
	next.Status = table.StatusPlaying
	if err := e.commit(ctx, next); err != nil {
		return err
	}
	e.emit("match_started", map[string]any{"table": e.match.Clone()})
	return nil
}

// DeclareReach debits 1000 points into escrow and flags the seat. Both
// mutations apply together or not at all.
func (e *Engine) DeclareReach(ctx context.Context, ref table.SeatRef) (*table.Match, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.match.Status != table.StatusPlaying {
		return nil, table.ErrMatchNotPlaying
	}
	seat, err := e.match.Resolve(ref)
	if err != nil {
		return nil, err
	}
	if e.match.Seats[seat].IsReach {
		return nil, table.ErrAlreadyReach
	}
	if e.match.Seats[seat].Points < score.RiichiStickValue {
		return nil, table.ErrInsufficientPoints
	}

	next := e.match.Clone()
	next.Seats[seat].Points -= score.RiichiStickValue
	next.Seats[seat].IsReach = true
	next.RiichiSticks++

	if err := e.commit(ctx, next); err != nil {
		return nil, err
	}
	e.emit("reach", map[string]any{
		"type":  "reach",
		"seat":  seat,
		"table": e.match.Clone(),
	})
	return e.match.Clone(), nil
}

// WinOutcome reports a settled win.
type WinOutcome struct {
	Table        *table.Match           `json:"table"`
	WinnerSeat   int                    `json:"winnerSeat"`
	Breakdown    score.PaymentBreakdown `json:"paymentBreakdown"`
	DealerRepeat bool                   `json:"dealerRepeat"`
	GameEnded    bool                   `json:"gameEnded"`
	Reason       string                 `json:"reason,omitempty"`
}

// DistributeWinPoints settles a tsumo or ron: invokes the calculator, moves
// the payments and the whole riichi escrow to the winner, then advances
// round/dealer/honba. Atomic as one unit.
func (e *Engine) DistributeWinPoints(ctx context.Context, winner table.SeatRef, han, fu int, isTsumo bool, loser *table.SeatRef) (*WinOutcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.match.Status != table.StatusPlaying {
		return nil, table.ErrMatchNotPlaying
	}
	winnerSeat, err := e.match.Resolve(winner)
	if err != nil {
		return nil, err
	}

	loserSeat := -1
	if isTsumo {
		if loser != nil {
			return nil, fmt.Errorf("%w: tsumo takes no loser seat", table.ErrInvalidInput)
		}
	} else {
		if loser == nil {
			return nil, fmt.Errorf("%w: ron requires a loser seat", table.ErrInvalidInput)
		}
		if loserSeat, err = e.match.Resolve(*loser); err != nil {
			return nil, err
		}
		if loserSeat == winnerSeat {
			return nil, fmt.Errorf("%w: winner cannot ron off themselves", table.ErrInvalidInput)
		}
	}

	isDealer := winnerSeat == e.match.DealerSeat
	breakdown, err := score.Calculate(han, fu, isDealer, isTsumo, e.match.Honba, e.match.RiichiSticks)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", table.ErrInvalidInput, err)
	}

	next := e.match.Clone()
	if isTsumo {
		for i := range next.Seats {
			if i == winnerSeat {
				continue
			}
			if !isDealer && i == next.DealerSeat {
				next.Seats[i].Points -= breakdown.TsumoDealerPayment
			} else {
				next.Seats[i].Points -= breakdown.TsumoNonDealerPayment
			}
		}
	} else {
		next.Seats[loserSeat].Points -= breakdown.RonPayment
	}
	next.Seats[winnerSeat].Points += breakdown.Total

	// Escrow transfer is the engine's job, not the calculator's.
	next.Seats[winnerSeat].Points += next.RiichiSticks * score.RiichiStickValue
	next.RiichiSticks = 0

	gameEnded, reason, err := e.advance(next, isDealer)
	if err != nil {
		return nil, err
	}
	if err := e.commit(ctx, next); err != nil {
		return nil, err
	}

	out := &WinOutcome{
		Table:        e.match.Clone(),
		WinnerSeat:   winnerSeat,
		Breakdown:    breakdown,
		DealerRepeat: isDealer,
		GameEnded:    gameEnded,
		Reason:       reason,
	}
	e.emit("win", map[string]any{
		"type":             "win",
		"winnerSeat":       winnerSeat,
		"isTsumo":          isTsumo,
		"paymentBreakdown": breakdown,
		"gameEnded":        gameEnded,
		"table":            e.match.Clone(),
	})
	e.emitEndIfNeeded()
	return out, nil
}

// DrawOutcome reports a settled drawn hand.
type DrawOutcome struct {
	Table        *table.Match `json:"table"`
	ReasonLabel  string       `json:"reasonLabel"`
	TenpaiSeats  []int        `json:"tenpaiSeats"`
	DealerRepeat bool         `json:"dealerRepeat"`
	GameEnded    bool         `json:"gameEnded"`
	Reason       string       `json:"reason,omitempty"`
}

// HandleRyukyoku settles a drawn hand. Exhaustive draws exchange the noten
// payments and rotate the dealer unless the dealer is tenpai; abortive draws
// (four-riichi and friends) move no points and always repeat the dealer.
// Riichi sticks stay in escrow either way.
func (e *Engine) HandleRyukyoku(ctx context.Context, reasonLabel string, tenpaiSeats []int) (*DrawOutcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.match.Status != table.StatusPlaying {
		return nil, table.ErrMatchNotPlaying
	}
	if reasonLabel == "" {
		reasonLabel = DrawExhaustive
	}
	abortive := abortiveReasons[reasonLabel]

	var tenpai [4]bool
	for _, s := range tenpaiSeats {
		if s < 0 || s > 3 {
			return nil, fmt.Errorf("%w: tenpai seat %d out of range", table.ErrInvalidInput, s)
		}
		if tenpai[s] {
			return nil, fmt.Errorf("%w: duplicate tenpai seat %d", table.ErrInvalidInput, s)
		}
		tenpai[s] = true
	}

	next := e.match.Clone()
	dealerRepeat := true
	if !abortive {
		// Reach implies tenpai; a reach seat missing from the list is a
		// reporting error, not something to correct silently.
		for i, s := range e.match.Seats {
			if s.IsReach && !tenpai[i] {
				return nil, fmt.Errorf("%w: seat %d", table.ErrReachPlayerNotTenpai, i)
			}
		}
		for i, d := range score.NotenPayments(tenpai) {
			next.Seats[i].Points += d
		}
		dealerRepeat = tenpai[e.match.DealerSeat]
	}

	gameEnded, reason, err := e.advance(next, dealerRepeat)
	if err != nil {
		return nil, err
	}
	if err := e.commit(ctx, next); err != nil {
		return nil, err
	}

	out := &DrawOutcome{
		Table:        e.match.Clone(),
		ReasonLabel:  reasonLabel,
		TenpaiSeats:  append([]int(nil), tenpaiSeats...),
		DealerRepeat: dealerRepeat,
		GameEnded:    gameEnded,
		Reason:       reason,
	}
	e.emit("draw", map[string]any{
		"type":        "draw",
		"reason":      reasonLabel,
		"tenpaiSeats": out.TenpaiSeats,
		"gameEnded":   gameEnded,
		"table":       e.match.Clone(),
	})
	e.emitEndIfNeeded()
	return out, nil
}

// ForceEndGame terminates from any non-finished state, freezing the current
// points as final. Calling it twice is a conflict, not a no-op.
func (e *Engine) ForceEndGame(ctx context.Context, reason string) (*table.Match, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.match.Status == table.StatusFinished {
		return nil, table.ErrMatchAlreadyFinished
	}

	next := e.match.Clone()
	if err := e.finish(next, reason); err != nil {
		return nil, err
	}
	if err := e.commit(ctx, next); err != nil {
		return nil, err
	}
	e.emitEndIfNeeded()
	return e.match.Clone(), nil
}

// advance applies the round progression rule to next and finishes the match
// when all-last has been passed without a dealer repeat.
func (e *Engine) advance(next *table.Match, dealerRepeat bool) (bool, string, error) {
	for i := range next.Seats {
		next.Seats[i].IsReach = false
	}
	if dealerRepeat {
		next.Honba++
		return false, "", nil
	}
	next.Honba = 0
	next.Round++
	next.DealerSeat = (next.DealerSeat + 1) % 4
	if next.Round > next.Length.Hands() {
		if err := e.finish(next, "all_hands_completed"); err != nil {
			return false, "", err
		}
		return true, next.EndReason, nil
	}
	return false, "", nil
}

// finish freezes the table and computes the final settlement. Leftover
// escrow goes to the top-ranked seat (tie to the lower index) first, so the
// point-conservation invariant holds through the end of the match.
func (e *Engine) finish(next *table.Match, reason string) error {
	if next.RiichiSticks > 0 {
		top := 0
		for i := 1; i < 4; i++ {
			if next.Seats[i].Points > next.Seats[top].Points {
				top = i
			}
		}
		next.Seats[top].Points += next.RiichiSticks * score.RiichiStickValue
		next.RiichiSticks = 0
	}
	result, err := score.FinalSettlement(next.Points(), next.BasePoints, e.uma)
	if err != nil {
		return err
	}
	next.Status = table.StatusFinished
	next.EndReason = reason
	next.Result = &result
	return nil
}

// commit persists next and swaps it in. On a store failure the visible state
// is untouched, which gives the caller commit-or-rollback semantics.
func (e *Engine) commit(ctx context.Context, next *table.Match) error {
	if e.store != nil {
		if err := e.store.SaveMatch(ctx, next); err != nil {
			return err
		}
	}
	e.match = next
	return nil
}

// emit pushes an event to every seat's player (or the solo owner).
// Best-effort: a nil hub never fails the operation. The hub serializes
// payloads asynchronously, so every table put into a payload must be a
// detached clone, never the live e.match.
func (e *Engine) emit(event string, data map[string]any) {
	if e.hub == nil {
		return
	}
	targets := e.match.Occupants()
	if e.match.SoloOwner != "" {
		targets = []string{e.match.SoloOwner}
	}
	e.hub.BroadcastToPlayers(targets, websocket.OutgoingMessage{Event: event, Data: data})
}

// SetConnected flips the presentation-only presence flag for whichever seat
// the player occupies. Not a scoring mutation: nothing is persisted or
// broadcast from here.
func (e *Engine) SetConnected(playerID string, connected bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.match.Seats {
		if e.match.Seats[i].Occupant == playerID {
			e.match.Seats[i].IsConnected = connected
		}
	}
}

func (e *Engine) emitEndIfNeeded() {
	if e.match.Status != table.StatusFinished {
		return
	}
	snap := e.match.Clone()
	e.emit("match_ended", map[string]any{
		"type":       "matchEnded",
		"reason":     snap.EndReason,
		"settlement": snap.Result,
		"table":      snap,
	})
}
