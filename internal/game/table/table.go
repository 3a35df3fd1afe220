package table

import (
	"time"

	"github.com/kokutaro/mahjong-point-manager-sub001/internal/score"
)

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// GameLength selects how many hands a match runs.
type GameLength string

const (
	EastOnly  GameLength = "east"       // tonpuusen, 4 hands
	EastSouth GameLength = "east_south" // hanchan, 8 hands
)

// Hands is the number of hands before all-last is passed.
func (g GameLength) Hands() int {
	if g == EastSouth {
		return 8
	}
	return 4
}

func (g GameLength) Valid() bool {
	return g == EastOnly || g == EastSouth
}

// Seat is one compass position at the table.
type Seat struct {
	Index    int    `json:"index"`
	Occupant string `json:"occupant"` // player id, or "0".."3" in solo mode
	Points   int    `json:"points"`   // signed; negative = bust (tobi)
	IsReach  bool   `json:"isReach"`  // riichi declared this hand
	// Presentation only, maintained by the hub presence callbacks. The engine
	// never reads it.
	IsConnected bool `json:"isConnected"`
}

// Match is the authoritative score table for one game.
type Match struct {
	ID         string     `json:"id"`
	Status     Status     `json:"status"`
	Length     GameLength `json:"gameLength"`
	Round      int        `json:"round"` // 1-based hand counter
	DealerSeat int        `json:"dealerSeat"`
	Honba      int        `json:"honba"`
	// RiichiSticks is the escrow count. Invariant across every operation:
	// sum(points) + RiichiSticks*1000 == 4*BasePoints.
	RiichiSticks int       `json:"riichiSticks"`
	BasePoints   int       `json:"basePoints"`
	Seats        [4]Seat   `json:"seats"`
	CreatedAt    time.Time `json:"createdAt"`

	// Solo matches are driven by a single owner addressing seats by position.
	SoloOwner string `json:"soloOwner,omitempty"`

	EndReason string               `json:"endReason,omitempty"`
	Result    *[4]score.SeatResult `json:"result,omitempty"`
}

// NewMatch builds a match in the waiting state with every seat at basePoints
// and the dealer at seat 0.
func NewMatch(id string, occupants [4]string, length GameLength, basePoints int) *Match {
	m := &Match{
		ID:         id,
		Status:     StatusWaiting,
		Length:     length,
		Round:      1,
		DealerSeat: 0,
		BasePoints: basePoints,
		CreatedAt:  time.Now(),
	}
	for i := range m.Seats {
		m.Seats[i] = Seat{Index: i, Occupant: occupants[i], Points: basePoints}
	}
	return m
}

// Clone deep-copies the match so a mutation can be prepared off to the side
// and swapped in whole.
func (m *Match) Clone() *Match {
	c := *m
	if m.Result != nil {
		r := *m.Result
		c.Result = &r
	}
	return &c
}

// Points returns the current per-seat totals.
func (m *Match) Points() [4]int {
	var p [4]int
	for i, s := range m.Seats {
		p[i] = s.Points
	}
	return p
}

// IsLastHand reports whether the current hand is the final one ("all-last"):
// a non-repeat outcome now ends the match.
func (m *Match) IsLastHand() bool {
	return m.Round >= m.Length.Hands()
}

// Occupants lists the seat occupants in seat order.
func (m *Match) Occupants() []string {
	out := make([]string, 0, len(m.Seats))
	for _, s := range m.Seats {
		out = append(out, s.Occupant)
	}
	return out
}
