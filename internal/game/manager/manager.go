package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/kokutaro/mahjong-point-manager-sub001/internal/game/engine"
	"github.com/kokutaro/mahjong-point-manager-sub001/internal/game/table"
	"github.com/kokutaro/mahjong-point-manager-sub001/internal/score"
	"github.com/kokutaro/mahjong-point-manager-sub001/internal/matchmaker"
	"github.com/kokutaro/mahjong-point-manager-sub001/internal/storage"
	"github.com/kokutaro/mahjong-point-manager-sub001/internal/utils"
	"github.com/kokutaro/mahjong-point-manager-sub001/internal/websocket"
)

const DefaultBasePoints = 25000

// GameManager holds one engine per live match and routes player traffic to
// it. Engines on different matches run fully in parallel; all serialization
// happens inside each engine.
type GameManager struct {
	mu            sync.RWMutex
	engines       map[string]*engine.Engine // matchID -> engine
	playerToMatch map[string]string         // player id -> matchID
	hub           websocket.HubInterface
	store         storage.MatchStore
	basePoints    int
	uma           [4]int
}

func NewGameManager(hub websocket.HubInterface, store storage.MatchStore) *GameManager {
	return &GameManager{
		engines:       make(map[string]*engine.Engine),
		playerToMatch: make(map[string]string),
		hub:           hub,
		store:         store,
		basePoints:    DefaultBasePoints,
		uma:           score.DefaultUma,
	}
}

func (m *GameManager) SetBasePoints(p int) {
	if p > 0 {
		m.basePoints = p
	}
}

// SetUma installs the rank bonus table applied at final settlement. An
// empty slice keeps the default.
func (m *GameManager) SetUma(uma []int) error {
	if len(uma) == 0 {
		return nil
	}
	if len(uma) != 4 {
		return fmt.Errorf("%w: uma needs 4 entries, got %d", table.ErrInvalidInput, len(uma))
	}
	sum := 0
	for _, v := range uma {
		sum += v
	}
	if sum != 0 {
		return fmt.Errorf("%w: uma must sum to zero", table.ErrInvalidInput)
	}
	copy(m.uma[:], uma)
	return nil
}

// StartRoom turns a matched room into a playing match. Called from the
// matchmaker's OnRoomReady callback.
func (m *GameManager) StartRoom(ctx context.Context, r *matchmaker.Room) error {
	if len(r.Players) != 4 {
		return fmt.Errorf("%w: room %s has %d players, need 4", table.ErrInvalidInput, r.ID, len(r.Players))
	}
	length := table.GameLength(r.Rule)
	if !length.Valid() {
		return fmt.Errorf("%w: unknown rule %q", table.ErrInvalidInput, r.Rule)
	}

	var occupants [4]string
	copy(occupants[:], r.Players)
	match := table.NewMatch(r.ID, occupants, length, m.basePoints)
	eng := engine.NewEngine(match, m.hub, m.store)
	if err := eng.SetUma(m.uma); err != nil {
		return err
	}

	m.mu.Lock()
	if _, ok := m.engines[r.ID]; ok {
		m.mu.Unlock()
		return fmt.Errorf("engine for match %s exists", r.ID)
	}
	m.engines[r.ID] = eng
	for _, p := range r.Players {
		m.playerToMatch[p] = r.ID
	}
	m.mu.Unlock()

	return eng.Start(ctx)
}

// CreateSoloMatch builds a single-owner match whose seats are addressed by
// position. Same engine, same rules; only the actor addressing differs.
func (m *GameManager) CreateSoloMatch(ctx context.Context, owner string, length table.GameLength, basePoints int) (*table.Match, error) {
	if !length.Valid() {
		return nil, fmt.Errorf("%w: unknown game length %q", table.ErrInvalidInput, length)
	}
	if basePoints <= 0 {
		basePoints = m.basePoints
	}

	id := uuid.NewString()
	var occupants [4]string
	for i := range occupants {
		occupants[i] = strconv.Itoa(i)
	}
	match := table.NewMatch(id, occupants, length, basePoints)
	match.SoloOwner = owner
	eng := engine.NewEngine(match, m.hub, m.store)
	if err := eng.SetUma(m.uma); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.engines[id] = eng
	m.mu.Unlock()

	if err := eng.Start(ctx); err != nil {
		return nil, err
	}
	return eng.State(), nil
}

// Engine looks up the engine for a match.
func (m *GameManager) Engine(matchID string) (*engine.Engine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	eng, ok := m.engines[matchID]
	if !ok {
		return nil, table.ErrMatchNotFound
	}
	return eng, nil
}

// EngineForPlayer finds the match a multiplayer player is seated at.
func (m *GameManager) EngineForPlayer(playerID string) (*engine.Engine, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.playerToMatch[playerID]
	if !ok {
		return nil, false
	}
	eng, ok := m.engines[id]
	return eng, ok
}

// HandlePresence mirrors hub connect/disconnect onto the player's seat.
func (m *GameManager) HandlePresence(playerID string, connected bool) {
	if eng, ok := m.EngineForPlayer(playerID); ok {
		eng.SetConnected(playerID, connected)
	}
}

// ---------------------------------------------------------------
// WebSocket entry point (from Hub.OnIncoming)
// ---------------------------------------------------------------

type winPayload struct {
	Han       int  `json:"han"`
	Fu        int  `json:"fu"`
	IsTsumo   bool `json:"isTsumo"`
	LoserSeat *int `json:"loserSeat,omitempty"`
}

type drawPayload struct {
	Reason      string `json:"reason"`
	TenpaiSeats []int  `json:"tenpaiSeats"`
}

type endPayload struct {
	Reason string `json:"reason"`
}

// HandlePlayerMessage routes a client request to its match engine. The actor
// is always the authenticated sender; in multiplayer mode seats are resolved
// from that identity.
func (m *GameManager) HandlePlayerMessage(msg websocket.IncomingMessage) {
	eng, ok := m.EngineForPlayer(msg.From)
	if !ok {
		m.sendError(msg.From, "not seated at any match")
		return
	}
	ctx := context.Background()

	switch msg.Event {
	case "declare_reach":
		_, err := eng.DeclareReach(ctx, table.ByIdentity(msg.From))
		m.replyErr(msg.From, err)

	case "win":
		var p winPayload
		if !m.decode(msg.From, msg.Data, &p) {
			return
		}
		var loser *table.SeatRef
		if p.LoserSeat != nil {
			ref := table.ByPosition(*p.LoserSeat)
			loser = &ref
		}
		_, err := eng.DistributeWinPoints(ctx, table.ByIdentity(msg.From), p.Han, p.Fu, p.IsTsumo, loser)
		m.replyErr(msg.From, err)

	case "ryukyoku":
		var p drawPayload
		if !m.decode(msg.From, msg.Data, &p) {
			return
		}
		_, err := eng.HandleRyukyoku(ctx, p.Reason, p.TenpaiSeats)
		m.replyErr(msg.From, err)

	case "force_end":
		var p endPayload
		if !m.decode(msg.From, msg.Data, &p) {
			return
		}
		_, err := eng.ForceEndGame(ctx, p.Reason)
		m.replyErr(msg.From, err)

	case "get_state":
		m.send(msg.From, websocket.OutgoingMessage{
			Event: "state",
			Data:  eng.State(),
		})

	default:
		m.sendError(msg.From, "unknown event "+msg.Event)
	}
}

// decode round-trips the loosely typed hub payload into a typed struct.
func (m *GameManager) decode(playerID string, data interface{}, dst interface{}) bool {
	raw, err := json.Marshal(data)
	if err == nil {
		err = json.Unmarshal(raw, dst)
	}
	if err != nil {
		m.sendError(playerID, "malformed payload: "+err.Error())
		return false
	}
	return true
}

func (m *GameManager) replyErr(playerID string, err error) {
	if err != nil {
		utils.Error.Printf("player %s: %v", playerID, err)
		m.sendError(playerID, err.Error())
	}
}

func (m *GameManager) sendError(playerID, detail string) {
	m.send(playerID, websocket.OutgoingMessage{
		Event: "error",
		Data:  map[string]any{"error": detail},
	})
}

func (m *GameManager) send(playerID string, msg websocket.OutgoingMessage) {
	if m.hub != nil {
		m.hub.SendToPlayer(playerID, msg)
	}
}
