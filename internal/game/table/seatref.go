package table

import "fmt"

// SeatRef addresses a seat either by player identity (multiplayer) or by
// numeric position (solo). It is resolved to a seat index exactly once at the
// engine boundary so the engine logic stays mode-agnostic.
type SeatRef struct {
	byIdentity bool
	identity   string
	position   int
}

// ByIdentity addresses the seat occupied by the given player id.
func ByIdentity(id string) SeatRef {
	return SeatRef{byIdentity: true, identity: id}
}

// ByPosition addresses a seat by its 0-3 index.
func ByPosition(pos int) SeatRef {
	return SeatRef{position: pos}
}

func (r SeatRef) String() string {
	if r.byIdentity {
		return "player:" + r.identity
	}
	return fmt.Sprintf("seat:%d", r.position)
}

// Resolve maps the reference to a seat index on this match.
func (m *Match) Resolve(ref SeatRef) (int, error) {
	if ref.byIdentity {
		for i, s := range m.Seats {
			if s.Occupant == ref.identity {
				return i, nil
			}
		}
		return 0, fmt.Errorf("%w: no seat occupied by %s", ErrSeatNotFound, ref.identity)
	}
	if ref.position < 0 || ref.position > 3 {
		return 0, fmt.Errorf("%w: position %d", ErrSeatNotFound, ref.position)
	}
	return ref.position, nil
}
