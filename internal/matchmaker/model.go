package matchmaker

import "time"

// SeatsPerTable is fixed: four-player riichi only.
const SeatsPerTable = 4

// JoinRequest queues a player into a rule pool ("east" or "east_south").
type JoinRequest struct {
	PlayerID string `json:"-"`
	Rule     string `json:"rule" binding:"required"`
}

// JoinResponse reports queue state; when a table formed it carries the room.
type JoinResponse struct {
	Queued  bool     `json:"queued"`
	RoomID  string   `json:"roomId,omitempty"`
	Players []string `json:"players,omitempty"`
	Rule    string   `json:"rule"`
}

// Room is a formed table handed to the game manager.
type Room struct {
	ID        string
	Rule      string
	Players   []string
	CreatedAt time.Time
}
