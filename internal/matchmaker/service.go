package matchmaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kokutaro/mahjong-point-manager-sub001/internal/utils"
	"github.com/kokutaro/mahjong-point-manager-sub001/internal/websocket"
)

type HubBroadcaster interface {
	BroadcastToPlayers(playerIDs []string, msg websocket.OutgoingMessage)
}

type Service struct {
	repo        Repo
	playerTTL   int // seconds, drains abandoned queues
	hub         HubBroadcaster
	OnRoomReady func(*Room) // fires when four players formed a table
}

func NewService(repo Repo, playerTTL int, hub HubBroadcaster) *Service {
	return &Service{repo: repo, playerTTL: playerTTL, hub: hub}
}

// Join enqueues the player and tries to form a table immediately. Returns
// the room when one formed, or queued=true otherwise.
func (s *Service) Join(ctx context.Context, req JoinRequest) (*Room, bool, error) {
	if req.Rule == "" {
		return nil, false, errors.New("missing rule")
	}

	// Double-join guard: a player already seated at a live table stays out
	// of the pools.
	roomID, err := s.repo.GetPlayerRoom(ctx, req.PlayerID)
	if err != nil {
		return nil, false, err
	}
	if roomID != "" {
		return nil, false, fmt.Errorf("player %s already in room %s", req.PlayerID, roomID)
	}

	if err := s.repo.Enqueue(ctx, req.Rule, req.PlayerID, s.playerTTL); err != nil {
		return nil, false, err
	}
	cnt, err := s.repo.Count(ctx, req.Rule)
	if err != nil {
		return nil, false, err
	}
	if int(cnt) < SeatsPerTable {
		return nil, true, nil
	}
	players, err := s.repo.PopNRandom(ctx, req.Rule, SeatsPerTable)
	if err != nil {
		return nil, false, err
	}
	if len(players) < SeatsPerTable {
		// Lost the race against a concurrent join; back to queued.
		return nil, true, nil
	}

	room := &Room{
		ID:        uuid.NewString(),
		Rule:      req.Rule,
		Players:   players,
		CreatedAt: time.Now(),
	}

	if err := s.repo.SaveRoom(ctx, room, s.playerTTL); err != nil {
		utils.Error.Printf("SaveRoom: %v", err)
	}

	if s.hub != nil {
		s.hub.BroadcastToPlayers(players, websocket.OutgoingMessage{
			Event: "matched",
			Data: map[string]any{
				"roomId":  room.ID,
				"rule":    room.Rule,
				"players": room.Players,
			},
		})
	}

	if s.OnRoomReady != nil {
		go s.OnRoomReady(room)
	}
	return room, false, nil
}

func (s *Service) Cancel(ctx context.Context, playerID string) error {
	return s.repo.Remove(ctx, playerID)
}
