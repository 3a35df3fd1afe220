package websocket

import (
	"sync"

	"github.com/kokutaro/mahjong-point-manager-sub001/internal/utils"
)

// HubInterface is what the game layer sees. A nil hub is legal everywhere:
// event emission is best-effort and never fails an operation.
type HubInterface interface {
	BroadcastToPlayers(playerIDs []string, msg OutgoingMessage)
	SendToPlayer(playerID string, msg OutgoingMessage)
	ClientByID(playerID string) (*Client, bool)
	Close()
}

type Hub struct {
	clients    map[string]*Client // playerID -> client
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastReq
	sendOne    chan sendReq
	incoming   chan IncomingMessage
	quit       chan struct{}
	mu         sync.RWMutex

	// OnIncoming routes client requests to the game manager.
	OnIncoming func(IncomingMessage)
	// OnPresence reports connects/disconnects so seats can show their
	// connection state. Presentation only.
	OnPresence func(playerID string, connected bool)
}

type broadcastReq struct {
	PlayerIDs []string
	Message   OutgoingMessage
}

type sendReq struct {
	PlayerID string
	Message  OutgoingMessage
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastReq),
		sendOne:    make(chan sendReq),
		incoming:   make(chan IncomingMessage),
		quit:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	utils.Info.Println("Hub started")

	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.PlayerID] = c
			n := len(h.clients)
			h.mu.Unlock()
			utils.Info.Printf("Hub.register -> %s (connections: %d)", c.PlayerID, n)
			if h.OnPresence != nil {
				h.OnPresence(c.PlayerID, true)
			}

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.PlayerID]; ok {
				delete(h.clients, c.PlayerID)
				close(c.Send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			utils.Info.Printf("Hub.unregister -> %s (connections: %d)", c.PlayerID, n)
			if h.OnPresence != nil {
				h.OnPresence(c.PlayerID, false)
			}

		case req := <-h.broadcast:
			h.mu.RLock()
			for _, id := range req.PlayerIDs {
				if client, ok := h.clients[id]; ok {
					select {
					case client.Send <- req.Message:
					default:
						// slow consumer, drop rather than stall the hub
					}
				}
			}
			h.mu.RUnlock()

		case req := <-h.sendOne:
			h.mu.RLock()
			if client, ok := h.clients[req.PlayerID]; ok {
				select {
				case client.Send <- req.Message:
				default:
				}
			}
			h.mu.RUnlock()

		case req := <-h.incoming:
			if h.OnIncoming != nil {
				h.OnIncoming(req)
			}

		case <-h.quit:
			h.mu.Lock()
			for _, c := range h.clients {
				close(c.Send)
			}
			h.clients = make(map[string]*Client)
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) BroadcastToPlayers(playerIDs []string, msg OutgoingMessage) {
	h.broadcast <- broadcastReq{PlayerIDs: playerIDs, Message: msg}
}

func (h *Hub) SendToPlayer(playerID string, msg OutgoingMessage) {
	h.sendOne <- sendReq{PlayerID: playerID, Message: msg}
}

func (h *Hub) ClientByID(playerID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[playerID]
	return c, ok
}

func (h *Hub) Close() {
	close(h.quit)
}
