package websocket

// OutgoingMessage is pushed to clients after every successful mutation.
type OutgoingMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// IncomingMessage is a client request routed to the game layer.
type IncomingMessage struct {
	From  string      `json:"from"`
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}
