package types

import "github.com/DoyleJ11/duel-arena-backend/internal/engine"

// Client -> Server
//
//	SelectSide: { "type": "SelectSide", "side": "red" | "blue" }
//	StartDuel:  { "type": "StartDuel", "token": "<session token from POST /sessions>" }
type ClientMessage struct {
	Type  string `json:"type"`
	Side  string `json:"side,omitempty"`
	Token string `json:"token,omitempty"`
}

// Server -> Client
//
//	StateSnapshot: { "type": "StateSnapshot", "version": n, "state": View }
//	Error:         { "type": "Error", "error": "..." }
type ServerMessage struct {
	Type    string       `json:"type"` // "StateSnapshot" | "Error"
	Version int          `json:"version,omitempty"`
	State   *engine.View `json:"state,omitempty"`
	Error   string       `json:"error,omitempty"`
}

func ErrorMessage(msg string) ServerMessage {
	return ServerMessage{Type: "Error", Error: msg}
}
