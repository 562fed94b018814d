package game

import (
	"github.com/cardroom/cardroom/internal/deck"
	"github.com/cardroom/cardroom/internal/evaluator"
)

// Identity is the externally supplied id + display name a client presents.
// The server trusts it as-is.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Player is the mutable per-seat state owned by a session.
type Player struct {
	ID       string
	Name     string
	Position int

	Chips     int
	Bet       int
	HasBet    bool
	HasFolded bool
	Cards     []deck.Card
	LastHand  *evaluator.Summary

	Connected      bool
	DisconnectTime int64 // unix millis, 0 while connected
}
