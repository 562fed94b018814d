package game

import (
	"github.com/cardroom/cardroom/internal/deck"
	"github.com/cardroom/cardroom/internal/evaluator"
)

// PlayerView is one player's entry in the sync-game payload. Hole cards are
// carried for every player; hiding opponents' cards is a client concern.
type PlayerView struct {
	ID             string             `json:"_id"`
	Name           string             `json:"name"`
	Position       int                `json:"position"`
	Connected      bool               `json:"connected"`
	DisconnectTime int64              `json:"disconnectTime"`
	Chips          int                `json:"chips"`
	Bet            int                `json:"bet"`
	HasBet         bool               `json:"hasBet"`
	HasFolded      bool               `json:"hasFolded"`
	Cards          []deck.Card        `json:"cards"`
	LastHand       *evaluator.Summary `json:"lastHand"`
	CanCheck       bool               `json:"canCheck"`
}

// View is the authoritative state snapshot broadcast on sync-game.
type View struct {
	Players     map[string]PlayerView `json:"players"`
	PlayerCount int                   `json:"playerCount"`
	WaitingRoom []Identity            `json:"waitingRoom"`
	Czar        string                `json:"czar"`
	IsStarted   bool                  `json:"isStarted"`
	Winner      *PlayerView           `json:"winner"`
	Pots        []int                 `json:"pots"`
	Blinds      int                   `json:"blinds"`
	TableCards  []deck.Card           `json:"tableCards"`
	IsReset     bool                  `json:"isReset"`
}

func (s *Session) snapshotLocked(isReset bool) *View {
	players := make(map[string]PlayerView, len(s.players))
	for id, p := range s.players {
		players[id] = s.playerViewLocked(p)
	}

	v := &View{
		Players:     players,
		PlayerCount: len(s.players),
		WaitingRoom: append([]Identity{}, s.waiting...),
		Czar:        s.czar,
		IsStarted:   s.isStarted,
		Pots:        []int{},
		Blinds:      s.rules.Blinds,
		TableCards:  append([]deck.Card{}, s.tableCards...),
		IsReset:     isReset,
	}
	if s.winner != nil {
		w := s.playerViewLocked(s.winner)
		v.Winner = &w
	}
	return v
}

func (s *Session) playerViewLocked(p *Player) PlayerView {
	return PlayerView{
		ID:             p.ID,
		Name:           p.Name,
		Position:       p.Position,
		Connected:      p.Connected,
		DisconnectTime: p.DisconnectTime,
		Chips:          p.Chips,
		Bet:            p.Bet,
		HasBet:         p.HasBet,
		HasFolded:      p.HasFolded,
		Cards:          append([]deck.Card{}, p.Cards...),
		LastHand:       p.LastHand,
		CanCheck:       s.canCheckLocked(p),
	}
}
