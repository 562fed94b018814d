// Package deck provides the shuffled card sequence a session deals from.
//
// A deck is built once per hand from the full 52-card set, consumed from
// the front, and never refilled; an 8-seat community-card game cannot
// exhaust it (5 community + 16 hole cards).
package deck

import (
	rand "math/rand/v2"
)

// Deck is an ordered, finite sequence of cards drawn from the front.
type Deck struct {
	cards []Card
}

// New creates a freshly shuffled 52-card deck using the provided RNG.
func New(rng *rand.Rand) *Deck {
	codes := Codes()
	cards := make([]Card, len(codes))
	for i, code := range codes {
		cards[i] = Card{Code: code, Image: imageFor(code)}
	}
	rng.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
	return &Deck{cards: cards}
}

// Draw removes and returns the top card. ok is false once the deck is
// exhausted.
func (d *Deck) Draw() (Card, bool) {
	if len(d.cards) == 0 {
		return Card{}, false
	}
	card := d.cards[0]
	d.cards = d.cards[1:]
	return card, true
}

// Remaining returns the number of undrawn cards.
func (d *Deck) Remaining() int {
	return len(d.cards)
}

// imageFor maps a card code to the asset path clients load. The server
// treats the value as opaque display metadata.
func imageFor(code string) string {
	return "cards/" + code + ".png"
}
