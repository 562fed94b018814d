// Package game implements the per-table session state machine: seating and
// the waiting room, blind posting, turn rotation, betting legality, fold and
// showdown resolution, and pot distribution. A session never touches the
// transport; it reports state changes through a Sink.
package game

import (
	"errors"
	rand "math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/cardroom/cardroom/internal/deck"
	"github.com/cardroom/cardroom/internal/evaluator"
)

// Sound cue names pushed to clients via play-sound.
const (
	SoundJoin    = "playerJoin.ogg"
	SoundStart   = "gameStart.ogg"
	SoundFlick   = "card_flick.ogg"
	SoundFanfare = "fanfare%20with%20pop.ogg"
)

const (
	maxSeats = 8
	// Seated plus waiting players may not exceed this.
	capacity = 9

	holeCards = 2
	boardSize = 5
)

// ErrGameFull is returned by Join when seated + waiting players exceed the
// table capacity. It is the only action error surfaced to clients.
var ErrGameFull = errors.New("this game is full, please try again later")

// Sink receives the session's outbound effects. Implementations must not
// call back into the session; they are invoked with the session lock held.
type Sink interface {
	// Broadcast pushes an authoritative state snapshot to every socket of
	// the instance.
	Broadcast(v *View)
	// PlaySound fans out a fire-and-forget audio cue.
	PlaySound(cue string)
}

// Rules holds the per-table configuration a session is created with.
type Rules struct {
	Blinds      int
	StartChips  int
	WinnerDelay time.Duration
}

// DefaultRules match the classic table: blind 1, 100 starting chips,
// winner shown for 5 seconds before the next broadcast.
func DefaultRules() Rules {
	return Rules{Blinds: 1, StartChips: 100, WinnerDelay: 5 * time.Second}
}

// Session is the state machine for one table instance. All exported methods
// serialize through one mutex, so no two mutations interleave regardless of
// how many sockets feed it.
type Session struct {
	mu     sync.Mutex
	logger *log.Logger
	clock  quartz.Clock
	sink   Sink
	rng    *rand.Rand
	rules  Rules

	players    map[string]*Player
	waiting    []Identity
	czar       string
	tableCards []deck.Card
	deck       *deck.Deck
	isStarted  bool
	winner     *Player
}

// NewSession creates an empty session with a freshly shuffled deck.
func NewSession(logger *log.Logger, clock quartz.Clock, sink Sink, rng *rand.Rand, rules Rules) *Session {
	return &Session{
		logger:  logger.WithPrefix("game"),
		clock:   clock,
		sink:    sink,
		rng:     rng,
		rules:   rules,
		players: make(map[string]*Player),
		deck:    deck.New(rng),
	}
}

// Join seats the player, or queues them into the waiting room while a hand
// is in progress. Joining while already seated between hands re-creates the
// player with a fresh stack.
func (s *Session) Join(u Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.players)+len(s.waiting) > capacity {
		return ErrGameFull
	}
	if s.isStarted {
		if !s.inWaitingLocked(u.ID) {
			s.waiting = append(s.waiting, u)
		}
	} else {
		if _, seated := s.players[u.ID]; !seated && len(s.players) >= maxSeats {
			return ErrGameFull
		}
		s.createPlayerLocked(u)
	}
	s.sink.PlaySound(SoundJoin)
	s.broadcastLocked(false)
	return nil
}

// Start deals a new hand: soft reset, admit the waiting room, drop busted
// players, then post blinds and deal hole cards plus the flop. With fewer
// than two players it only broadcasts the current state.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startLocked()
}

// ResetHard tears the table down completely: players, czar and waiting room
// are all cleared. The triggered broadcast carries the isReset marker.
func (s *Session) ResetHard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked(true)
	s.broadcastLocked(true)
}

// Check is legal only for the czar, and only when nothing is owed.
// Illegal checks are silently ignored.
func (s *Session) Check(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.players[playerID]
	if p == nil || s.czar != playerID || !s.canCheckLocked(p) {
		return
	}
	p.HasBet = true
	s.advanceLocked()
}

// Fold is legal only for the czar. If it leaves exactly one player
// standing, that player collects every outstanding bet and is declared the
// winner.
func (s *Session) Fold(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.players[playerID]
	if p == nil || s.czar != playerID {
		return
	}
	p.HasFolded = true
	p.LastHand = evaluator.Folded()

	standing := s.nonFoldedLocked()
	if len(standing) == 1 {
		winnings := s.collectBetsLocked()
		last := standing[0]
		last.Chips += winnings
		last.LastHand = &evaluator.Summary{Descr: "All others folded"}
		s.declareWinnerLocked(last)
	}
	s.advanceLocked()
}

// Bet adds amount to the czar's current bet. Bets that would land below the
// call amount are silently rejected; everything else deducts chips, and any
// player now below the new bet must act again.
func (s *Session) Bet(playerID string, amount int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.players[playerID]
	if p == nil || s.czar != playerID {
		return
	}
	if p.Bet+amount < s.maxBetLocked() {
		return
	}
	s.applyBetLocked(p, amount)
	s.advanceLocked()
}

// MarkConnected flags a seated player as connected again after an init,
// resetting the disconnect timestamp. Returns false if the identity holds
// no seat here.
func (s *Session) MarkConnected(u Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.players[u.ID]
	if p == nil {
		return false
	}
	p.Connected = true
	p.DisconnectTime = 0
	return true
}

// MarkDisconnected records the disconnect timestamp for a seated player.
// Returns false if the identity holds no seat here.
func (s *Session) MarkDisconnected(playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.players[playerID]
	if p == nil {
		return false
	}
	p.Connected = false
	p.DisconnectTime = s.clock.Now().UnixMilli()
	return true
}

// RemoveWaiting drops an identity from the waiting room. Returns true if it
// was queued.
func (s *Session) RemoveWaiting(playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.inWaitingLocked(playerID) {
		return false
	}
	kept := s.waiting[:0]
	for _, u := range s.waiting {
		if u.ID != playerID {
			kept = append(kept, u)
		}
	}
	s.waiting = kept
	return true
}

// KickIfDisconnected removes the player and re-deals with the remaining
// set, but only if they are still marked disconnected. The still-connected
// check and the removal are one critical section, so a reconnect that beat
// the kick always wins.
func (s *Session) KickIfDisconnected(playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.players[playerID]
	if p == nil || p.Connected {
		return false
	}
	delete(s.players, playerID)
	s.logger.Info("player kicked for inactivity", "player", p.Name)
	s.startLocked()
	return true
}

// Snapshot returns the current player-visible state.
func (s *Session) Snapshot() *View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(false)
}

// --- internals; callers hold s.mu ---

func (s *Session) startLocked() {
	s.resetLocked(false)

	// Admit the waiting room while seats are free; the overflow stays
	// queued for the next deal.
	var stillWaiting []Identity
	for _, u := range s.waiting {
		if len(s.players) >= maxSeats {
			stillWaiting = append(stillWaiting, u)
			continue
		}
		s.createPlayerLocked(u)
	}
	s.waiting = stillWaiting

	for id, p := range s.players {
		if p.Chips <= 0 {
			delete(s.players, id)
		}
	}

	if len(s.players) < 2 {
		s.broadcastLocked(false)
		s.sink.PlaySound(SoundJoin)
		return
	}

	ordered := s.orderedLocked()
	if _, ok := s.players[s.czar]; !ok {
		s.czar = ordered[0].ID
	}

	for _, p := range ordered {
		for len(p.Cards) < holeCards {
			card, ok := s.deck.Draw()
			if !ok {
				s.logger.Error("deck exhausted while dealing hole cards")
				return
			}
			p.Cards = append(p.Cards, card)
		}
		s.applyBetLocked(p, s.rules.Blinds)
		p.HasBet = false
	}

	s.isStarted = true
	s.tableCards = nil
	s.dealCommunityLocked(3)
	s.sink.PlaySound(SoundStart)
	s.broadcastLocked(false)
}

func (s *Session) resetLocked(hard bool) {
	for _, p := range s.players {
		p.Bet = 0
		p.Cards = nil
		p.HasBet = false
		p.HasFolded = false
		p.LastHand = nil
	}
	s.tableCards = nil
	s.winner = nil
	s.isStarted = false
	s.deck = deck.New(s.rng)
	if hard {
		s.czar = ""
		s.players = make(map[string]*Player)
		s.waiting = nil
	} else {
		s.nextCzarLocked()
	}
}

// applyBetLocked moves chips into the bet and forces anyone now below the
// new bet to act again.
func (s *Session) applyBetLocked(p *Player, amount int) {
	p.Bet += amount
	p.Chips -= amount
	p.HasBet = true
	for _, other := range s.players {
		if other.Bet < p.Bet {
			other.HasBet = false
		}
	}
}

// advanceLocked runs after every accepted check/fold/bet. Once every
// non-folded player has acted the next street is dealt, or the hand goes to
// showdown at five community cards. The czar always moves on and the new
// state is always broadcast.
func (s *Session) advanceLocked() {
	standing := s.nonFoldedLocked()
	if s.allHasBetLocked(standing) {
		for _, p := range s.players {
			p.HasBet = false
		}
		if len(s.tableCards) == boardSize {
			s.showdownLocked()
		} else {
			s.dealCommunityLocked(1)
			s.sink.PlaySound(SoundFlick)
		}
	}
	s.nextCzarLocked()
	s.broadcastLocked(false)
}

// showdownLocked resolves the hand: every player gets a summary (folded
// players the synthetic one), the tying-best subset splits the pot with the
// remainder going to the first winner in seat order.
func (s *Session) showdownLocked() {
	var active []*Player
	var hands []*evaluator.Summary
	for _, p := range s.orderedLocked() {
		if p.HasFolded {
			p.LastHand = evaluator.Folded()
			continue
		}
		summary, err := evaluator.Evaluate(s.showdownCodesLocked(p))
		if err != nil {
			s.logger.Error("hand evaluation failed", "player", p.Name, "error", err)
			p.LastHand = nil
			continue
		}
		p.LastHand = summary
		active = append(active, p)
		hands = append(hands, summary)
	}

	winners := evaluator.Winners(hands)
	if len(winners) == 0 {
		// Defensive: nothing won, everyone keeps their own bet.
		for _, p := range s.players {
			p.Chips += p.Bet
			p.Bet = 0
		}
		return
	}

	winnings := s.collectBetsLocked()
	share := winnings / len(winners)
	for _, idx := range winners {
		active[idx].Chips += share
	}
	first := active[winners[0]]
	first.Chips += winnings % len(winners)
	s.declareWinnerLocked(first)
}

// declareWinnerLocked records the winner, fires the fanfare and schedules
// the delayed re-broadcast so clients can show the result before the table
// resets. A folded player can never be declared winner here; the all-others
// -folded path marks its winner before folding anyone else.
func (s *Session) declareWinnerLocked(p *Player) {
	if p == nil || p.HasFolded {
		s.logger.Error("invalid winner attempt", "player", p)
		return
	}
	s.winner = p
	s.clock.AfterFunc(s.rules.WinnerDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.broadcastLocked(false)
	})
	s.sink.PlaySound(SoundFanfare)
}

// nextCzarLocked rotates the turn over position-sorted players that are
// either not folded or are the current czar, so the czar stays findable in
// its own successor lookup even when it just folded.
func (s *Session) nextCzarLocked() {
	var eligible []*Player
	for _, p := range s.orderedLocked() {
		if !p.HasFolded || p.ID == s.czar {
			eligible = append(eligible, p)
		}
	}
	if len(eligible) == 0 {
		s.czar = ""
		return
	}
	current := -1
	for i, p := range eligible {
		if p.ID == s.czar {
			current = i
			break
		}
	}
	next := current + 1
	if next >= len(eligible) {
		next = 0
	}
	s.czar = eligible[next].ID
}

// collectBetsLocked sums and zeroes every player's bet, folded included.
func (s *Session) collectBetsLocked() int {
	total := 0
	for _, p := range s.players {
		total += p.Bet
		p.Bet = 0
	}
	return total
}

func (s *Session) dealCommunityLocked(n int) {
	for range n {
		card, ok := s.deck.Draw()
		if !ok {
			s.logger.Error("deck exhausted while dealing community cards")
			return
		}
		s.tableCards = append(s.tableCards, card)
	}
}

func (s *Session) createPlayerLocked(u Identity) {
	// A rejoin replaces the old record; dropping it first frees its seat.
	delete(s.players, u.ID)
	s.players[u.ID] = &Player{
		ID:        u.ID,
		Name:      u.Name,
		Position:  s.freeSeatLocked(),
		Chips:     s.rules.StartChips,
		Connected: true,
	}
}

// freeSeatLocked picks a seat uniformly at random among the unoccupied
// positions.
func (s *Session) freeSeatLocked() int {
	taken := make(map[int]bool, len(s.players))
	for _, p := range s.players {
		taken[p.Position] = true
	}
	var free []int
	for pos := range maxSeats {
		if !taken[pos] {
			free = append(free, pos)
		}
	}
	if len(free) == 0 {
		return -1
	}
	return free[s.rng.IntN(len(free))]
}

func (s *Session) orderedLocked() []*Player {
	ordered := make([]*Player, 0, len(s.players))
	for _, p := range s.players {
		ordered = append(ordered, p)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Position < ordered[j].Position
	})
	return ordered
}

func (s *Session) nonFoldedLocked() []*Player {
	var standing []*Player
	for _, p := range s.orderedLocked() {
		if !p.HasFolded {
			standing = append(standing, p)
		}
	}
	return standing
}

func (s *Session) allHasBetLocked(players []*Player) bool {
	for _, p := range players {
		if !p.HasBet {
			return false
		}
	}
	return true
}

func (s *Session) maxBetLocked() int {
	max := 0
	for _, p := range s.players {
		if p.Bet > max {
			max = p.Bet
		}
	}
	return max
}

func (s *Session) canCheckLocked(p *Player) bool {
	return p.Bet >= s.maxBetLocked()
}

func (s *Session) showdownCodesLocked(p *Player) []string {
	codes := make([]string, 0, len(p.Cards)+len(s.tableCards))
	for _, c := range p.Cards {
		codes = append(codes, c.Code)
	}
	for _, c := range s.tableCards {
		codes = append(codes, c.Code)
	}
	return codes
}

func (s *Session) inWaitingLocked(playerID string) bool {
	for _, u := range s.waiting {
		if u.ID == playerID {
			return true
		}
	}
	return false
}

func (s *Session) broadcastLocked(isReset bool) {
	s.sink.Broadcast(s.snapshotLocked(isReset))
}
