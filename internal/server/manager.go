package server

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/cardroom/cardroom/internal/game"
	"github.com/cardroom/cardroom/internal/randutil"
)

// defaultInstance is used when an init frame omits the instance key.
const defaultInstance = "lobby"

// peer is the send side of a client socket. *Conn implements it; tests
// supply stubs.
type peer interface {
	Send(env *Envelope) error
}

type binding struct {
	instance string
	user     game.Identity
}

type kickKey struct {
	instance string
	player   string
}

// Manager routes inbound frames to the owning session and owns the
// connection lifecycle around it: socket→(instance, identity) bindings, the
// per-instance socket sets used for broadcast, and the per-player
// disconnect grace timers. It holds references into sessions but is never
// the source of truth for game state.
type Manager struct {
	logger   *log.Logger
	clock    quartz.Clock
	registry *Registry
	grace    time.Duration

	mu    sync.Mutex
	binds map[peer]binding
	conns map[string]map[string]peer
	kicks map[kickKey]*quartz.Timer
}

// NewManager creates a manager with its own lazy session registry.
func NewManager(logger *log.Logger, clock quartz.Clock, rules game.Rules, grace time.Duration) *Manager {
	m := &Manager{
		logger: logger.WithPrefix("manager"),
		clock:  clock,
		grace:  grace,
		binds:  make(map[peer]binding),
		conns:  make(map[string]map[string]peer),
		kicks:  make(map[kickKey]*quartz.Timer),
	}
	m.registry = NewRegistry(func(key string) *game.Session {
		rng := randutil.New(clock.Now().UnixNano())
		return game.NewSession(logger, clock, &instanceSink{m: m, instance: key}, rng, rules)
	})
	return m
}

// Registry exposes the instance registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// HandleMessage dispatches one inbound frame from p.
func (m *Manager) HandleMessage(p peer, env *Envelope) {
	if env.Path == PathInit {
		m.handleInit(p, env.Data)
		return
	}

	b, ok := m.bindingFor(p)
	if !ok {
		m.logger.Debug("frame from unbound socket ignored", "path", env.Path)
		return
	}
	sess := m.registry.GetOrCreate(b.instance)

	switch env.Path {
	case PathJoin:
		// A rejoin between hands replaces the seated player, so any
		// pending kick for this identity is stale.
		m.cancelKick(kickKey{instance: b.instance, player: b.user.ID})
		if err := sess.Join(b.user); err != nil {
			if errors.Is(err, game.ErrGameFull) {
				m.sendError(p, err.Error())
			}
		}
	case PathStart:
		sess.Start()
	case PathReset:
		sess.ResetHard()
	case PathCheck:
		sess.Check(b.user.ID)
	case PathFold:
		sess.Fold(b.user.ID)
	case PathBet:
		var amount int
		if err := json.Unmarshal(env.Data, &amount); err != nil {
			m.logger.Warn("malformed bet payload", "player", b.user.Name, "error", err)
			return
		}
		sess.Bet(b.user.ID, amount)
	default:
		m.logger.Debug("unknown path", "path", env.Path)
	}
}

// handleInit binds the socket to (instance, identity), cancels any pending
// kick for that identity, marks a seated player connected again and pushes
// a full state snapshot to this socket only.
func (m *Manager) handleInit(p peer, data json.RawMessage) {
	var init InitData
	if err := json.Unmarshal(data, &init); err != nil || init.User.ID == "" {
		m.logger.Warn("malformed init frame", "error", err)
		return
	}
	if init.Instance == "" {
		init.Instance = defaultInstance
	}

	m.mu.Lock()
	prev, rebound := m.binds[p]
	m.binds[p] = binding{instance: init.Instance, user: init.User}
	if m.conns[init.Instance] == nil {
		m.conns[init.Instance] = make(map[string]peer)
	}
	m.conns[init.Instance][init.User.ID] = p
	m.stopKickLocked(kickKey{instance: init.Instance, player: init.User.ID})
	// Rebinding to another instance or identity leaves the old seat
	// behind; it settles like a disconnect so its grace countdown starts
	// now instead of lingering connected until the socket dies.
	settlePrev := rebound &&
		(prev.instance != init.Instance || prev.user.ID != init.User.ID) &&
		m.conns[prev.instance][prev.user.ID] == p
	if settlePrev {
		delete(m.conns[prev.instance], prev.user.ID)
	}
	m.mu.Unlock()

	if settlePrev {
		m.settleDeparture(prev.instance, prev.user)
	}

	sess := m.registry.GetOrCreate(init.Instance)
	if sess.MarkConnected(init.User) {
		m.logger.Info("player returned", "player", init.User.Name, "instance", init.Instance)
	}

	if env, err := NewEnvelope(PathSync, sess.Snapshot()); err == nil {
		_ = p.Send(env)
	}
	m.logger.Info("connected", "player", init.User.Name, "instance", init.Instance)
}

// HandleClose runs when a socket goes away. Every instance whose socket
// entry for the identity is still this peer settles, not just the latest
// binding. Instances where a newer socket already owns the identity are
// untouched, so a kick can never fire after a successful reconnect.
func (m *Manager) HandleClose(p peer) {
	m.mu.Lock()
	b, ok := m.binds[p]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.binds, p)
	var gone []string
	for instance, socks := range m.conns {
		if socks[b.user.ID] == p {
			delete(socks, b.user.ID)
			gone = append(gone, instance)
		}
	}
	m.mu.Unlock()

	for _, instance := range gone {
		m.settleDeparture(instance, b.user)
	}
}

// settleDeparture runs the disconnect path for one identity in one
// instance: a seated player starts the grace countdown, a waiting-room-only
// identity is dropped outright.
func (m *Manager) settleDeparture(instance string, user game.Identity) {
	sess := m.registry.Get(instance)
	if sess == nil {
		return
	}
	if sess.MarkDisconnected(user.ID) {
		m.logger.Info("disconnected, kicking in grace period", "player", user.Name, "instance", instance, "grace", m.grace)
		m.scheduleKick(kickKey{instance: instance, player: user.ID})
		return
	}
	if sess.RemoveWaiting(user.ID) {
		m.logger.Info("removed from waiting list", "player", user.Name, "instance", instance)
	}
}

// scheduleKick arms the grace timer for one player, replacing any previous
// one so at most a single pending kick exists per player.
func (m *Manager) scheduleKick(key kickKey) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopKickLocked(key)
	m.kicks[key] = m.clock.AfterFunc(m.grace, func() {
		m.fireKick(key)
	})
}

func (m *Manager) fireKick(key kickKey) {
	m.mu.Lock()
	delete(m.kicks, key)
	m.mu.Unlock()

	sess := m.registry.Get(key.instance)
	if sess == nil {
		return
	}
	// Still-disconnected check and removal are atomic inside the session.
	sess.KickIfDisconnected(key.player)
}

func (m *Manager) cancelKick(key kickKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopKickLocked(key)
}

func (m *Manager) stopKickLocked(key kickKey) {
	if timer, ok := m.kicks[key]; ok {
		timer.Stop()
		delete(m.kicks, key)
	}
}

func (m *Manager) bindingFor(p peer) (binding, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.binds[p]
	return b, ok
}

func (m *Manager) sendError(p peer, msg string) {
	env, err := NewEnvelope(PathError, msg)
	if err != nil {
		return
	}
	_ = p.Send(env)
}

// fanout sends env to every socket bound to the instance.
func (m *Manager) fanout(instance string, env *Envelope) {
	m.mu.Lock()
	peers := make([]peer, 0, len(m.conns[instance]))
	for _, p := range m.conns[instance] {
		peers = append(peers, p)
	}
	m.mu.Unlock()

	for _, p := range peers {
		_ = p.Send(env)
	}
}

// instanceSink adapts the manager's fan-out to the session's Sink. It only
// marshals and pushes to send buffers, never back into the session.
type instanceSink struct {
	m        *Manager
	instance string
}

func (s *instanceSink) Broadcast(v *game.View) {
	env, err := NewEnvelope(PathSync, v)
	if err != nil {
		s.m.logger.Error("failed to marshal sync payload", "error", err)
		return
	}
	s.m.fanout(s.instance, env)
}

func (s *instanceSink) PlaySound(cue string) {
	env, err := NewEnvelope(PathSound, cue)
	if err != nil {
		return
	}
	s.m.fanout(s.instance, env)
}
