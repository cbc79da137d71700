package peer

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math/rand"
	"net"

	"pokeduel/internal/battle"
	"pokeduel/internal/protocol"
)

// JoinRequest is a pending connection attempt waiting for the host's
// decision.
type JoinRequest struct {
	Name string
	Addr *net.UDPAddr
}

// Host is the accepting side of a battle. It owns the published port, decides
// who gets to join, mints the shared seed, moves first, and relays the battle
// to an attached observer.
type Host struct {
	*Peer
	requests chan JoinRequest
	queued   map[string]bool // guarded by Peer.mu

	// relay carries counterpart messages to the observer through a single
	// goroutine, so the observer's feed keeps the battle order.
	relay chan protocol.Message
}

// NewHost binds the listening socket. Call Start to begin receiving and
// consume Requests for join attempts.
func NewHost(bindAddr, name string, combatant *battle.Pokemon, dex *battle.Pokedex, sink EventSink, logger *slog.Logger, opts Options) (*Host, error) {
	addr, err := net.ResolveUDPAddr("udp", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve bind address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("bind udp socket: %w", err)
	}

	h := &Host{
		Peer:     newPeer(RoleHost, name, conn, combatant, dex, sink, logger, opts),
		requests: make(chan JoinRequest, 4),
		queued:   make(map[string]bool),
		relay:    make(chan protocol.Message, 32),
	}
	h.intercept = h.handshake
	h.onOpponentSetup = h.sendOwnSetup
	go h.relayLoop()
	return h, nil
}

// Requests delivers join attempts. The host application answers each with
// Accept or simply ignores it; the joiner keeps retrying until accepted or it
// gives up.
func (h *Host) Requests() <-chan JoinRequest {
	return h.requests
}

// Accept establishes r as the battle counterpart: a fresh seed is minted and
// shared, and the host takes the opening turn.
func (h *Host) Accept(r JoinRequest) error {
	h.mu.Lock()
	if h.session.Connected() {
		h.mu.Unlock()
		return errors.New("a battle is already in progress")
	}
	seed := rand.Int63()
	h.session.Remote = r.Addr
	h.session.Seed = seed
	h.manager = battle.NewManager(h.combatant, seed, true)
	h.queued = make(map[string]bool)
	h.mu.Unlock()

	h.sendRaw(protocol.NewConnectAccept(h.name, seed), r.Addr)
	h.logger.Info("battle accepted",
		"counterpart", r.Name,
		"addr", r.Addr.String(),
		"session_id", h.SessionID())
	return nil
}

// handshake intercepts pre-battle traffic and relays counterpart messages to
// the observer.
func (h *Host) handshake(m protocol.Message, from *net.UDPAddr) bool {
	switch m.Type() {
	case protocol.TypeConnectRequest:
		h.handleConnectRequest(m, from)
		return true
	case protocol.TypeObserverRequest:
		h.handleObserverRequest(m, from)
		return true
	}

	h.mu.Lock()
	observer := h.session.Observer
	fromCounterpart := h.session.FromCounterpart(from)
	h.mu.Unlock()
	// GAME_OVER is relayed by the end-of-battle path, which also holds the
	// socket open until the observer has it.
	if observer != nil && fromCounterpart && m.Type() != protocol.TypeGameOver {
		select {
		case h.relay <- maps.Clone(m):
		default:
			h.logger.Warn("observer relay queue full, dropping", "type", m.Type())
		}
	}
	return false
}

// relayLoop drains the relay queue one message at a time.
func (h *Host) relayLoop() {
	for {
		select {
		case <-h.done:
			return
		case m := <-h.relay:
			h.mu.Lock()
			observer := h.session.Observer
			h.mu.Unlock()
			if observer == nil {
				continue
			}
			if err := h.channel.Send(m, observer); err != nil {
				h.logger.Warn("observer unreachable, detaching", "error", err)
				h.mu.Lock()
				h.session.Observer = nil
				h.mu.Unlock()
			}
		}
	}
}

func (h *Host) handleConnectRequest(m protocol.Message, from *net.UDPAddr) {
	h.mu.Lock()
	if h.session.Connected() {
		fromCounterpart := h.session.FromCounterpart(from)
		seed := h.session.Seed
		h.mu.Unlock()
		if fromCounterpart {
			// The accept datagram was lost; answer again.
			h.sendRaw(protocol.NewConnectAccept(h.name, seed), from)
		} else {
			h.logger.Info("connect request refused, battle in progress", "from", from.String())
		}
		return
	}
	if h.queued[from.String()] {
		h.mu.Unlock()
		return
	}
	h.queued[from.String()] = true
	h.mu.Unlock()

	select {
	case h.requests <- JoinRequest{Name: m[protocol.FieldSender], Addr: from}:
	default:
		h.logger.Warn("join request queue full, dropping", "from", from.String())
		h.mu.Lock()
		delete(h.queued, from.String())
		h.mu.Unlock()
	}
}

// handleObserverRequest attaches the first observer and explicitly turns any
// later one away so it does not wait forever on a silent host.
func (h *Host) handleObserverRequest(m protocol.Message, from *net.UDPAddr) {
	h.mu.Lock()
	if h.session.Observer != nil && h.session.Observer.String() != from.String() {
		h.mu.Unlock()
		h.sendRaw(protocol.NewObserverReject(h.name, "an observer is already attached"), from)
		h.logger.Info("observer rejected, seat taken", "from", from.String())
		return
	}
	already := h.session.Observer != nil
	h.session.Observer = from
	h.mu.Unlock()

	h.sendRaw(protocol.NewObserverAccept(h.name), from)
	if !already {
		h.logger.Info("observer attached", "observer", m[protocol.FieldSender], "addr", from.String())
		h.sink.BattleLine(fmt.Sprintf("%s is now watching the battle.", m[protocol.FieldSender]))
	}
}

// sendOwnSetup answers the joiner's battle setup with the host's, exactly
// once.
func (h *Host) sendOwnSetup() {
	h.mu.Lock()
	if h.setupSent {
		h.mu.Unlock()
		return
	}
	h.setupSent = true
	h.mu.Unlock()

	setup := protocol.NewBattleSetup(h.combatant.Name, protocol.BoostAllowance{
		SpecialAttack:  battle.DefaultSpecialAttackUses,
		SpecialDefense: battle.DefaultSpecialDefenseUses,
	})
	go func() {
		if err := h.sendReliable(setup); err != nil {
			h.fatalErr("battle setup undeliverable", err)
		}
	}()
}
