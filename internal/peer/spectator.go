package peer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"pokeduel/internal/protocol"
)

// Spectator is a read-only attachment to a host's battle. It renders the
// mirrored traffic and may chat, but it never touches battle state.
type Spectator struct {
	*Peer
	hostAddr *net.UDPAddr
	accepted chan struct{}
	rejected chan string
}

// NewSpectator binds an ephemeral socket aimed at the host address.
func NewSpectator(hostAddr, name string, sink EventSink, logger *slog.Logger, opts Options) (*Spectator, error) {
	raddr, err := net.ResolveUDPAddr("udp", hostAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve host address: %w", err)
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, fmt.Errorf("bind udp socket: %w", err)
	}

	s := &Spectator{
		Peer:     newPeer(RoleSpectator, name, conn, nil, nil, sink, logger, opts),
		hostAddr: raddr,
		accepted: make(chan struct{}, 1),
		rejected: make(chan string, 1),
	}
	s.intercept = s.observe
	return s, nil
}

// Attach asks the host for the observer seat and blocks until it is granted,
// refused, or ctx expires. Start must have been called first.
func (s *Spectator) Attach(ctx context.Context) error {
	s.sendRaw(protocol.NewObserverRequest(s.name), s.hostAddr)

	ticker := time.NewTicker(connectRetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for observer seat: %w", ctx.Err())
		case <-s.Done():
			return errors.New("session closed during attach")
		case reason := <-s.rejected:
			s.Close()
			return fmt.Errorf("host refused observer attach: %s", reason)
		case <-s.accepted:
			s.mu.Lock()
			s.session.Remote = s.hostAddr
			s.mu.Unlock()
			s.logger.Info("attached as observer", "host", s.hostAddr.String())
			return nil
		case <-ticker.C:
			s.sendRaw(protocol.NewObserverRequest(s.name), s.hostAddr)
		}
	}
}

// observe consumes every message: a spectator renders the battle but never
// participates in it.
func (s *Spectator) observe(m protocol.Message, from *net.UDPAddr) bool {
	switch m.Type() {
	case protocol.TypeObserverAccept:
		select {
		case s.accepted <- struct{}{}:
		default:
		}
	case protocol.TypeObserverReject:
		select {
		case s.rejected <- m[protocol.FieldReason]:
		default:
		}
	case protocol.TypeBattleSetup:
		s.sink.BattleLine(fmt.Sprintf("%s entered the battle!", m[protocol.FieldCombatantName]))
	case protocol.TypeAttackAnnounce:
		s.sink.BattleLine(fmt.Sprintf("%s is using %s...", m[protocol.FieldAttacker], m[protocol.FieldMove]))
	case protocol.TypeCalculationReport:
		if status := m[protocol.FieldStatusMessage]; status != "" {
			s.sink.BattleLine(fmt.Sprintf("%s (defender at %s HP)", status, m[protocol.FieldDefenderHP]))
		}
	case protocol.TypeGameOver:
		s.sink.BattleEnded(m[protocol.FieldWinner], m[protocol.FieldLoser])
		s.Close()
	case protocol.TypeChat:
		s.handleChat(m)
	case protocol.TypeDefenseAnnounce, protocol.TypeCalculationConfirm, protocol.TypeResolutionRequest:
		// Bookkeeping between the combatants; nothing to show.
	default:
		s.logger.Info("ignoring unknown message type", "type", m.Type(), "from", from.String())
	}
	return true
}
