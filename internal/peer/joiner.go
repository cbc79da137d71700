package peer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"pokeduel/internal/battle"
	"pokeduel/internal/protocol"
)

// connectRetryInterval is how often an unanswered connect or observer
// request is re-sent. Handshake datagrams predate the sequenced channel, so
// loss is recovered by this slower application-level retry.
const connectRetryInterval = 2 * time.Second

// Joiner is the initiating side of a battle: it dials the host, adopts the
// seed from the accept message and moves second.
type Joiner struct {
	*Peer
	hostAddr *net.UDPAddr
	seedCh   chan int64
}

// NewJoiner binds an ephemeral socket aimed at the host address.
func NewJoiner(hostAddr, name string, combatant *battle.Pokemon, dex *battle.Pokedex, sink EventSink, logger *slog.Logger, opts Options) (*Joiner, error) {
	raddr, err := net.ResolveUDPAddr("udp", hostAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve host address: %w", err)
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, fmt.Errorf("bind udp socket: %w", err)
	}

	j := &Joiner{
		Peer:     newPeer(RoleJoiner, name, conn, combatant, dex, sink, logger, opts),
		hostAddr: raddr,
		seedCh:   make(chan int64, 1),
	}
	j.intercept = j.handshake
	return j, nil
}

// Connect performs the whole joiner handshake: request, wait for the seed,
// then announce this side's combatant. It blocks until the battle is set up
// on the wire or ctx expires. Start must have been called first.
func (j *Joiner) Connect(ctx context.Context) error {
	j.sendRaw(protocol.NewConnectRequest(j.name), j.hostAddr)

	ticker := time.NewTicker(connectRetryInterval)
	defer ticker.Stop()

	var seed int64
wait:
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for the host to accept: %w", ctx.Err())
		case <-j.Done():
			return errors.New("session closed during handshake")
		case seed = <-j.seedCh:
			break wait
		case <-ticker.C:
			j.sendRaw(protocol.NewConnectRequest(j.name), j.hostAddr)
		}
	}

	j.logger.Info("battle accepted by host", "seed", seed, "session_id", j.SessionID())

	setup := protocol.NewBattleSetup(j.combatant.Name, protocol.BoostAllowance{
		SpecialAttack:  battle.DefaultSpecialAttackUses,
		SpecialDefense: battle.DefaultSpecialDefenseUses,
	})
	if err := j.sendReliable(setup); err != nil {
		return fmt.Errorf("announce battle setup: %w", err)
	}
	return nil
}

func (j *Joiner) handshake(m protocol.Message, from *net.UDPAddr) bool {
	if m.Type() != protocol.TypeConnectAccept {
		return false
	}
	seed, ok := m.Int64(protocol.FieldSeed)
	if !ok {
		j.logger.Warn("connect accept without a usable seed")
		return true
	}

	j.mu.Lock()
	if j.session.Connected() {
		j.mu.Unlock()
		return true
	}
	j.session.Remote = from
	j.session.Seed = seed
	j.manager = battle.NewManager(j.combatant, seed, false)
	j.mu.Unlock()

	select {
	case j.seedCh <- seed:
	default:
	}
	return true
}
