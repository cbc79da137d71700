// Package peer wires the protocol layers together: one UDP socket, one
// receive goroutine, a reliable channel for outbound battle traffic, and the
// role-specific handshake logic for hosts, joiners and spectators.
package peer

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"pokeduel/internal/battle"
	"pokeduel/internal/protocol"
	"pokeduel/internal/reliable"
)

const maxDatagram = 4096

// Peer roles.
const (
	RoleHost      = "host"
	RoleJoiner    = "joiner"
	RoleSpectator = "spectator"
)

var (
	// ErrDesync means the two sides disagree about the battle state in a
	// way the protocol cannot repair.
	ErrDesync = errors.New("session desynchronized")
	// ErrNotInBattle is returned for battle operations before the
	// handshake completes.
	ErrNotInBattle = errors.New("battle not in progress")
	// ErrChatThrottled is returned when outbound chat exceeds the flood
	// limit.
	ErrChatThrottled = errors.New("chat rate limit exceeded")
)

// Options tune the transport and chat behavior. Zero values select defaults.
type Options struct {
	AckTimeout  time.Duration
	MaxAttempts int
	ChatRate    rate.Limit
	ChatBurst   int
}

// Peer is the shared half of every role: it owns the socket, the receive
// loop, duplicate suppression and the battle message handlers. Role types
// embed it and plug in their handshake behavior via intercept hooks.
type Peer struct {
	name    string
	role    string
	conn    *net.UDPConn
	channel *reliable.Channel
	logger  *slog.Logger
	sink    EventSink
	chat    *rate.Limiter

	mu        sync.Mutex
	session   *Session
	manager   *battle.Manager
	dex       *battle.Pokedex
	combatant *battle.Pokemon
	setupSent bool

	// intercept sees every non-ACK message before standard dispatch and
	// consumes it by returning true. Roles use it for handshake traffic.
	intercept func(m protocol.Message, from *net.UDPAddr) bool
	// onOpponentSetup fires after the counterpart's battle setup is
	// recorded.
	onOpponentSetup func()

	done      chan struct{}
	closeOnce sync.Once
	endOnce   sync.Once
}

func newPeer(role, name string, conn *net.UDPConn, combatant *battle.Pokemon, dex *battle.Pokedex, sink EventSink, logger *slog.Logger, opts Options) *Peer {
	if sink == nil {
		sink = NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("role", role, "peer", name)
	chatRate := opts.ChatRate
	if chatRate == 0 {
		chatRate = rate.Every(time.Second)
	}
	chatBurst := opts.ChatBurst
	if chatBurst == 0 {
		chatBurst = 3
	}
	return &Peer{
		name:      name,
		role:      role,
		conn:      conn,
		channel:   reliable.NewChannel(conn, opts.AckTimeout, opts.MaxAttempts, logger),
		logger:    logger,
		sink:      sink,
		chat:      rate.NewLimiter(chatRate, chatBurst),
		session:   NewSession(),
		combatant: combatant,
		dex:       dex,
		done:      make(chan struct{}),
	}
}

// Start launches the receive goroutine.
func (p *Peer) Start() {
	go p.listen()
}

// Close tears the peer down. Safe to call more than once.
func (p *Peer) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		p.conn.Close()
	})
	return nil
}

// Done is closed when the session has ended for any reason.
func (p *Peer) Done() <-chan struct{} {
	return p.done
}

// LocalAddr returns the bound UDP address.
func (p *Peer) LocalAddr() *net.UDPAddr {
	return p.conn.LocalAddr().(*net.UDPAddr)
}

// SessionID returns the session identifier, for logs and the status API.
func (p *Peer) SessionID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session.ID.String()
}

// listen is the single receive loop. ACKs are routed to the reliable
// channel; sequenced messages are acknowledged and deduplicated before
// dispatch. Handlers that need to send reliably do so on fresh goroutines so
// this loop never blocks on a retransmission cycle.
func (p *Peer) listen() {
	buf := make([]byte, maxDatagram)
	for {
		n, from, err := p.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-p.done:
			default:
				p.logger.Error("socket read failed", "error", err)
				p.Close()
			}
			return
		}

		m := protocol.Decode(buf[:n])
		switch m.Type() {
		case "":
			continue
		case protocol.TypeAck:
			p.channel.Deliver(m)
			continue
		}

		if seq, ok := m.Sequence(); ok {
			p.sendRaw(protocol.NewAck(seq), from)
			p.mu.Lock()
			dup := p.session.Duplicate(from, seq)
			p.mu.Unlock()
			if dup {
				p.logger.Debug("duplicate suppressed", "type", m.Type(), "sequence", seq, "from", from.String())
				continue
			}
		}

		if p.intercept != nil && p.intercept(m, from) {
			continue
		}
		p.dispatch(m, from)
	}
}

// dispatch routes established-session traffic. Unknown types are logged and
// dropped so newer counterparts do not break older peers.
func (p *Peer) dispatch(m protocol.Message, from *net.UDPAddr) {
	switch m.Type() {
	case protocol.TypeBattleSetup:
		p.handleBattleSetup(m)
	case protocol.TypeAttackAnnounce:
		p.handleAttackAnnounce(m)
	case protocol.TypeDefenseAnnounce:
		p.handleDefenseAnnounce(m)
	case protocol.TypeCalculationReport:
		p.handleCalculationReport(m)
	case protocol.TypeCalculationConfirm:
		p.handleCalculationConfirm(m)
	case protocol.TypeResolutionRequest:
		p.handleResolutionRequest(m)
	case protocol.TypeGameOver:
		p.handleGameOver(m)
	case protocol.TypeChat:
		p.handleChat(m)
	default:
		p.logger.Info("ignoring unknown message type", "type", m.Type(), "from", from.String())
	}
}

func (p *Peer) handleBattleSetup(m protocol.Message) {
	name := m[protocol.FieldCombatantName]

	p.mu.Lock()
	if p.manager == nil {
		p.mu.Unlock()
		p.logger.Warn("battle setup before handshake completed", "combatant", name)
		return
	}
	if p.manager.Ready() {
		p.mu.Unlock()
		return
	}
	opponent, ok := p.dex.Lookup(name)
	if !ok {
		p.mu.Unlock()
		p.fatal(fmt.Sprintf("counterpart announced unknown combatant %q", name))
		return
	}
	p.manager.SetOpponent(opponent)
	p.mu.Unlock()

	if boosts, err := protocol.ParseBoosts(m); err == nil {
		p.logger.Info("counterpart ready",
			"combatant", name,
			"special_attack_uses", boosts.SpecialAttack,
			"special_defense_uses", boosts.SpecialDefense)
	}
	p.sink.BattleLine(fmt.Sprintf("The opposing side sent out %s!", name))

	if p.onOpponentSetup != nil {
		p.onOpponentSetup()
	}
}

func (p *Peer) handleAttackAnnounce(m protocol.Message) {
	attacker := m[protocol.FieldAttacker]
	moveName := m[protocol.FieldMove]

	p.mu.Lock()
	if p.manager == nil {
		p.mu.Unlock()
		p.logger.Warn("attack announce before handshake")
		return
	}
	out, err := p.manager.OnAttackAnnounce(attacker, moveName)
	if err != nil {
		p.mu.Unlock()
		p.logger.Warn("attack announce ignored", "error", err)
		return
	}
	attackerHP := p.manager.Opponent().CurrentHP
	p.mu.Unlock()

	p.sink.BattleLine(out.Status)

	defense := protocol.NewDefenseAnnounce(p.combatant.Name)
	report := protocol.NewCalculationReport(attacker, moveName, attackerHP, out.Damage, out.DefenderHP, out.Status)
	go func() {
		if err := p.sendReliable(defense); err != nil {
			p.fatalErr("defense announce undeliverable", err)
			return
		}
		if err := p.sendReliable(report); err != nil {
			p.fatalErr("calculation report undeliverable", err)
		}
	}()
}

func (p *Peer) handleDefenseAnnounce(m protocol.Message) {
	p.mu.Lock()
	if p.manager == nil {
		p.mu.Unlock()
		return
	}
	out, err := p.manager.OnDefenseAnnounce()
	if err != nil {
		p.mu.Unlock()
		p.logger.Warn("defense announce ignored", "error", err)
		return
	}
	mv, _ := p.manager.PendingMove()
	attackerHP := p.manager.Self().CurrentHP
	p.mu.Unlock()

	p.sink.BattleLine(out.Status)

	report := protocol.NewCalculationReport(p.combatant.Name, mv.Name, attackerHP, out.Damage, out.DefenderHP, out.Status)
	go func() {
		if err := p.sendReliable(report); err != nil {
			p.fatalErr("calculation report undeliverable", err)
		}
	}()
}

func (p *Peer) handleCalculationReport(m protocol.Message) {
	theirDamage, ok1 := m.Int(protocol.FieldDamageDealt)
	theirHP, ok2 := m.Int(protocol.FieldDefenderHP)
	if !ok1 || !ok2 {
		p.logger.Warn("malformed calculation report")
		return
	}

	p.mu.Lock()
	if p.manager == nil {
		p.mu.Unlock()
		return
	}
	mine, match, err := p.manager.CrossCheck(theirDamage, theirHP)
	if err != nil {
		p.mu.Unlock()
		p.logger.Warn("calculation report with no local calculation, ignoring")
		return
	}

	if !match {
		attacker, _ := p.manager.PendingAttacker()
		mv, _ := p.manager.PendingMove()
		p.mu.Unlock()
		p.logger.Warn("calculation mismatch",
			"local_damage", mine.Damage, "remote_damage", theirDamage,
			"local_hp", mine.DefenderHP, "remote_hp", theirHP)
		request := protocol.NewResolutionRequest(attacker, mv.Name, mine.Damage, mine.DefenderHP)
		go func() {
			if err := p.sendReliable(request); err != nil {
				p.fatalErr("resolution request undeliverable", err)
			}
		}()
		return
	}

	p.manager.Apply(mine.DefenderHP)
	winner, loser, over := p.manager.Winner()
	if !over {
		p.manager.CommitTurn()
	}
	p.mu.Unlock()

	confirm := protocol.NewCalculationConfirm(p.name)
	go func() {
		if err := p.sendReliable(confirm); err != nil {
			p.fatalErr("calculation confirm undeliverable", err)
			return
		}
		if over {
			p.announceGameOver(winner.Name, loser.Name)
		}
	}()
}

func (p *Peer) handleCalculationConfirm(m protocol.Message) {
	p.mu.Lock()
	if p.manager == nil {
		p.mu.Unlock()
		return
	}
	out, ok := p.manager.PendingOutcome()
	if !ok {
		// Turn already committed on this side; the confirm is news we
		// acted on first.
		p.mu.Unlock()
		return
	}
	p.manager.Apply(out.DefenderHP)
	winner, loser, over := p.manager.Winner()
	if !over {
		p.manager.CommitTurn()
	}
	p.mu.Unlock()

	if over {
		go p.announceGameOver(winner.Name, loser.Name)
	}
}

func (p *Peer) handleResolutionRequest(m protocol.Message) {
	theirDamage, ok1 := m.Int(protocol.FieldDamageDealt)
	theirHP, ok2 := m.Int(protocol.FieldDefenderHP)
	if !ok1 || !ok2 {
		p.logger.Warn("malformed resolution request")
		return
	}

	p.mu.Lock()
	if p.manager == nil {
		p.mu.Unlock()
		return
	}
	if _, ok := p.manager.PendingOutcome(); !ok {
		p.mu.Unlock()
		p.fatal("resolution request with no pending turn: " + ErrDesync.Error())
		return
	}
	// The counterpart's values are adopted unconditionally.
	p.manager.Apply(theirHP)
	winner, loser, over := p.manager.Winner()
	if !over {
		p.manager.CommitTurn()
	}
	p.mu.Unlock()

	p.sink.BattleLine(fmt.Sprintf("Turn resolved with counterpart's numbers (%d damage).", theirDamage))
	if over {
		go p.announceGameOver(winner.Name, loser.Name)
	}
}

func (p *Peer) handleGameOver(m protocol.Message) {
	p.endBattle(m[protocol.FieldWinner], m[protocol.FieldLoser], false)
}

func (p *Peer) handleChat(m protocol.Message) {
	sender := m[protocol.FieldSender]
	if m[protocol.FieldContentType] == protocol.ContentSticker {
		p.sink.ChatMessage(sender, "[sticker]")
		return
	}
	p.sink.ChatMessage(sender, m[protocol.FieldText])
}

// Attack announces this side's move for the turn.
func (p *Peer) Attack(moveName string) error {
	p.mu.Lock()
	if p.manager == nil {
		p.mu.Unlock()
		return ErrNotInBattle
	}
	mv, err := p.manager.BeginAttack(moveName)
	p.mu.Unlock()
	if err != nil {
		return err
	}

	if err := p.sendReliable(protocol.NewAttackAnnounce(p.combatant.Name, mv.Name)); err != nil {
		p.fatalErr("attack announce undeliverable", err)
		return err
	}
	return nil
}

// UseAttackBoost arms a special attack boost for the next attack.
func (p *Peer) UseAttackBoost() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.manager == nil {
		return ErrNotInBattle
	}
	return p.manager.UseAttackBoost()
}

// ArmDefenseBoost arms a special defense boost against the next incoming
// attack.
func (p *Peer) ArmDefenseBoost() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.manager == nil {
		return ErrNotInBattle
	}
	return p.manager.ArmDefenseBoost()
}

// RandomMove picks a move name using the shared battle PRNG.
func (p *Peer) RandomMove() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.manager == nil {
		return "", ErrNotInBattle
	}
	return p.manager.RandomMove(), nil
}

// IsMyTurn reports whether this side owns the current turn.
func (p *Peer) IsMyTurn() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.manager != nil && p.manager.IsMyTurn() && p.manager.Phase() == battle.PhaseAwaitingMove
}

// Moves lists this side's move names.
func (p *Peer) Moves() []string {
	if p.combatant == nil {
		return nil
	}
	names := make([]string, 0, len(p.combatant.Moves))
	for _, mv := range p.combatant.Moves {
		names = append(names, mv.Name)
	}
	return names
}

// SendChat delivers a text chat line, subject to the flood limit.
func (p *Peer) SendChat(text string) error {
	if !p.chat.Allow() {
		return ErrChatThrottled
	}
	return p.sendReliable(protocol.NewTextChat(p.name, text))
}

// SendSticker delivers a sticker chat message; data is base64.
func (p *Peer) SendSticker(data string) error {
	if !p.chat.Allow() {
		return ErrChatThrottled
	}
	return p.sendReliable(protocol.NewStickerChat(p.name, data))
}

// sendReliable delivers m to the counterpart with retries and mirrors it to
// the attached observer, if any. An unreachable observer is detached rather
// than failing the battle.
func (p *Peer) sendReliable(m protocol.Message) error {
	p.mu.Lock()
	dst := p.session.Remote
	observer := p.session.Observer
	p.mu.Unlock()

	if dst == nil {
		return ErrNotInBattle
	}
	primaryErr := p.channel.Send(m, dst)
	// The observer still gets its copy when the counterpart is unreachable;
	// the battle's fate and the observer's feed are independent.
	if observer != nil {
		mirror := maps.Clone(m)
		if err := p.channel.Send(mirror, observer); err != nil {
			p.logger.Warn("observer unreachable, detaching", "error", err)
			p.mu.Lock()
			p.session.Observer = nil
			p.mu.Unlock()
		}
	}
	return primaryErr
}

// sendRaw fires one datagram with no reliability. Handshake and ACK traffic
// uses this path.
func (p *Peer) sendRaw(m protocol.Message, dst *net.UDPAddr) {
	data, err := protocol.Encode(m)
	if err != nil {
		p.logger.Error("encode failed", "type", m.Type(), "error", err)
		return
	}
	if _, err := p.conn.WriteToUDP(data, dst); err != nil {
		p.logger.Error("raw send failed", "type", m.Type(), "error", err)
	}
}

func (p *Peer) announceGameOver(winner, loser string) {
	p.endBattle(winner, loser, true)
}

// endBattle runs the shutdown exactly once, whether the result was computed
// locally or arrived as a GAME_OVER. The observer hears the result either
// way before the socket goes down.
func (p *Peer) endBattle(winner, loser string, announce bool) {
	p.endOnce.Do(func() {
		msg := protocol.NewGameOver(winner, loser)
		p.mu.Lock()
		observer := p.session.Observer
		p.mu.Unlock()

		finish := func() {
			p.sink.BattleEnded(winner, loser)
			p.Close()
		}
		switch {
		case announce:
			if err := p.sendReliable(msg); err != nil {
				p.logger.Warn("game over delivery failed", "error", err)
			}
			finish()
		case observer != nil:
			// An inbound GAME_OVER is handled on the receive loop, which is
			// also the goroutine that reads the relay's ACK. The relay must
			// run off it, and the socket stays open until it lands.
			go func() {
				if err := p.channel.Send(maps.Clone(msg), observer); err != nil {
					p.logger.Warn("game over relay to observer failed", "error", err)
				}
				finish()
			}()
		default:
			finish()
		}
	})
}

func (p *Peer) fatal(reason string) {
	select {
	case <-p.done:
		// Already shut down; late delivery failures are not news.
		return
	default:
	}
	p.logger.Error("session terminated", "reason", reason)
	p.sink.Terminated(reason)
	p.Close()
}

func (p *Peer) fatalErr(reason string, err error) {
	p.fatal(fmt.Sprintf("%s: %v", reason, err))
}
