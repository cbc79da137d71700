package battle

import (
	"errors"
	"math/rand"
)

// Phase is where one side stands inside the current turn.
type Phase string

const (
	// PhaseAwaitingMove means no turn is in progress on this side.
	PhaseAwaitingMove Phase = "awaiting_move"
	// PhaseResolvingTurn means an attack was announced and the cross-check
	// has not completed yet.
	PhaseResolvingTurn Phase = "resolving_turn"
)

// Default stat boost allowances per battle.
const (
	DefaultSpecialAttackUses  = 5
	DefaultSpecialDefenseUses = 5
)

var (
	ErrNotYourTurn   = errors.New("not your turn")
	ErrWrongPhase    = errors.New("a turn is already resolving")
	ErrNoPendingTurn = errors.New("no pending turn")
	ErrNoOpponent    = errors.New("opponent not set")
	ErrNoBoostsLeft  = errors.New("no boost uses remaining")
	ErrBoostActive   = errors.New("boost already active")
)

// Outcome is one side's independently computed result for the turn in
// flight: the damage dealt and the defender's HP after it lands.
type Outcome struct {
	Damage     int
	DefenderHP int
	Status     string
}

// pendingTurn records the announced attack while both sides compute.
type pendingTurn struct {
	attacker *Pokemon
	defender *Pokemon
	move     Move
}

// Manager drives one side of a battle. It is not safe for concurrent use;
// the owning session serializes access under its own lock.
type Manager struct {
	self     *Pokemon
	opponent *Pokemon
	phase    Phase
	myTurn   bool
	rng      *rand.Rand

	pending *pendingTurn
	myCalc  *Outcome

	attackUses      int
	defenseUses     int
	attackBoostNext bool
	defenseArmed    bool
}

// NewManager sets up one side's battle state. movesFirst is true for the
// acceptor, which owns the opening turn. The seed comes from the handshake so
// both sides share one PRNG stream.
func NewManager(self *Pokemon, seed int64, movesFirst bool) *Manager {
	return &Manager{
		self:        self,
		phase:       PhaseAwaitingMove,
		myTurn:      movesFirst,
		rng:         rand.New(rand.NewSource(seed)),
		attackUses:  DefaultSpecialAttackUses,
		defenseUses: DefaultSpecialDefenseUses,
	}
}

// SetOpponent registers the counterpart's combatant once its battle setup
// arrives.
func (m *Manager) SetOpponent(p *Pokemon) {
	m.opponent = p
}

// Ready reports whether both combatants are known.
func (m *Manager) Ready() bool {
	return m.opponent != nil
}

func (m *Manager) Self() *Pokemon     { return m.self }
func (m *Manager) Opponent() *Pokemon { return m.opponent }
func (m *Manager) Phase() Phase       { return m.phase }
func (m *Manager) IsMyTurn() bool     { return m.myTurn }

// BoostsRemaining returns the unused attack and defense boost counts.
func (m *Manager) BoostsRemaining() (attack, defense int) {
	return m.attackUses, m.defenseUses
}

// UseAttackBoost arms a special attack boost for this side's next attack.
func (m *Manager) UseAttackBoost() error {
	if m.attackBoostNext {
		return ErrBoostActive
	}
	if m.attackUses <= 0 {
		return ErrNoBoostsLeft
	}
	m.attackUses--
	m.attackBoostNext = true
	return nil
}

// ArmDefenseBoost arms a special defense boost. It is consumed by the next
// incoming attack, not by this side's own move.
func (m *Manager) ArmDefenseBoost() error {
	if m.defenseArmed {
		return ErrBoostActive
	}
	if m.defenseUses <= 0 {
		return ErrNoBoostsLeft
	}
	m.defenseUses--
	m.defenseArmed = true
	return nil
}

// BeginAttack validates that this side may move and records the chosen move
// as the pending turn. The returned Move is what gets announced.
func (m *Manager) BeginAttack(moveName string) (Move, error) {
	if !m.Ready() {
		return Move{}, ErrNoOpponent
	}
	if !m.myTurn {
		return Move{}, ErrNotYourTurn
	}
	if m.phase != PhaseAwaitingMove {
		return Move{}, ErrWrongPhase
	}
	mv := m.self.BuildMove(moveName)
	m.pending = &pendingTurn{attacker: m.self, defender: m.opponent, move: mv}
	// The turn is in flight from the announcement on; a second attack before
	// the counterpart answers must not overwrite it.
	m.phase = PhaseResolvingTurn
	return mv, nil
}

// RandomMove picks from this side's move list using the shared PRNG.
func (m *Manager) RandomMove() string {
	if len(m.self.Moves) == 0 {
		return "tackle"
	}
	return m.self.Moves[m.rng.Intn(len(m.self.Moves))].Name
}

// OnAttackAnnounce runs the defender's half of a turn: record the pending
// turn, burn an armed defense boost, and compute this side's prediction of
// the result.
func (m *Manager) OnAttackAnnounce(attackerName, moveName string) (Outcome, error) {
	if !m.Ready() {
		return Outcome{}, ErrNoOpponent
	}
	m.phase = PhaseResolvingTurn

	mv := m.opponent.BuildMove(moveName)
	m.pending = &pendingTurn{attacker: m.opponent, defender: m.self, move: mv}

	defenseBoost := m.defenseArmed
	m.defenseArmed = false

	damage := Calculate(m.opponent, m.self, mv, false, defenseBoost)
	remaining := m.self.CurrentHP - damage
	if remaining < 0 {
		remaining = 0
	}
	out := Outcome{
		Damage:     damage,
		DefenderHP: remaining,
		Status:     StatusText(attackerName, mv, m.self.MultiplierAgainst(mv.Type)),
	}
	m.myCalc = &out
	return out, nil
}

// OnDefenseAnnounce runs the attacker's half: the counterpart has seen the
// attack, so compute this side's prediction, spending an armed attack boost.
func (m *Manager) OnDefenseAnnounce() (Outcome, error) {
	if m.pending == nil || m.pending.attacker != m.self {
		return Outcome{}, ErrNoPendingTurn
	}
	m.phase = PhaseResolvingTurn

	attackBoost := m.attackBoostNext
	m.attackBoostNext = false

	damage := Calculate(m.self, m.opponent, m.pending.move, attackBoost, false)
	remaining := m.opponent.CurrentHP - damage
	if remaining < 0 {
		remaining = 0
	}
	out := Outcome{
		Damage:     damage,
		DefenderHP: remaining,
		Status:     StatusText(m.self.Name, m.pending.move, m.opponent.MultiplierAgainst(m.pending.move.Type)),
	}
	m.myCalc = &out
	return out, nil
}

// PendingAttacker returns the attacking combatant's name for the turn in
// flight.
func (m *Manager) PendingAttacker() (string, bool) {
	if m.pending == nil {
		return "", false
	}
	return m.pending.attacker.Name, true
}

// PendingMove returns the move of the turn in flight.
func (m *Manager) PendingMove() (Move, bool) {
	if m.pending == nil {
		return Move{}, false
	}
	return m.pending.move, true
}

// PendingOutcome returns this side's calculation for the turn in flight.
func (m *Manager) PendingOutcome() (Outcome, bool) {
	if m.myCalc == nil {
		return Outcome{}, false
	}
	return *m.myCalc, true
}

// CrossCheck compares the counterpart's report against this side's own
// calculation. Both the damage and the resulting HP must agree.
func (m *Manager) CrossCheck(damage, defenderHP int) (Outcome, bool, error) {
	if m.myCalc == nil {
		return Outcome{}, false, ErrNoPendingTurn
	}
	match := m.myCalc.Damage == damage && m.myCalc.DefenderHP == defenderHP
	return *m.myCalc, match, nil
}

// Apply commits a turn result to the pending defender's HP. The values may
// be this side's own calculation or the counterpart's, when a resolution
// adopted theirs.
func (m *Manager) Apply(defenderHP int) error {
	if m.pending == nil {
		return ErrNoPendingTurn
	}
	if defenderHP < 0 {
		defenderHP = 0
	}
	m.pending.defender.CurrentHP = defenderHP
	return nil
}

// Winner reports the battle result once a combatant has fainted.
func (m *Manager) Winner() (winner, loser *Pokemon, over bool) {
	if !m.Ready() {
		return nil, nil, false
	}
	if m.self.Fainted() {
		return m.opponent, m.self, true
	}
	if m.opponent.Fainted() {
		return m.self, m.opponent, true
	}
	return nil, nil, false
}

// CommitTurn closes the turn in flight: ownership flips and both sides go
// back to awaiting a move.
func (m *Manager) CommitTurn() {
	m.myTurn = !m.myTurn
	m.pending = nil
	m.myCalc = nil
	m.phase = PhaseAwaitingMove
}
