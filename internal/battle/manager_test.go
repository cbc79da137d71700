package battle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPair() (host, joiner *Manager) {
	hostMon := &Pokemon{
		Name: "charizard", MaxHP: 78, CurrentHP: 78,
		Attack: 84, SpecialAttack: 100, PhysicalDefense: 78, SpecialDefense: 50,
		PrimaryType: "fire",
	}
	joinerMon := &Pokemon{
		Name: "blastoise", MaxHP: 79, CurrentHP: 79,
		Attack: 83, SpecialAttack: 100, PhysicalDefense: 100, SpecialDefense: 50,
		PrimaryType: "water",
	}

	host = NewManager(hostMon.Clone(), 42, true)
	host.SetOpponent(joinerMon.Clone())
	joiner = NewManager(joinerMon.Clone(), 42, false)
	joiner.SetOpponent(hostMon.Clone())
	return host, joiner
}

// runTurn walks one full announced attack through both managers and returns
// each side's computed outcome.
func runTurn(t *testing.T, attacker, defender *Manager, moveName string) (atk, def Outcome) {
	t.Helper()

	mv, err := attacker.BeginAttack(moveName)
	require.NoError(t, err)

	def, err = defender.OnAttackAnnounce(attacker.Self().Name, mv.Name)
	require.NoError(t, err)

	atk, err = attacker.OnDefenseAnnounce()
	require.NoError(t, err)
	return atk, def
}

func TestTurnAgreement(t *testing.T) {
	host, joiner := newTestPair()

	atk, def := runTurn(t, host, joiner, "flamethrower")
	assert.Equal(t, atk.Damage, def.Damage, "both sides run the same formula")
	assert.Equal(t, atk.DefenderHP, def.DefenderHP)

	// Each side confirms the other's report.
	_, match, err := host.CrossCheck(def.Damage, def.DefenderHP)
	require.NoError(t, err)
	assert.True(t, match)
	_, match, err = joiner.CrossCheck(atk.Damage, atk.DefenderHP)
	require.NoError(t, err)
	assert.True(t, match)

	require.NoError(t, host.Apply(atk.DefenderHP))
	require.NoError(t, joiner.Apply(def.DefenderHP))
	assert.Equal(t, atk.DefenderHP, host.Opponent().CurrentHP)
	assert.Equal(t, def.DefenderHP, joiner.Self().CurrentHP)

	host.CommitTurn()
	joiner.CommitTurn()
	assert.False(t, host.IsMyTurn())
	assert.True(t, joiner.IsMyTurn())
	assert.Equal(t, PhaseAwaitingMove, host.Phase())
	assert.Equal(t, PhaseAwaitingMove, joiner.Phase())
}

func TestDefenseBoostCausesHonestDisagreement(t *testing.T) {
	host, joiner := newTestPair()
	require.NoError(t, joiner.ArmDefenseBoost())

	atk, def := runTurn(t, host, joiner, "flamethrower")

	// The attacker cannot see the armed boost, so its numbers come out
	// higher than the defender's.
	assert.Greater(t, atk.Damage, def.Damage)

	_, match, err := host.CrossCheck(def.Damage, def.DefenderHP)
	require.NoError(t, err)
	assert.False(t, match)

	// Resolution: the host adopts the counterpart's values.
	require.NoError(t, host.Apply(def.DefenderHP))
	assert.Equal(t, def.DefenderHP, host.Opponent().CurrentHP)
}

func TestTurnGuards(t *testing.T) {
	host, joiner := newTestPair()

	t.Run("OutOfTurnAttackRefused", func(t *testing.T) {
		_, err := joiner.BeginAttack("surf")
		assert.ErrorIs(t, err, ErrNotYourTurn)
	})

	t.Run("SecondAttackWhileResolvingRefused", func(t *testing.T) {
		runTurn(t, host, joiner, "flamethrower")
		_, err := host.BeginAttack("flamethrower")
		assert.ErrorIs(t, err, ErrWrongPhase)
	})

	t.Run("ReAttackBeforeDefenseAnswerRefused", func(t *testing.T) {
		fresh, _ := newTestPair()
		_, err := fresh.BeginAttack("flamethrower")
		require.NoError(t, err)
		_, err = fresh.BeginAttack("ember")
		assert.ErrorIs(t, err, ErrWrongPhase)
	})

	t.Run("DefenseAnnounceWithoutAttackRefused", func(t *testing.T) {
		_, fresh := newTestPair()
		_, err := fresh.OnDefenseAnnounce()
		assert.ErrorIs(t, err, ErrNoPendingTurn)
	})

	t.Run("CrossCheckWithoutCalculationRefused", func(t *testing.T) {
		fresh, _ := newTestPair()
		_, _, err := fresh.CrossCheck(5, 10)
		assert.ErrorIs(t, err, ErrNoPendingTurn)
	})

	t.Run("AttackBeforeOpponentKnownRefused", func(t *testing.T) {
		lone := NewManager(&Pokemon{Name: "mew", CurrentHP: 10}, 1, true)
		_, err := lone.BeginAttack("psychic")
		assert.ErrorIs(t, err, ErrNoOpponent)
	})
}

func TestBoostBookkeeping(t *testing.T) {
	host, _ := newTestPair()

	atkLeft, defLeft := host.BoostsRemaining()
	assert.Equal(t, DefaultSpecialAttackUses, atkLeft)
	assert.Equal(t, DefaultSpecialDefenseUses, defLeft)

	require.NoError(t, host.UseAttackBoost())
	assert.ErrorIs(t, host.UseAttackBoost(), ErrBoostActive)

	require.NoError(t, host.ArmDefenseBoost())
	assert.ErrorIs(t, host.ArmDefenseBoost(), ErrBoostActive)

	atkLeft, defLeft = host.BoostsRemaining()
	assert.Equal(t, DefaultSpecialAttackUses-1, atkLeft)
	assert.Equal(t, DefaultSpecialDefenseUses-1, defLeft)
}

func TestAttackBoostAppliesToOneAttackOnly(t *testing.T) {
	host, joiner := newTestPair()

	plain, _ := runTurn(t, host, joiner, "flamethrower")
	host.CommitTurn()
	joiner.CommitTurn()
	runTurn(t, joiner, host, "surf")
	host.CommitTurn()
	joiner.CommitTurn()

	require.NoError(t, host.UseAttackBoost())
	boosted, _ := runTurn(t, host, joiner, "flamethrower")
	assert.Greater(t, boosted.Damage, plain.Damage)
	host.CommitTurn()
	joiner.CommitTurn()
	runTurn(t, joiner, host, "surf")
	host.CommitTurn()
	joiner.CommitTurn()

	again, _ := runTurn(t, host, joiner, "flamethrower")
	assert.Equal(t, plain.Damage, again.Damage, "boost does not linger")
}

func TestBoostExhaustion(t *testing.T) {
	host, joiner := newTestPair()
	for i := 0; i < DefaultSpecialAttackUses; i++ {
		require.NoError(t, host.UseAttackBoost())
		runTurn(t, host, joiner, "flamethrower")
		host.CommitTurn()
		joiner.CommitTurn()
		runTurn(t, joiner, host, "surf")
		host.CommitTurn()
		joiner.CommitTurn()
	}
	assert.ErrorIs(t, host.UseAttackBoost(), ErrNoBoostsLeft)
}

func TestWinnerDetection(t *testing.T) {
	host, joiner := newTestPair()
	runTurn(t, host, joiner, "flamethrower")

	require.NoError(t, host.Apply(0))
	winner, loser, over := host.Winner()
	require.True(t, over)
	assert.Equal(t, host.Self().Name, winner.Name)
	assert.Equal(t, host.Opponent().Name, loser.Name)
}

func TestRandomMoveIsSeedStable(t *testing.T) {
	a := NewManager(&Pokemon{Name: "eevee", Moves: []Move{{Name: "tackle"}, {Name: "swift"}, {Name: "bite"}}}, 7, true)
	b := NewManager(&Pokemon{Name: "eevee", Moves: []Move{{Name: "tackle"}, {Name: "swift"}, {Name: "bite"}}}, 7, false)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.RandomMove(), b.RandomMove())
	}
}
