package battle

import (
	"fmt"
	"math"
	"strings"
)

// Calculate runs the shared damage formula both sides must agree on.
//
// The attacking stat (attack or special attack, by move category) is scaled
// by the boost multiplier when the matching boost is active; the defender's
// corresponding defense stat divides it, clamped to at least 1 so glass-cannon
// stat lines cannot divide by zero. The defender's type chart scales the
// result; a zero multiplier means immunity and deals exactly zero, otherwise
// a connecting hit deals at least 1.
func Calculate(attacker, defender *Pokemon, move Move, attackBoost, defenseBoost bool) int {
	var stat, def float64
	if move.Category == CategorySpecial {
		stat = float64(attacker.SpecialAttack)
		def = float64(defender.SpecialDefense)
	} else {
		stat = float64(attacker.Attack)
		def = float64(defender.PhysicalDefense)
	}
	if attackBoost {
		stat *= BoostMultiplier
	}
	if defenseBoost {
		def *= BoostMultiplier
	}
	if def < 1 {
		def = 1
	}

	mult := defender.MultiplierAgainst(move.Type)
	damage := int(math.Round(stat * mult / def))
	if damage < 1 && mult > 0 {
		damage = 1
	}
	if mult == 0 {
		damage = 0
	}
	return damage
}

// StatusText renders the battle log line for an attack, with effectiveness
// flavor based on the defender's type chart.
func StatusText(attackerName string, move Move, multiplier float64) string {
	msg := fmt.Sprintf("%s used %s!", title(attackerName), title(move.Name))
	switch {
	case multiplier == 0:
		msg += " It had no effect..."
	case multiplier > 1:
		msg += " It was super effective!"
	case multiplier < 1:
		msg += " It's not very effective..."
	}
	return msg
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
