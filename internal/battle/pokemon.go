// Package battle holds the combatant model, the damage arithmetic and the
// turn-by-turn state machine. Nothing in here touches the network; peers
// translate between protocol messages and these types.
package battle

import "strings"

// Move categories.
const (
	CategoryPhysical = "physical"
	CategorySpecial  = "special"
)

// DefaultBasePower is used when a move name is not in the attacker's list.
const DefaultBasePower = 50

// BoostMultiplier scales the relevant stat while a boost is active.
const BoostMultiplier = 1.5

// Elemental types that attack physically. Everything else hits the special
// defense stat.
var physicalTypes = map[string]bool{
	"normal":   true,
	"fighting": true,
	"flying":   true,
	"poison":   true,
	"ground":   true,
	"rock":     true,
	"bug":      true,
	"ghost":    true,
	"steel":    true,
}

var specialTypes = map[string]bool{
	"fire":     true,
	"water":    true,
	"grass":    true,
	"electric": true,
	"psychic":  true,
	"ice":      true,
	"dragon":   true,
	"dark":     true,
	"fairy":    true,
}

// CategoryForType maps an elemental type to its attack category. Unknown
// types fall back to physical.
func CategoryForType(elemental string) string {
	if specialTypes[strings.ToLower(elemental)] {
		return CategorySpecial
	}
	return CategoryPhysical
}

// Move is one attack option.
type Move struct {
	Name      string
	BasePower int
	Category  string
	Type      string
}

// Pokemon is one battle combatant. TypeMultipliers maps an attacking
// elemental type to the damage factor this combatant takes from it; absent
// entries mean neutral damage.
type Pokemon struct {
	Name            string
	Number          int
	MaxHP           int
	CurrentHP       int
	Attack          int
	SpecialAttack   int
	PhysicalDefense int
	SpecialDefense  int
	PrimaryType     string
	SecondaryType   string
	TypeMultipliers map[string]float64
	Moves           []Move
}

// MultiplierAgainst returns the damage factor this combatant takes from the
// given elemental type, defaulting to neutral.
func (p *Pokemon) MultiplierAgainst(elemental string) float64 {
	if m, ok := p.TypeMultipliers[strings.ToLower(elemental)]; ok {
		return m
	}
	return 1.0
}

// BuildMove resolves a move name against this combatant's move list. The
// category and elemental type always derive from the combatant's primary
// type; an unlisted name gets the default base power.
func (p *Pokemon) BuildMove(name string) Move {
	elemental := strings.ToLower(p.PrimaryType)
	for _, mv := range p.Moves {
		if strings.EqualFold(mv.Name, name) {
			return Move{
				Name:      mv.Name,
				BasePower: mv.BasePower,
				Category:  CategoryForType(elemental),
				Type:      elemental,
			}
		}
	}
	return Move{
		Name:      name,
		BasePower: DefaultBasePower,
		Category:  CategoryForType(elemental),
		Type:      elemental,
	}
}

// Fainted reports whether this combatant is out of the battle.
func (p *Pokemon) Fainted() bool {
	return p.CurrentHP <= 0
}

// Clone returns an independent copy safe to mutate during a battle.
func (p *Pokemon) Clone() *Pokemon {
	cp := *p
	cp.TypeMultipliers = make(map[string]float64, len(p.TypeMultipliers))
	for k, v := range p.TypeMultipliers {
		cp.TypeMultipliers[k] = v
	}
	cp.Moves = append([]Move(nil), p.Moves...)
	return &cp
}
