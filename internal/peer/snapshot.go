package peer

// CombatantStatus is one combatant's health line in a status snapshot.
type CombatantStatus struct {
	Name  string `json:"name"`
	HP    int    `json:"hp"`
	MaxHP int    `json:"max_hp"`
}

// Snapshot is a point-in-time view of the session for the status API.
type Snapshot struct {
	SessionID        string           `json:"session_id"`
	Role             string           `json:"role"`
	Name             string           `json:"name"`
	Remote           string           `json:"remote,omitempty"`
	Phase            string           `json:"phase,omitempty"`
	MyTurn           bool             `json:"my_turn"`
	NextSequence     uint64           `json:"next_sequence"`
	ObserverAttached bool             `json:"observer_attached"`
	AttackBoosts     int              `json:"attack_boosts_remaining"`
	DefenseBoosts    int              `json:"defense_boosts_remaining"`
	Self             *CombatantStatus `json:"self,omitempty"`
	Opponent         *CombatantStatus `json:"opponent,omitempty"`
}

// Snapshot captures the current session state.
func (p *Peer) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Snapshot{
		SessionID:        p.session.ID.String(),
		Role:             p.role,
		Name:             p.name,
		NextSequence:     p.channel.NextSequence(),
		ObserverAttached: p.session.Observer != nil,
	}
	if p.session.Remote != nil {
		s.Remote = p.session.Remote.String()
	}
	if p.manager == nil {
		return s
	}
	s.Phase = string(p.manager.Phase())
	s.MyTurn = p.manager.IsMyTurn()
	s.AttackBoosts, s.DefenseBoosts = p.manager.BoostsRemaining()
	self := p.manager.Self()
	s.Self = &CombatantStatus{Name: self.Name, HP: self.CurrentHP, MaxHP: self.MaxHP}
	if opp := p.manager.Opponent(); opp != nil {
		s.Opponent = &CombatantStatus{Name: opp.Name, HP: opp.CurrentHP, MaxHP: opp.MaxHP}
	}
	return s
}
