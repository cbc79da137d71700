package protocol

// factory.go = constructors that stamp the per-type field sets.

import (
	"encoding/json"
	"strconv"

	"github.com/google/uuid"
)

// BoostAllowance advertises how many stat boosts each side may spend. It is
// carried inside BATTLE_SETUP as a JSON object so the value itself contains
// colons, which the first-colon decode rule must leave intact.
type BoostAllowance struct {
	SpecialAttack  int `json:"special_attack"`
	SpecialDefense int `json:"special_defense"`
}

// NewConnectRequest opens a handshake from an initiator.
func NewConnectRequest(sender string) Message {
	return Message{
		FieldType:   TypeConnectRequest,
		FieldSender: sender,
	}
}

// NewConnectAccept answers a handshake and shares the battle seed.
func NewConnectAccept(sender string, seed int64) Message {
	return Message{
		FieldType:   TypeConnectAccept,
		FieldSender: sender,
		FieldSeed:   strconv.FormatInt(seed, 10),
	}
}

// NewObserverRequest asks the acceptor for a read-only attachment.
func NewObserverRequest(sender string) Message {
	return Message{
		FieldType:   TypeObserverRequest,
		FieldSender: sender,
	}
}

// NewObserverAccept confirms an observer attachment. No seed is shared;
// observers never take part in randomized decisions.
func NewObserverAccept(sender string) Message {
	return Message{
		FieldType:   TypeObserverAccept,
		FieldSender: sender,
	}
}

// NewObserverReject turns an observer away, carrying the reason.
func NewObserverReject(sender, reason string) Message {
	return Message{
		FieldType:   TypeObserverReject,
		FieldSender: sender,
		FieldReason: reason,
	}
}

// NewBattleSetup announces the chosen combatant and boost allowance.
func NewBattleSetup(combatant string, boosts BoostAllowance) Message {
	raw, _ := json.Marshal(boosts)
	return Message{
		FieldType:          TypeBattleSetup,
		FieldCombatantName: combatant,
		FieldStatBoosts:    string(raw),
	}
}

// ParseBoosts reads the boost allowance back out of a BATTLE_SETUP message.
func ParseBoosts(m Message) (BoostAllowance, error) {
	var b BoostAllowance
	err := json.Unmarshal([]byte(m[FieldStatBoosts]), &b)
	return b, err
}

// NewAttackAnnounce declares the turn owner's move.
func NewAttackAnnounce(attacker, move string) Message {
	return Message{
		FieldType:     TypeAttackAnnounce,
		FieldAttacker: attacker,
		FieldMove:     move,
	}
}

// NewDefenseAnnounce acknowledges an incoming attack before numbers are swapped.
func NewDefenseAnnounce(defender string) Message {
	return Message{
		FieldType:     TypeDefenseAnnounce,
		FieldDefender: defender,
	}
}

// NewCalculationReport publishes one side's independently computed turn result.
func NewCalculationReport(attacker, move string, attackerHP, damage, defenderHP int, status string) Message {
	return Message{
		FieldType:          TypeCalculationReport,
		FieldAttacker:      attacker,
		FieldMoveUsed:      move,
		FieldAttackerHP:    strconv.Itoa(attackerHP),
		FieldDamageDealt:   strconv.Itoa(damage),
		FieldDefenderHP:    strconv.Itoa(defenderHP),
		FieldStatusMessage: status,
	}
}

// NewCalculationConfirm signals that both reports agreed.
func NewCalculationConfirm(sender string) Message {
	return Message{
		FieldType:   TypeCalculationConfirm,
		FieldSender: sender,
	}
}

// NewResolutionRequest asks the counterpart to adopt the sender's values after
// a cross-check mismatch. It names the turn it resolves by attacker and move.
func NewResolutionRequest(attacker, moveUsed string, damage, defenderHP int) Message {
	return Message{
		FieldType:        TypeResolutionRequest,
		FieldAttacker:    attacker,
		FieldMoveUsed:    moveUsed,
		FieldDamageDealt: strconv.Itoa(damage),
		FieldDefenderHP:  strconv.Itoa(defenderHP),
	}
}

// NewGameOver ends the battle.
func NewGameOver(winner, loser string) Message {
	return Message{
		FieldType:   TypeGameOver,
		FieldWinner: winner,
		FieldLoser:  loser,
	}
}

// NewTextChat builds a plain text chat line.
func NewTextChat(sender, text string) Message {
	return Message{
		FieldType:        TypeChat,
		FieldMessageID:   uuid.NewString(),
		FieldSender:      sender,
		FieldContentType: ContentText,
		FieldText:        text,
	}
}

// NewStickerChat builds a sticker chat message; data is the base64 payload.
func NewStickerChat(sender, data string) Message {
	return Message{
		FieldType:        TypeChat,
		FieldMessageID:   uuid.NewString(),
		FieldSender:      sender,
		FieldContentType: ContentSticker,
		FieldStickerData: data,
	}
}

// NewAck acknowledges one sequenced datagram.
func NewAck(seq uint64) Message {
	return Message{
		FieldType:      TypeAck,
		FieldAckNumber: strconv.FormatUint(seq, 10),
	}
}
