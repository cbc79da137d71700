package protocol

// message.go = plain-text wire codec shared by every peer role.

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

// Message type values carried in the "type" field.
const (
	TypeConnectRequest     = "CONNECT_REQUEST"
	TypeConnectAccept      = "CONNECT_ACCEPT"
	TypeObserverRequest    = "OBSERVER_REQUEST"
	TypeObserverAccept     = "OBSERVER_ACCEPT"
	TypeObserverReject     = "OBSERVER_REJECT"
	TypeBattleSetup        = "BATTLE_SETUP"
	TypeAttackAnnounce     = "ATTACK_ANNOUNCE"
	TypeDefenseAnnounce    = "DEFENSE_ANNOUNCE"
	TypeCalculationReport  = "CALCULATION_REPORT"
	TypeCalculationConfirm = "CALCULATION_CONFIRM"
	TypeResolutionRequest  = "RESOLUTION_REQUEST"
	TypeGameOver           = "GAME_OVER"
	TypeChat               = "CHAT_MESSAGE"
	TypeAck                = "ACK"
)

// Well-known field keys.
const (
	FieldType          = "type"
	FieldSequence      = "sequence"
	FieldAckNumber     = "ack_number"
	FieldSeed          = "seed"
	FieldSender        = "sender"
	FieldCombatantName = "combatant_name"
	FieldStatBoosts    = "stat_boosts"
	FieldMove          = "move"
	FieldAttacker      = "attacker"
	FieldDefender      = "defender"
	FieldMoveUsed      = "move_used"
	FieldAttackerHP    = "attacker_remaining_health"
	FieldDamageDealt   = "damage_dealt"
	FieldDefenderHP    = "defender_hp_remaining"
	FieldStatusMessage = "status_message"
	FieldWinner        = "winner"
	FieldLoser         = "loser"
	FieldContentType   = "content_type"
	FieldText          = "text"
	FieldStickerData   = "sticker_data"
	FieldMessageID     = "message_id"
	FieldReason        = "reason"
)

// Chat content types.
const (
	ContentText    = "text"
	ContentSticker = "sticker"
)

// Message is one protocol datagram: a flat set of string fields keyed by name.
// The "type" field routes the message; everything else is type-specific.
type Message map[string]string

// Type returns the message type, or "" when the field is absent.
func (m Message) Type() string {
	return m[FieldType]
}

// Int parses an integer field. The second return reports whether the field
// was present and well-formed.
func (m Message) Int(key string) (int, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Int64 parses a 64-bit integer field.
func (m Message) Int64(key string) (int64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Sequence returns the reliability sequence number, if the message carries one.
func (m Message) Sequence() (uint64, bool) {
	v, ok := m[FieldSequence]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Encode serializes a message as newline-delimited "key: value" lines.
// The type field is emitted first, the rest in sorted key order so output is
// deterministic. A message without a type cannot be routed and is refused.
func Encode(m Message) ([]byte, error) {
	if m.Type() == "" {
		return nil, fmt.Errorf("encode: message has no %s field", FieldType)
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		if k == FieldType {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(FieldType)
	b.WriteString(": ")
	b.WriteString(m[FieldType])
	for _, k := range keys {
		b.WriteByte('\n')
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(m[k])
	}
	return []byte(b.String()), nil
}

// Decode parses a datagram back into a Message. Malformed lines (blank, or
// missing a colon) are skipped. The key is everything before the first colon;
// the value keeps any further colons intact. A missing type field is logged
// but not fatal; dispatch drops untyped messages later.
func Decode(data []byte) Message {
	m := Message{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		m[key] = value
	}
	if m.Type() == "" {
		slog.Warn("decoded message has no type field", "fields", len(m))
	}
	return m
}
