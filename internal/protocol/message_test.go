package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	t.Run("TypeFirstThenSortedKeys", func(t *testing.T) {
		m := Message{
			FieldType: TypeAttackAnnounce,
			"zebra":   "1",
			"alpha":   "2",
		}
		data, err := Encode(m)
		require.NoError(t, err)

		lines := strings.Split(string(data), "\n")
		assert.Equal(t, "type: ATTACK_ANNOUNCE", lines[0])
		assert.Equal(t, "alpha: 2", lines[1])
		assert.Equal(t, "zebra: 1", lines[2])
	})

	t.Run("MissingTypeIsAnError", func(t *testing.T) {
		_, err := Encode(Message{"move": "tackle"})
		assert.Error(t, err)
	})
}

func TestDecode(t *testing.T) {
	t.Run("SplitsOnFirstColonOnly", func(t *testing.T) {
		raw := "type: CHAT_MESSAGE\ntext: meet at 10:30: ok?"
		m := Decode([]byte(raw))
		assert.Equal(t, TypeChat, m.Type())
		assert.Equal(t, "meet at 10:30: ok?", m[FieldText])
	})

	t.Run("SkipsBlankAndMalformedLines", func(t *testing.T) {
		raw := "type: ACK\n\nnot a field line\nack_number: 7\n"
		m := Decode([]byte(raw))
		assert.Len(t, m, 2)
		assert.Equal(t, "7", m[FieldAckNumber])
	})

	t.Run("MissingTypeStillReturnsFields", func(t *testing.T) {
		m := Decode([]byte("damage_dealt: 12"))
		assert.Equal(t, "", m.Type())
		assert.Equal(t, "12", m[FieldDamageDealt])
	})
}

func TestRoundTrip(t *testing.T) {
	setup := NewBattleSetup("pikachu", BoostAllowance{SpecialAttack: 5, SpecialDefense: 5})
	data, err := Encode(setup)
	require.NoError(t, err)

	decoded := Decode(data)
	assert.Equal(t, TypeBattleSetup, decoded.Type())
	assert.Equal(t, "pikachu", decoded[FieldCombatantName])

	// The JSON boost payload contains colons; the first-colon rule must
	// leave the value intact.
	boosts, err := ParseBoosts(decoded)
	require.NoError(t, err)
	assert.Equal(t, 5, boosts.SpecialAttack)
	assert.Equal(t, 5, boosts.SpecialDefense)
}

func TestFieldAccessors(t *testing.T) {
	m := NewCalculationReport("pikachu", "thunderbolt", 80, 12, 48, "Pikachu used Thunderbolt!")

	dmg, ok := m.Int(FieldDamageDealt)
	require.True(t, ok)
	assert.Equal(t, 12, dmg)

	_, ok = m.Int("missing")
	assert.False(t, ok)

	m[FieldSequence] = "41"
	seq, ok := m.Sequence()
	require.True(t, ok)
	assert.Equal(t, uint64(41), seq)
}

func TestResolutionRequestNamesTheTurn(t *testing.T) {
	m := NewResolutionRequest("pikachu", "thunderbolt", 7, 41)

	assert.Equal(t, TypeResolutionRequest, m.Type())
	assert.Equal(t, "pikachu", m[FieldAttacker])
	assert.Equal(t, "thunderbolt", m[FieldMoveUsed])
	assert.Equal(t, "7", m[FieldDamageDealt])
	assert.Equal(t, "41", m[FieldDefenderHP])
}

func TestAckCarriesAckNumber(t *testing.T) {
	ack := NewAck(9)
	assert.Equal(t, TypeAck, ack.Type())
	assert.Equal(t, "9", ack[FieldAckNumber])
}
