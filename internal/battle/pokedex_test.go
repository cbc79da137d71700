package battle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestDex(t *testing.T) *Pokedex {
	t.Helper()
	dex, err := LoadPokedex(filepath.Join("testdata", "pokedex.csv"))
	require.NoError(t, err)
	return dex
}

func TestLoadPokedex(t *testing.T) {
	dex := loadTestDex(t)
	assert.Equal(t, 3, dex.Len())
	assert.Equal(t, []string{"Blastoise", "Charizard", "Pikachu"}, dex.Names())
}

func TestLookup(t *testing.T) {
	dex := loadTestDex(t)

	t.Run("ByNameCaseInsensitive", func(t *testing.T) {
		p, ok := dex.Lookup("PIKACHU")
		require.True(t, ok)
		assert.Equal(t, 35, p.MaxHP)
		assert.Equal(t, 35, p.CurrentHP)
		assert.Equal(t, "electric", p.PrimaryType)
	})

	t.Run("ByDexNumber", func(t *testing.T) {
		p, ok := dex.Lookup("6")
		require.True(t, ok)
		assert.Equal(t, "Charizard", p.Name)
		assert.Equal(t, "flying", p.SecondaryType)
	})

	t.Run("UnknownKey", func(t *testing.T) {
		_, ok := dex.Lookup("missingno")
		assert.False(t, ok)
		_, ok = dex.Lookup("999")
		assert.False(t, ok)
	})

	t.Run("ReturnsIndependentCopies", func(t *testing.T) {
		first, ok := dex.Lookup("pikachu")
		require.True(t, ok)
		first.CurrentHP = 1

		second, ok := dex.Lookup("pikachu")
		require.True(t, ok)
		assert.Equal(t, 35, second.CurrentHP, "directory entries stay pristine")
	})
}

func TestTypeChartAndMoves(t *testing.T) {
	dex := loadTestDex(t)
	charizard, ok := dex.Lookup("charizard")
	require.True(t, ok)

	assert.Equal(t, 0.5, charizard.MultiplierAgainst("fire"))
	assert.Equal(t, 2.0, charizard.MultiplierAgainst("water"))
	assert.Equal(t, 0.0, charizard.MultiplierAgainst("ground"))
	assert.Equal(t, 1.0, charizard.MultiplierAgainst("psychic"), "absent column is neutral")

	require.Len(t, charizard.Moves, 2)
	assert.Equal(t, "Flamethrower", charizard.Moves[0].Name)
	assert.Equal(t, CategorySpecial, charizard.Moves[0].Category)
	assert.Equal(t, "fire", charizard.Moves[0].Type)
}

func TestLoadPokedexErrors(t *testing.T) {
	t.Run("MissingFile", func(t *testing.T) {
		_, err := LoadPokedex(filepath.Join("testdata", "nope.csv"))
		assert.Error(t, err)
	})

	t.Run("MissingRequiredColumn", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.csv")
		require.NoError(t, os.WriteFile(path, []byte("name,hp\nPikachu,35\n"), 0o644))
		_, err := LoadPokedex(path)
		assert.ErrorContains(t, err, "missing column")
	})

	t.Run("MalformedStat", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.csv")
		data := "name,hp,attack,defense,sp_attack,sp_defense,type1\nPikachu,lots,55,40,50,50,electric\n"
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
		_, err := LoadPokedex(path)
		assert.Error(t, err)
	})
}
