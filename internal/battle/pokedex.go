package battle

// pokedex.go = CSV-backed combatant directory. Rows are keyed both by
// lowercase name and by dex number; lookups hand out clones so a battle
// never mutates the directory.

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Pokedex is the loaded combatant directory.
type Pokedex struct {
	byName   map[string]*Pokemon
	byNumber map[int]*Pokemon
}

// LoadPokedex reads a combatant directory from a CSV file. The header row
// names the columns; stat columns are required, against_* columns feed the
// type chart and the abilities column becomes the move list.
func LoadPokedex(path string) (*Pokedex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pokedex: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read pokedex: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("pokedex %s has no data rows", path)
	}

	col := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, required := range []string{"name", "hp", "attack", "defense", "sp_attack", "sp_defense", "type1"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("pokedex %s missing column %q", path, required)
		}
	}

	dex := &Pokedex{
		byName:   make(map[string]*Pokemon),
		byNumber: make(map[int]*Pokemon),
	}
	for i, row := range rows[1:] {
		p, err := parseRow(col, row)
		if err != nil {
			return nil, fmt.Errorf("pokedex row %d: %w", i+2, err)
		}
		dex.byName[strings.ToLower(p.Name)] = p
		if p.Number > 0 {
			dex.byNumber[p.Number] = p
		}
	}
	return dex, nil
}

func parseRow(col map[string]int, row []string) (*Pokemon, error) {
	field := func(name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	intField := func(name string) (int, error) {
		v := field(name)
		if v == "" {
			return 0, nil
		}
		return strconv.Atoi(v)
	}

	name := field("name")
	if name == "" {
		return nil, fmt.Errorf("row has no name")
	}

	p := &Pokemon{
		Name:            name,
		PrimaryType:     strings.ToLower(field("type1")),
		SecondaryType:   strings.ToLower(field("type2")),
		TypeMultipliers: map[string]float64{},
	}

	var err error
	if p.Number, err = intField("pokedex_number"); err != nil {
		return nil, fmt.Errorf("pokedex_number: %w", err)
	}
	if p.MaxHP, err = intField("hp"); err != nil {
		return nil, fmt.Errorf("hp: %w", err)
	}
	p.CurrentHP = p.MaxHP
	if p.Attack, err = intField("attack"); err != nil {
		return nil, fmt.Errorf("attack: %w", err)
	}
	if p.PhysicalDefense, err = intField("defense"); err != nil {
		return nil, fmt.Errorf("defense: %w", err)
	}
	if p.SpecialAttack, err = intField("sp_attack"); err != nil {
		return nil, fmt.Errorf("sp_attack: %w", err)
	}
	if p.SpecialDefense, err = intField("sp_defense"); err != nil {
		return nil, fmt.Errorf("sp_defense: %w", err)
	}

	for colName, idx := range col {
		if !strings.HasPrefix(colName, "against_") || idx >= len(row) {
			continue
		}
		v := strings.TrimSpace(row[idx])
		if v == "" {
			continue
		}
		mult, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", colName, err)
		}
		p.TypeMultipliers[strings.TrimPrefix(colName, "against_")] = mult
	}

	for _, moveName := range parseMoveList(field("abilities")) {
		p.Moves = append(p.Moves, Move{
			Name:      moveName,
			BasePower: DefaultBasePower,
			Category:  CategoryForType(p.PrimaryType),
			Type:      p.PrimaryType,
		})
	}
	return p, nil
}

// parseMoveList accepts either a bare comma-separated list or the bracketed
// quoted form some datasets export, e.g. ['Overgrow', 'Chlorophyll'].
func parseMoveList(raw string) []string {
	raw = strings.Trim(raw, "[]")
	if raw == "" {
		return nil
	}
	var moves []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.Trim(strings.TrimSpace(part), `'"`)
		if part != "" {
			moves = append(moves, part)
		}
	}
	return moves
}

// Lookup resolves a combatant by name (case-insensitive) or dex number and
// returns a fresh copy ready to battle.
func (d *Pokedex) Lookup(key string) (*Pokemon, bool) {
	key = strings.TrimSpace(key)
	if n, err := strconv.Atoi(key); err == nil {
		if p, ok := d.byNumber[n]; ok {
			return p.Clone(), true
		}
		return nil, false
	}
	if p, ok := d.byName[strings.ToLower(key)]; ok {
		return p.Clone(), true
	}
	return nil, false
}

// Names lists every combatant in sorted order, for selection menus.
func (d *Pokedex) Names() []string {
	names := make([]string, 0, len(d.byName))
	for _, p := range d.byName {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

// Len reports how many combatants are loaded.
func (d *Pokedex) Len() int {
	return len(d.byName)
}
