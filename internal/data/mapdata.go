package data

import (
	"fmt"
	"os"

	"github.com/jumpgo/server/internal/geom"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ErrNoPlayerSpawns rejects a map players could never be placed on.
var ErrNoPlayerSpawns = eris.New("no player spawns")

// SolidMeta is one piece of static level geometry. Platforms only block
// bodies falling onto them from above.
type SolidMeta struct {
	Pos      geom.Vec2 `yaml:"pos"`
	Size     geom.Vec2 `yaml:"size"`
	Platform bool      `yaml:"platform"`
}

// ItemSpawn places an item by name when the map loads.
type ItemSpawn struct {
	Item string    `yaml:"item"`
	Pos  geom.Vec2 `yaml:"pos"`
}

// MapMeta is a playable level.
type MapMeta struct {
	Name         string      `yaml:"name"`
	Solids       []SolidMeta `yaml:"solids"`
	PlayerSpawns []geom.Vec2 `yaml:"player_spawns"`
	Items        []ItemSpawn `yaml:"items"`
}

type mapListFile struct {
	Maps []MapMeta `yaml:"maps"`
}

// MapTable provides level lookups by name.
type MapTable struct {
	maps   []MapMeta
	byName map[string]int
}

// NewMapTable indexes maps by name. Every map needs a player spawn.
func NewMapTable(maps ...MapMeta) (*MapTable, error) {
	t := &MapTable{
		maps:   append([]MapMeta(nil), maps...),
		byName: make(map[string]int, len(maps)),
	}
	for i, m := range t.maps {
		if len(m.PlayerSpawns) == 0 {
			return nil, eris.Wrapf(ErrNoPlayerSpawns, "map %q", m.Name)
		}
		t.byName[m.Name] = i
	}
	return t, nil
}

// Get returns the map called name.
func (t *MapTable) Get(name string) (*MapMeta, bool) {
	i, ok := t.byName[name]
	if !ok {
		return nil, false
	}
	return &t.maps[i], true
}

// Count returns the number of maps.
func (t *MapTable) Count() int {
	return len(t.maps)
}

// LoadMapTable loads level definitions from a YAML file.
func LoadMapTable(path string) (*MapTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read map list %s: %w", path, err)
	}
	var f mapListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse map list: %w", err)
	}
	t, err := NewMapTable(f.Maps...)
	if err != nil {
		return nil, fmt.Errorf("load map list %s: %w", path, err)
	}
	return t, nil
}
