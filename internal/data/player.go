package data

import (
	"fmt"
	"os"

	"github.com/jumpgo/server/internal/geom"
	"gopkg.in/yaml.v3"
)

// SoundHandle names a sound asset. The simulation only passes it along in
// PlaySound events; the audio collaborator resolves it.
type SoundHandle string

// PlayerHandle indexes PlayerTable. The zero handle resolves to the first
// entry so unset input slots still simulate.
type PlayerHandle int32

// HatHandle indexes hat cosmetics. Hats carry no simulation data.
type HatHandle int32

// PlayerStats are per-character movement tunables. Speeds are in units per
// second; Slowdown and AccelAirSpeed are velocity changes per tick.
type PlayerStats struct {
	WalkSpeed     float64 `yaml:"walk_speed"`
	JumpSpeed     float64 `yaml:"jump_speed"`
	SlowFallSpeed float64 `yaml:"slow_fall_speed"`
	AirSpeed      float64 `yaml:"air_speed"`
	AccelAirSpeed float64 `yaml:"accel_air_speed"`
	Slowdown      float64 `yaml:"slowdown"`
}

type PlayerSounds struct {
	Jump        SoundHandle `yaml:"jump"`
	JumpVolume  float64     `yaml:"jump_volume"`
	Land        SoundHandle `yaml:"land"`
	LandVolume  float64     `yaml:"land_volume"`
	Grab        SoundHandle `yaml:"grab"`
	GrabVolume  float64     `yaml:"grab_volume"`
	Drop        SoundHandle `yaml:"drop"`
	DropVolume  float64     `yaml:"drop_volume"`
	Death       SoundHandle `yaml:"death"`
	DeathVolume float64     `yaml:"death_volume"`
}

// PlayerMeta describes one playable character.
type PlayerMeta struct {
	Name          string       `yaml:"name"`
	Stats         PlayerStats  `yaml:"stats"`
	BodySize      geom.Vec2    `yaml:"body_size"`
	SlideBodySize geom.Vec2    `yaml:"slide_body_size"`
	Sounds        PlayerSounds `yaml:"sounds"`
}

type playerListFile struct {
	Players []PlayerMeta `yaml:"players"`
}

// PlayerTable holds character metadata in file order; handle n is entry n.
type PlayerTable struct {
	players []PlayerMeta
	byName  map[string]PlayerHandle
}

// NewPlayerTable builds a table from in-memory metadata.
func NewPlayerTable(players ...PlayerMeta) *PlayerTable {
	t := &PlayerTable{
		players: append([]PlayerMeta(nil), players...),
		byName:  make(map[string]PlayerHandle, len(players)),
	}
	for i, p := range t.players {
		t.byName[p.Name] = PlayerHandle(i)
	}
	return t
}

// Get returns the metadata for h, falling back to the first entry.
func (t *PlayerTable) Get(h PlayerHandle) *PlayerMeta {
	if int(h) < 0 || int(h) >= len(t.players) {
		return &t.players[0]
	}
	return &t.players[h]
}

// Lookup finds a handle by character name.
func (t *PlayerTable) Lookup(name string) (PlayerHandle, bool) {
	h, ok := t.byName[name]
	return h, ok
}

// Count returns the number of characters.
func (t *PlayerTable) Count() int {
	return len(t.players)
}

// LoadPlayerTable loads character metadata from a YAML file.
func LoadPlayerTable(path string) (*PlayerTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read player list: %w", err)
	}
	var f playerListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse player list: %w", err)
	}
	if len(f.Players) == 0 {
		return nil, fmt.Errorf("player list %s is empty", path)
	}
	return NewPlayerTable(f.Players...), nil
}
