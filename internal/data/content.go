package data

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// GameMeta holds match-wide physics and rule tunables. Velocities are in
// units per second, durations in ticks. The y axis points up.
type GameMeta struct {
	Gravity          float64 `yaml:"gravity"`
	TerminalVelocity float64 `yaml:"terminal_velocity"`
	RespawnTicks     uint64  `yaml:"respawn_ticks"`
	RagdollPopSpeed  float64 `yaml:"ragdoll_pop_speed"`
	ThrowSpeedScale  float64 `yaml:"throw_speed_scale"`
	GrabRange        float64 `yaml:"grab_range"` // reach past the body on the facing side
}

// DefaultGameMeta returns the tunables used when game.yaml is absent.
func DefaultGameMeta() GameMeta {
	return GameMeta{
		Gravity:          900,
		TerminalVelocity: 600,
		RespawnTicks:     90,
		RagdollPopSpeed:  180,
		ThrowSpeedScale:  1,
		GrabRange:        24,
	}
}

// Content aggregates every table the simulation reads. It is loaded once
// and shared read-only between sessions.
type Content struct {
	Game    GameMeta
	Players *PlayerTable
	Items   *ItemTable
	Maps    *MapTable
}

// LoadContent reads players.yaml, items.yaml, maps.yaml and the optional
// game.yaml from dir.
func LoadContent(dir string) (*Content, error) {
	players, err := LoadPlayerTable(filepath.Join(dir, "players.yaml"))
	if err != nil {
		return nil, fmt.Errorf("load players: %w", err)
	}
	items, err := LoadItemTable(filepath.Join(dir, "items.yaml"))
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	maps, err := LoadMapTable(filepath.Join(dir, "maps.yaml"))
	if err != nil {
		return nil, fmt.Errorf("load maps: %w", err)
	}
	game, err := loadGameMeta(filepath.Join(dir, "game.yaml"))
	if err != nil {
		return nil, fmt.Errorf("load game: %w", err)
	}
	return &Content{Game: game, Players: players, Items: items, Maps: maps}, nil
}

func loadGameMeta(path string) (GameMeta, error) {
	g := DefaultGameMeta()
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return g, nil
	}
	if err != nil {
		return g, err
	}
	if err := yaml.Unmarshal(raw, &g); err != nil {
		return g, fmt.Errorf("parse %s: %w", path, err)
	}
	return g, nil
}
