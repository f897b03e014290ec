package component

import (
	"github.com/jumpgo/server/internal/core/ecs"
	"github.com/jumpgo/server/internal/data"
)

// StateID names a player state. Built-in ids are below; content may register
// more under its own prefix.
type StateID string

const (
	StateIdle          StateID = "core::idle"
	StateWalk          StateID = "core::walk"
	StateCrouch        StateID = "core::crouch"
	StateMidair        StateID = "core::midair"
	StateDead          StateID = "core::dead"
	StateIncapacitated StateID = "core::incapacitated"
)

// PlayerState is the per-player state machine slot. Age counts ticks spent
// in Current and resets on every transition.
type PlayerState struct {
	Current StateID
	Last    StateID
	Age     uint64
}

// PlayerIdx is the player's slot in MatchInputs.
type PlayerIdx int

// PlayerHandles selects the content used by a player.
type PlayerHandles struct {
	Player data.PlayerHandle
	Hat    data.HatHandle
}

// Inventory holds the item entity a player carries, or ecs.NoEntity.
type Inventory struct {
	Item ecs.EntityID
}

// PlayerKilled marks a player for the dead state.
type PlayerKilled struct {
	By ecs.EntityID
}

// Incapacitated knocks a player into a ragdoll for Ticks ticks.
type Incapacitated struct {
	Ticks int
}

// Sprite is the renderer-facing animation state.
type Sprite struct {
	Animation string
	FlipX     bool
}
