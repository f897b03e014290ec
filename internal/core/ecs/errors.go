package ecs

import "github.com/rotisserie/eris"

var (
	// ErrNoSuchEntity is returned when an operation names a despawned or
	// never-spawned entity. Callers usually treat it as a no-op: resimulation
	// legitimately revisits entities that no longer exist.
	ErrNoSuchEntity = eris.New("no such entity")

	// ErrSnapshotRestoreMismatch is returned when a snapshot's component or
	// resource set differs from the live world's registrations. The live
	// world is left untouched.
	ErrSnapshotRestoreMismatch = eris.New("snapshot does not match world registrations")
)
