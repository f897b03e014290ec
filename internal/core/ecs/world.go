package ecs

import (
	"github.com/rotisserie/eris"
)

// World is the top-level ECS container. It owns the entity pool, the component
// registry, typed resources and the deferred command queue flushed by the
// stage pipeline after each stage.
type World struct {
	pool      *EntityPool
	registry  *Registry
	resources *resources
	commands  *Commands
}

func NewWorld() *World {
	return &World{
		pool:      NewEntityPool(),
		registry:  NewRegistry(),
		resources: newResources(),
		commands:  &Commands{queue: make([]Command, 0, 64)},
	}
}

func (w *World) Pool() *EntityPool   { return w.pool }
func (w *World) Registry() *Registry { return w.registry }

// Commands returns the deferred command queue. Systems use it to spawn and
// despawn while iterating stores.
func (w *World) Commands() *Commands { return w.commands }

// Spawn allocates a fresh entity with no components.
func (w *World) Spawn() EntityID {
	return w.pool.Create()
}

func (w *World) Alive(id EntityID) bool {
	return w.pool.Alive(id)
}

// Despawn removes every component of id and retires the id.
func (w *World) Despawn(id EntityID) error {
	if !w.pool.Alive(id) {
		return eris.Wrapf(ErrNoSuchEntity, "despawn entity %d:%d", id.Index(), id.Generation())
	}
	w.registry.RemoveAll(id)
	return w.pool.Destroy(id)
}

// Len returns the number of live entities.
func (w *World) Len() int { return w.pool.Len() }

// FlushCommands applies queued commands in FIFO order. Commands queued by a
// running command are applied in the same flush. A command that fails with
// ErrNoSuchEntity is skipped; any other error stops the flush and drops the
// remaining queue.
func (w *World) FlushCommands() error {
	for len(w.commands.queue) > 0 {
		batch := w.commands.queue
		w.commands.queue = make([]Command, 0, cap(batch))
		for i, cmd := range batch {
			if err := cmd(w); err != nil {
				if eris.Is(err, ErrNoSuchEntity) {
					continue
				}
				w.commands.queue = w.commands.queue[:0]
				return eris.Wrapf(err, "command %d", i)
			}
		}
	}
	return nil
}

// Insert sets component T on a live entity.
func Insert[T any](w *World, id EntityID, c T) error {
	if !w.pool.Alive(id) {
		return eris.Wrapf(ErrNoSuchEntity, "insert %T on entity %d:%d", c, id.Index(), id.Generation())
	}
	Comp[T](w).Insert(id, c)
	return nil
}

// Get returns component T of id, or false when absent.
func Get[T any](w *World, id EntityID) (*T, bool) {
	return Comp[T](w).Get(id)
}

// Has reports whether id carries component T.
func Has[T any](w *World, id EntityID) bool {
	return Comp[T](w).Has(id)
}

// Remove deletes and returns component T of id.
func Remove[T any](w *World, id EntityID) (T, bool) {
	return Comp[T](w).Take(id)
}
