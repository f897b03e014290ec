package ecs

// Command is a deferred world mutation.
type Command func(w *World) error

// Commands queues mutations that must not run while a system iterates a
// store. The pipeline flushes the queue at the end of every stage.
type Commands struct {
	queue []Command
}

func (c *Commands) Add(cmd Command) {
	c.queue = append(c.queue, cmd)
}

// Len returns the number of queued commands.
func (c *Commands) Len() int { return len(c.queue) }

// Spawn queues creation of an entity; build receives the new id and inserts
// its components.
func (c *Commands) Spawn(build func(w *World, id EntityID) error) {
	c.Add(func(w *World) error {
		return build(w, w.Spawn())
	})
}

// Despawn queues removal of id.
func (c *Commands) Despawn(id EntityID) {
	c.Add(func(w *World) error {
		return w.Despawn(id)
	})
}

// InsertLater queues an insert of component v on id.
func InsertLater[T any](c *Commands, id EntityID, v T) {
	c.Add(func(w *World) error {
		return Insert(w, id, v)
	})
}

// RemoveLater queues removal of component T from id.
func RemoveLater[T any](c *Commands, id EntityID) {
	c.Add(func(w *World) error {
		Remove[T](w, id)
		return nil
	})
}

// Discard drops every queued command without applying it.
func (c *Commands) Discard() {
	c.queue = c.queue[:0]
}
