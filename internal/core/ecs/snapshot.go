package ecs

import (
	"bytes"
	"hash/fnv"

	"github.com/rotisserie/eris"
	"github.com/vmihailenco/msgpack/v5"
)

// Snapshot is an immutable copy of a World's entity pool, every registered
// component store and every rollback resource. It shares no memory with the
// world it was taken from.
type Snapshot struct {
	pool       poolState
	storeNames []string
	stores     []any
	resNames   []string
	resources  []any
}

// Snapshot deep-copies the world. It never mutates live state.
func (w *World) Snapshot() *Snapshot {
	s := &Snapshot{
		pool:       w.pool.save(),
		storeNames: make([]string, len(w.registry.stores)),
		stores:     make([]any, len(w.registry.stores)),
	}
	for i, st := range w.registry.stores {
		s.storeNames[i] = st.Name()
		s.stores[i] = st.save()
	}
	for _, slot := range w.resources.rollbackSlots() {
		s.resNames = append(s.resNames, slot.name)
		s.resources = append(s.resources, slot.save())
	}
	return s
}

// Restore replaces the world's pool, stores and rollback resources with the
// snapshot's contents. Entities and components absent from the snapshot are
// gone afterwards. The registration sets are checked before anything is
// written, so a mismatch leaves the world as it was. Queued commands are
// dropped: they belonged to the timeline being discarded.
func (w *World) Restore(s *Snapshot) error {
	if s == nil {
		return eris.Wrap(ErrSnapshotRestoreMismatch, "nil snapshot")
	}
	if len(s.stores) != len(w.registry.stores) {
		return eris.Wrapf(ErrSnapshotRestoreMismatch, "snapshot has %d component stores, world has %d",
			len(s.stores), len(w.registry.stores))
	}
	for i, st := range w.registry.stores {
		if s.storeNames[i] != st.Name() || !st.accepts(s.stores[i]) {
			return eris.Wrapf(ErrSnapshotRestoreMismatch, "component %d: snapshot %s, world %s",
				i, s.storeNames[i], st.Name())
		}
	}
	slots := w.resources.rollbackSlots()
	if len(slots) != len(s.resources) {
		return eris.Wrapf(ErrSnapshotRestoreMismatch, "snapshot has %d rollback resources, world has %d",
			len(s.resources), len(slots))
	}
	for i, slot := range slots {
		if s.resNames[i] != slot.name || !slot.accepts(s.resources[i]) {
			return eris.Wrapf(ErrSnapshotRestoreMismatch, "resource %d: snapshot %s, world %s",
				i, s.resNames[i], slot.name)
		}
	}

	w.pool.load(s.pool)
	for i, st := range w.registry.stores {
		st.load(s.stores[i])
	}
	for i, slot := range slots {
		slot.load(s.resources[i])
	}
	w.commands.Discard()
	return nil
}

// Encode serializes the snapshot with msgpack. Stores hold slices only, so
// the encoding is canonical: equal snapshots encode to equal bytes.
func (s *Snapshot) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(s.pool); err != nil {
		return nil, eris.Wrap(err, "encode entity pool")
	}
	for i, st := range s.stores {
		if err := enc.EncodeString(s.storeNames[i]); err != nil {
			return nil, eris.Wrapf(err, "encode store name %s", s.storeNames[i])
		}
		if err := enc.Encode(st); err != nil {
			return nil, eris.Wrapf(err, "encode store %s", s.storeNames[i])
		}
	}
	for i, r := range s.resources {
		if err := enc.EncodeString(s.resNames[i]); err != nil {
			return nil, eris.Wrapf(err, "encode resource name %s", s.resNames[i])
		}
		if err := enc.Encode(r); err != nil {
			return nil, eris.Wrapf(err, "encode resource %s", s.resNames[i])
		}
	}
	return buf.Bytes(), nil
}

// Checksum hashes the encoded snapshot with FNV-1a. Peers compare checksums
// of confirmed ticks to detect desyncs.
func (s *Snapshot) Checksum() (uint64, error) {
	b, err := s.Encode()
	if err != nil {
		return 0, err
	}
	h := fnv.New64a()
	h.Write(b)
	return h.Sum64(), nil
}
