package ecs

import "github.com/rotisserie/eris"

// EntityID encodes a 32-bit index in the lower bits and a 32-bit generation
// in the upper bits. Generation increments on destroy to invalidate stale refs.
// Generations start at 1, so the zero EntityID never names a live entity.
type EntityID uint64

// NoEntity is the zero id, used by components that may reference nothing.
const NoEntity EntityID = 0

func NewEntityID(index uint32, generation uint32) EntityID {
	return EntityID(uint64(generation)<<32 | uint64(index))
}

func (id EntityID) Index() uint32      { return uint32(id) }
func (id EntityID) Generation() uint32 { return uint32(id >> 32) }
func (id EntityID) IsZero() bool       { return id == 0 }

// EntityPool manages entity allocation with generational indices and a free list.
type EntityPool struct {
	generations []uint32
	freeList    []uint32
	nextIndex   uint32
	alive       int
}

func NewEntityPool() *EntityPool {
	return &EntityPool{
		generations: make([]uint32, 0, 1024),
		freeList:    make([]uint32, 0, 256),
	}
}

func (p *EntityPool) Create() EntityID {
	p.alive++
	if len(p.freeList) > 0 {
		idx := p.freeList[len(p.freeList)-1]
		p.freeList = p.freeList[:len(p.freeList)-1]
		return NewEntityID(idx, p.generations[idx])
	}
	idx := p.nextIndex
	p.nextIndex++
	if int(idx) >= len(p.generations) {
		p.generations = append(p.generations, 1)
	}
	return NewEntityID(idx, p.generations[idx])
}

func (p *EntityPool) Alive(id EntityID) bool {
	idx := id.Index()
	if id.IsZero() || idx >= p.nextIndex {
		return false
	}
	return p.generations[idx] == id.Generation()
}

// Destroy retires id. The index goes back on the free list with a bumped
// generation, so a later Create never hands out an id equal to id.
func (p *EntityPool) Destroy(id EntityID) error {
	if !p.Alive(id) {
		return eris.Wrapf(ErrNoSuchEntity, "destroy entity %d:%d", id.Index(), id.Generation())
	}
	idx := id.Index()
	p.generations[idx]++
	if p.generations[idx] == 0 {
		p.generations[idx] = 1
	}
	p.freeList = append(p.freeList, idx)
	p.alive--
	return nil
}

// Len returns the number of live entities.
func (p *EntityPool) Len() int { return p.alive }

// poolState is the copyable form of an EntityPool captured by snapshots.
type poolState struct {
	Generations []uint32
	FreeList    []uint32
	NextIndex   uint32
	Alive       int
}

func (p *EntityPool) save() poolState {
	return poolState{
		Generations: append([]uint32(nil), p.generations[:p.nextIndex]...),
		FreeList:    append([]uint32(nil), p.freeList...),
		NextIndex:   p.nextIndex,
		Alive:       p.alive,
	}
}

func (p *EntityPool) load(s poolState) {
	p.generations = append(p.generations[:0], s.Generations...)
	p.freeList = append(p.freeList[:0], s.FreeList...)
	p.nextIndex = s.NextIndex
	p.alive = s.Alive
}
