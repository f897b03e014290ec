package system

import (
	"github.com/jumpgo/server/internal/core/ecs"
	"github.com/oklog/ulid/v2"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

// Label identifies a stage. Core stage labels carry fixed ids so pipelines
// built in different processes agree on them.
type Label struct {
	Name string
	ID   ulid.ULID
}

// NewLabel creates a label for a custom stage.
func NewLabel(name string) Label {
	return Label{Name: name, ID: ulid.Make()}
}

func (l Label) String() string { return l.Name }

var (
	First      = Label{Name: "first", ID: ulid.MustParse("01J00000000000000000000001")}
	PreUpdate  = Label{Name: "pre_update", ID: ulid.MustParse("01J00000000000000000000002")}
	Update     = Label{Name: "update", ID: ulid.MustParse("01J00000000000000000000003")}
	PostUpdate = Label{Name: "post_update", ID: ulid.MustParse("01J00000000000000000000004")}
	Last       = Label{Name: "last", ID: ulid.MustParse("01J00000000000000000000005")}
)

// Stage runs a group of systems once per tick.
type Stage interface {
	AddSystem(s System)
	Run(w *ecs.World) error
}

// SimpleStage runs its systems sequentially in registration order.
type SimpleStage struct {
	systems []System
}

func NewSimpleStage() *SimpleStage {
	return &SimpleStage{systems: make([]System, 0, 8)}
}

func (s *SimpleStage) AddSystem(sys System) {
	s.systems = append(s.systems, sys)
}

// Systems returns the registered systems in execution order.
func (s *SimpleStage) Systems() []System { return s.systems }

// Run stops at the first failing system.
func (s *SimpleStage) Run(w *ecs.World) error {
	for _, sys := range s.systems {
		if err := sys.Run(w); err != nil {
			return eris.Wrapf(err, "system %s", sys.Name())
		}
	}
	return nil
}

// ParallelStage runs its systems concurrently. Systems must declare every
// type they touch; Validate rejects a stage where two systems overlap on a
// written type, so the result equals any sequential order.
type ParallelStage struct {
	systems []System
}

func NewParallelStage() *ParallelStage {
	return &ParallelStage{}
}

func (s *ParallelStage) AddSystem(sys System) {
	s.systems = append(s.systems, sys)
}

// Validate returns ErrComponentAccessConflict naming the first overlapping
// pair in registration order.
func (s *ParallelStage) Validate() error {
	for i := 0; i < len(s.systems); i++ {
		for j := i + 1; j < len(s.systems); j++ {
			if t, ok := s.systems[i].Access().Conflicts(s.systems[j].Access()); ok {
				return eris.Wrapf(ErrComponentAccessConflict, "%s and %s both access %s",
					s.systems[i].Name(), s.systems[j].Name(), t)
			}
		}
	}
	return nil
}

func (s *ParallelStage) Run(w *ecs.World) error {
	var g errgroup.Group
	for _, sys := range s.systems {
		g.Go(func() error {
			if err := sys.Run(w); err != nil {
				return eris.Wrapf(err, "system %s", sys.Name())
			}
			return nil
		})
	}
	return g.Wait()
}
