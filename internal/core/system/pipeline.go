package system

import (
	"github.com/jumpgo/server/internal/core/ecs"
	"github.com/rotisserie/eris"
)

var (
	ErrUnknownStage            = eris.New("unknown stage")
	ErrComponentAccessConflict = eris.New("component access conflict")
)

type entry struct {
	label Label
	stage Stage
}

// Pipeline is the ordered list of stages run once per tick.
//
// Failure policy: the first system error aborts the remainder of the tick.
// Commands queued by the failing stage are discarded and the error is
// returned wrapped with stage and system names. Commands of a successful
// stage are flushed before the next stage starts.
type Pipeline struct {
	stages []entry
}

// NewPipeline returns a pipeline with the core stages First, PreUpdate,
// Update, PostUpdate and Last, each a SimpleStage.
func NewPipeline() *Pipeline {
	p := &Pipeline{}
	for _, l := range []Label{First, PreUpdate, Update, PostUpdate, Last} {
		p.stages = append(p.stages, entry{label: l, stage: NewSimpleStage()})
	}
	return p
}

func (p *Pipeline) index(l Label) int {
	for i, e := range p.stages {
		if e.label.ID == l.ID {
			return i
		}
	}
	return -1
}

// InsertStageBefore places stage immediately before target.
func (p *Pipeline) InsertStageBefore(target, label Label, stage Stage) error {
	return p.insert(target, label, stage, 0)
}

// InsertStageAfter places stage immediately after target.
func (p *Pipeline) InsertStageAfter(target, label Label, stage Stage) error {
	return p.insert(target, label, stage, 1)
}

func (p *Pipeline) insert(target, label Label, stage Stage, offset int) error {
	i := p.index(target)
	if i < 0 {
		return eris.Wrapf(ErrUnknownStage, "insert %s next to %s", label, target)
	}
	if p.index(label) >= 0 {
		return eris.Errorf("stage %s already in pipeline", label)
	}
	i += offset
	p.stages = append(p.stages, entry{})
	copy(p.stages[i+1:], p.stages[i:])
	p.stages[i] = entry{label: label, stage: stage}
	return nil
}

// ReplaceStage swaps the stage stored under label, keeping its position.
// Systems already added to the old stage are not carried over.
func (p *Pipeline) ReplaceStage(label Label, stage Stage) error {
	i := p.index(label)
	if i < 0 {
		return eris.Wrapf(ErrUnknownStage, "replace %s", label)
	}
	p.stages[i].stage = stage
	return nil
}

// AddSystemToStage appends sys to the stage; registration order is
// execution order.
func (p *Pipeline) AddSystemToStage(label Label, sys System) error {
	i := p.index(label)
	if i < 0 {
		return eris.Wrapf(ErrUnknownStage, "add system %s to %s", sys.Name(), label)
	}
	p.stages[i].stage.AddSystem(sys)
	return nil
}

// Stage returns the stage stored under label.
func (p *Pipeline) Stage(label Label) (Stage, bool) {
	i := p.index(label)
	if i < 0 {
		return nil, false
	}
	return p.stages[i].stage, true
}

// Labels returns the stage labels in run order.
func (p *Pipeline) Labels() []Label {
	out := make([]Label, len(p.stages))
	for i, e := range p.stages {
		out[i] = e.label
	}
	return out
}

// Validate checks every stage that can reject its registrations. Call it
// once after setup; an error is fatal at startup.
func (p *Pipeline) Validate() error {
	for _, e := range p.stages {
		v, ok := e.stage.(interface{ Validate() error })
		if !ok {
			continue
		}
		if err := v.Validate(); err != nil {
			return eris.Wrapf(err, "stage %s", e.label)
		}
	}
	return nil
}

// Run executes one tick.
func (p *Pipeline) Run(w *ecs.World) error {
	for _, e := range p.stages {
		if err := e.stage.Run(w); err != nil {
			w.Commands().Discard()
			return eris.Wrapf(err, "stage %s", e.label)
		}
		if err := w.FlushCommands(); err != nil {
			return eris.Wrapf(err, "stage %s: flush commands", e.label)
		}
	}
	return nil
}
