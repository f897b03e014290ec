package system

import (
	"sync/atomic"
	"testing"

	"github.com/jumpgo/server/internal/core/ecs"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct{ N int }

type marker struct{}

func record(log *[]string, name string) *Func {
	return New(name, func(*ecs.World) error {
		*log = append(*log, name)
		return nil
	})
}

func TestPipelineRunsStagesThenSystemsInOrder(t *testing.T) {
	var log []string
	p := NewPipeline()
	custom := NewLabel("player_state")
	require.NoError(t, p.InsertStageBefore(PreUpdate, custom, NewSimpleStage()))

	require.NoError(t, p.AddSystemToStage(Last, record(&log, "last")))
	require.NoError(t, p.AddSystemToStage(Update, record(&log, "update.a")))
	require.NoError(t, p.AddSystemToStage(custom, record(&log, "custom")))
	require.NoError(t, p.AddSystemToStage(Update, record(&log, "update.b")))
	require.NoError(t, p.AddSystemToStage(First, record(&log, "first")))

	require.NoError(t, p.Run(ecs.NewWorld()))
	assert.Equal(t, []string{"first", "custom", "update.a", "update.b", "last"}, log)

	names := make([]string, 0)
	for _, l := range p.Labels() {
		names = append(names, l.Name)
	}
	assert.Equal(t, []string{"first", "player_state", "pre_update", "update", "post_update", "last"}, names)
}

func TestInsertStageAfter(t *testing.T) {
	p := NewPipeline()
	extra := NewLabel("extra")
	require.NoError(t, p.InsertStageAfter(Last, extra, NewSimpleStage()))
	labels := p.Labels()
	assert.Equal(t, extra, labels[len(labels)-1])

	err := p.InsertStageAfter(Last, extra, NewSimpleStage())
	assert.Error(t, err, "duplicate labels are rejected")
}

func TestUnknownStage(t *testing.T) {
	p := NewPipeline()
	err := p.AddSystemToStage(NewLabel("nowhere"), record(new([]string), "x"))
	assert.True(t, eris.Is(err, ErrUnknownStage))

	err = p.InsertStageBefore(NewLabel("nowhere"), NewLabel("y"), NewSimpleStage())
	assert.True(t, eris.Is(err, ErrUnknownStage))
}

func TestFailingSystemAbortsTick(t *testing.T) {
	boom := eris.New("boom")
	var log []string
	p := NewPipeline()
	require.NoError(t, p.AddSystemToStage(Update, record(&log, "before")))
	require.NoError(t, p.AddSystemToStage(Update, New("fails", func(w *ecs.World) error {
		w.Commands().Spawn(func(*ecs.World, ecs.EntityID) error { return nil })
		return boom
	})))
	require.NoError(t, p.AddSystemToStage(Update, record(&log, "after")))
	require.NoError(t, p.AddSystemToStage(Last, record(&log, "last")))

	w := ecs.NewWorld()
	err := p.Run(w)
	require.Error(t, err)
	assert.True(t, eris.Is(err, boom))
	assert.Contains(t, err.Error(), "fails")
	assert.Equal(t, []string{"before"}, log)
	assert.Equal(t, 0, w.Len(), "commands of the aborted stage are discarded")
	assert.Equal(t, 0, w.Commands().Len())
}

func TestCommandsFlushAtStageEnd(t *testing.T) {
	p := NewPipeline()
	ecsWorld := ecs.NewWorld()
	ecs.Register[marker](ecsWorld)

	seenInStage := -1
	require.NoError(t, p.AddSystemToStage(First, New("spawn", func(w *ecs.World) error {
		w.Commands().Spawn(func(w *ecs.World, id ecs.EntityID) error {
			return ecs.Insert(w, id, marker{})
		})
		return nil
	})))
	require.NoError(t, p.AddSystemToStage(First, New("same stage", func(w *ecs.World) error {
		seenInStage = ecs.Comp[marker](w).Len()
		return nil
	})))
	seenNext := -1
	require.NoError(t, p.AddSystemToStage(PreUpdate, New("next stage", func(w *ecs.World) error {
		seenNext = ecs.Comp[marker](w).Len()
		return nil
	})))

	require.NoError(t, p.Run(ecsWorld))
	assert.Equal(t, 0, seenInStage)
	assert.Equal(t, 1, seenNext)
}

func TestDuplicateMutableAccessPanics(t *testing.T) {
	assert.Panics(t, func() {
		New("bad", func(*ecs.World) error { return nil }, Write[counter](), Write[counter]())
	})
	assert.NotPanics(t, func() {
		New("ok", func(*ecs.World) error { return nil }, Read[counter](), Write[counter]())
	})
}

func TestParallelStageRejectsOverlappingWrites(t *testing.T) {
	p := NewPipeline()
	par := NewParallelStage()
	require.NoError(t, p.ReplaceStage(Last, par))
	noop := func(*ecs.World) error { return nil }

	require.NoError(t, p.AddSystemToStage(Last, New("a", noop, Write[counter]())))
	require.NoError(t, p.AddSystemToStage(Last, New("b", noop, Write[marker]())))
	require.NoError(t, p.Validate())

	require.NoError(t, p.AddSystemToStage(Last, New("c", noop, Read[counter]())))
	err := p.Validate()
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrComponentAccessConflict))
	assert.Contains(t, err.Error(), "a and c")
}

func TestParallelStageRunsEverySystem(t *testing.T) {
	par := NewParallelStage()
	var n atomic.Int32
	for i := 0; i < 8; i++ {
		par.AddSystem(New("inc", func(*ecs.World) error {
			n.Add(1)
			return nil
		}))
	}
	require.NoError(t, par.Run(ecs.NewWorld()))
	assert.Equal(t, int32(8), n.Load())

	boom := eris.New("boom")
	par.AddSystem(New("fails", func(*ecs.World) error { return boom }))
	assert.True(t, eris.Is(par.Run(ecs.NewWorld()), boom))
}
