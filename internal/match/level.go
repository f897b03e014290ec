package match

import (
	"github.com/jumpgo/server/internal/component"
	"github.com/jumpgo/server/internal/core/ecs"
	"github.com/jumpgo/server/internal/core/system"
	"github.com/jumpgo/server/internal/geom"
	"github.com/jumpgo/server/internal/input"
	"github.com/jumpgo/server/internal/item"
	"github.com/jumpgo/server/internal/player"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

func (s *Session) loadMap() error {
	w := s.world
	for _, solid := range s.mapMeta.Solids {
		e := w.Spawn()
		if err := ecs.Insert(w, e, component.Transform{Translation: geom.Vec3{X: solid.Pos.X, Y: solid.Pos.Y}}); err != nil {
			return err
		}
		if err := ecs.Insert(w, e, component.Solid{Size: solid.Size, Platform: solid.Platform}); err != nil {
			return err
		}
	}
	for _, spawn := range s.mapMeta.Items {
		h, ok := s.env.Content.Items.Lookup(spawn.Item)
		if !ok {
			return eris.Wrapf(item.ErrUnknownItem, "map %s places %q", s.mapMeta.Name, spawn.Item)
		}
		if _, err := item.Spawn(w, s.env.Content, h, spawn.Pos); err != nil {
			return err
		}
	}
	s.log.Debug("map loaded",
		zap.String("map", s.mapMeta.Name),
		zap.Int("solids", len(s.mapMeta.Solids)),
		zap.Int("items", len(s.mapMeta.Items)),
	)
	return nil
}

// respawnSystem spawns a player for every active slot that has none. The
// first spawn of a slot uses the slot's own spawn point; later ones draw a
// spawn point from the session RNG.
func (s *Session) respawnSystem() system.System {
	return system.New("respawn", func(w *ecs.World) error {
		var present [input.MaxPlayers]bool
		ecs.Comp[component.PlayerIdx](w).Each(func(_ ecs.EntityID, idx *component.PlayerIdx) {
			if i := int(*idx); i >= 0 && i < input.MaxPlayers {
				present[i] = true
			}
		})
		spawns := s.mapMeta.PlayerSpawns
		for i, slot := range s.players {
			if !slot.Active || present[i] {
				continue
			}
			pos := spawns[i%len(spawns)]
			if ecs.Res[component.Time](w).Tick > 0 {
				pos = spawns[ecs.Res[ecs.Rng](w).Intn(len(spawns))]
			}
			handles := component.PlayerHandles{Player: slot.Player, Hat: slot.Hat}
			w.Commands().Add(func(w *ecs.World) error {
				_, err := player.Spawn(w, s.env.Content, i, handles, pos)
				return err
			})
		}
		return nil
	},
		system.Read[component.PlayerIdx](),
		system.Write[ecs.Rng](),
		system.Write[ecs.Commands](),
	)
}
