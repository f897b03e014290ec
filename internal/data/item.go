package data

import (
	"fmt"
	"os"

	"github.com/jumpgo/server/internal/geom"
	"gopkg.in/yaml.v3"
)

// ItemHandle indexes ItemTable.
type ItemHandle int32

// ItemMeta describes one item kind as authored in content. Kind selects the
// built-in behavior; Effect names a custom effect registered at setup.
type ItemMeta struct {
	Name              string      `yaml:"name"`
	Kind              string      `yaml:"kind"`   // "grenade", "mine", "crate" or "custom"
	Effect            string      `yaml:"effect"` // custom effect id when kind is "custom"
	BodySize          geom.Vec2   `yaml:"body_size"`
	Bounciness        float64     `yaml:"bounciness"`
	ThrowVelocity     geom.Vec2   `yaml:"throw_velocity"`
	FuseTicks         int         `yaml:"fuse_ticks"`
	ArmTicks          int         `yaml:"arm_ticks"`
	ExplosionTicks    int         `yaml:"explosion_ticks"`
	ExplosionRadius   float64     `yaml:"explosion_radius"`
	IncapacitateTicks int         `yaml:"incapacitate_ticks"` // knockdown for a player hit in flight
	UseSound          SoundHandle `yaml:"use_sound"`
	ExplosionSound    SoundHandle `yaml:"explosion_sound"`
	ImpactSound       SoundHandle `yaml:"impact_sound"`
	Volume            float64     `yaml:"volume"`
}

type itemListFile struct {
	Items []ItemMeta `yaml:"items"`
}

// ItemTable holds item metadata in file order.
type ItemTable struct {
	items  []ItemMeta
	byName map[string]ItemHandle
}

func NewItemTable(items ...ItemMeta) *ItemTable {
	t := &ItemTable{
		items:  append([]ItemMeta(nil), items...),
		byName: make(map[string]ItemHandle, len(items)),
	}
	for i, it := range t.items {
		t.byName[it.Name] = ItemHandle(i)
	}
	return t
}

// Get returns the metadata for h, or nil for an unknown handle.
func (t *ItemTable) Get(h ItemHandle) *ItemMeta {
	if int(h) < 0 || int(h) >= len(t.items) {
		return nil
	}
	return &t.items[h]
}

// Lookup finds a handle by item name.
func (t *ItemTable) Lookup(name string) (ItemHandle, bool) {
	h, ok := t.byName[name]
	return h, ok
}

// Count returns the number of item kinds.
func (t *ItemTable) Count() int {
	return len(t.items)
}

// LoadItemTable loads item metadata from a YAML file.
func LoadItemTable(path string) (*ItemTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read item list: %w", err)
	}
	var f itemListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse item list: %w", err)
	}
	return NewItemTable(f.Items...), nil
}
