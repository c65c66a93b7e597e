// Package cook joins the package layout and the object index into a lookup
// table keyed by (section, component id, instance id).
//
// An Index is built once by Cook and never modified afterwards, so it can be
// shared by any number of readers.
package cook

import (
	"fmt"

	"github.com/goopsie/soiTools/pkg/format"
	"github.com/goopsie/soiTools/pkg/soi"
	"github.com/goopsie/soiTools/pkg/toc"
)

type key struct {
	id       uint32
	instance uint32
}

type tables struct {
	models    map[key]*soi.RenderableModel
	collision map[key]*soi.CollisionModel
	motion    map[key]*soi.MotionPack
	streaming map[key]*toc.StreamingTexture
	static    map[key]*soi.StaticTexture
}

func newTables() *tables {
	return &tables{
		models:    make(map[key]*soi.RenderableModel),
		collision: make(map[key]*soi.CollisionModel),
		motion:    make(map[key]*soi.MotionPack),
		streaming: make(map[key]*toc.StreamingTexture),
		static:    make(map[key]*soi.StaticTexture),
	}
}

// Index is a cooked package.
type Index struct {
	layout   *toc.Layout
	objects  *soi.ObjectIndex
	sections map[uint32]*tables
}

// TextureRef is the result of FindTexture. Exactly one field is set.
type TextureRef struct {
	Streaming *toc.StreamingTexture
	Static    *soi.StaticTexture
}

// Info returns the placement record of the referenced texture.
func (r TextureRef) Info() *soi.ModelInfo {
	if r.Streaming != nil {
		return &r.Streaming.Info
	}
	return &r.Static.Info
}

// Cook reads the layout at tocPath and the object index at soiPath and
// indexes every record.
func Cook(tocPath, soiPath string) (*Index, error) {
	layout, err := toc.ReadFile(tocPath)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	objects, err := soi.ReadFile(soiPath, layout.Blocks())
	if err != nil {
		return nil, fmt.Errorf("read object index: %w", err)
	}
	return New(layout, objects)
}

// New indexes already decoded records. Instance ids are assigned per kind in
// file order: the n-th record with a given (section, component) gets instance n.
func New(layout *toc.Layout, objects *soi.ObjectIndex) (*Index, error) {
	x := &Index{
		layout:   layout,
		objects:  objects,
		sections: make(map[uint32]*tables, len(layout.Sections)),
	}
	for _, s := range layout.Sections {
		x.sections[s.ID] = newTables()
	}

	if err := insert(x, objects.RenderableModels, "renderable model",
		func(t *tables) map[key]*soi.RenderableModel { return t.models },
		func(m *soi.RenderableModel) *soi.ModelInfo { return &m.Info }); err != nil {
		return nil, err
	}
	if err := insert(x, objects.CollisionModels, "collision model",
		func(t *tables) map[key]*soi.CollisionModel { return t.collision },
		func(m *soi.CollisionModel) *soi.ModelInfo { return &m.Info }); err != nil {
		return nil, err
	}
	if err := insert(x, objects.MotionPacks, "motion pack",
		func(t *tables) map[key]*soi.MotionPack { return t.motion },
		func(m *soi.MotionPack) *soi.ModelInfo { return &m.Info }); err != nil {
		return nil, err
	}
	if err := insert(x, layout.StreamingTextures, "streaming texture",
		func(t *tables) map[key]*toc.StreamingTexture { return t.streaming },
		func(m *toc.StreamingTexture) *soi.ModelInfo { return &m.Info }); err != nil {
		return nil, err
	}
	if err := insert(x, objects.StaticTextures, "static texture",
		func(t *tables) map[key]*soi.StaticTexture { return t.static },
		func(m *soi.StaticTexture) *soi.ModelInfo { return &m.Info }); err != nil {
		return nil, err
	}
	return x, nil
}

func insert[T any](x *Index, records []*T, kind string, table func(*tables) map[key]*T, info func(*T) *soi.ModelInfo) error {
	type placement struct{ section, id uint32 }
	next := make(map[placement]uint32)

	for _, rec := range records {
		mi := info(rec)
		if mi.SectionID < 0 || mi.ComponentID < 0 {
			return format.Errorf("%s %q has negative identity", kind, mi.DisplayName())
		}
		section, id := uint32(mi.SectionID), uint32(mi.ComponentID)
		t, ok := x.sections[section]
		if !ok {
			return format.Errorf("%s %q references section %d of %d", kind, mi.DisplayName(), section, len(x.sections))
		}

		p := placement{section, id}
		k := key{id: id, instance: next[p]}
		next[p]++

		table(t)[k] = rec
	}
	return nil
}

func (x *Index) tables(section uint32) *tables {
	return x.sections[section]
}

// FindModel returns the renderable model for a component.
func (x *Index) FindModel(section, id, instance uint32) (*soi.RenderableModel, bool) {
	return find(x, section, id, instance, func(t *tables) map[key]*soi.RenderableModel { return t.models })
}

// FindCollisionModel returns the collision model for a component.
func (x *Index) FindCollisionModel(section, id, instance uint32) (*soi.CollisionModel, bool) {
	return find(x, section, id, instance, func(t *tables) map[key]*soi.CollisionModel { return t.collision })
}

// FindMotionPack returns the motion pack for a component.
func (x *Index) FindMotionPack(section, id, instance uint32) (*soi.MotionPack, bool) {
	return find(x, section, id, instance, func(t *tables) map[key]*soi.MotionPack { return t.motion })
}

// FindStreamingTexture returns the streaming texture for a component.
func (x *Index) FindStreamingTexture(section, id, instance uint32) (*toc.StreamingTexture, bool) {
	return find(x, section, id, instance, func(t *tables) map[key]*toc.StreamingTexture { return t.streaming })
}

// FindStaticTexture returns the static texture for a component.
func (x *Index) FindStaticTexture(section, id, instance uint32) (*soi.StaticTexture, bool) {
	return find(x, section, id, instance, func(t *tables) map[key]*soi.StaticTexture { return t.static })
}

func find[T any](x *Index, section, id, instance uint32, table func(*tables) map[key]*T) (*T, bool) {
	t := x.tables(section)
	if t == nil {
		return nil, false
	}
	rec, ok := table(t)[key{id: id, instance: instance}]
	return rec, ok
}

// FindTexture resolves a texture component against both texture tables. It
// fails with ErrLookupMiss when neither has it and ErrFormat when both do.
func (x *Index) FindTexture(section, id, instance uint32) (TextureRef, error) {
	streaming, inStreaming := x.FindStreamingTexture(section, id, instance)
	static, inStatic := x.FindStaticTexture(section, id, instance)
	switch {
	case inStreaming && inStatic:
		return TextureRef{}, format.Errorf("texture (section %d, id %d, instance %d) is both streaming and static", section, id, instance)
	case inStreaming:
		return TextureRef{Streaming: streaming}, nil
	case inStatic:
		return TextureRef{Static: static}, nil
	default:
		return TextureRef{}, fmt.Errorf("%w: texture (section %d, id %d, instance %d)", format.ErrLookupMiss, section, id, instance)
	}
}

// Sections returns the sections of the package in table order.
func (x *Index) Sections() []toc.Section {
	return x.layout.Sections
}

// StaticTextures returns every static texture in file order.
func (x *Index) StaticTextures() []*soi.StaticTexture {
	return x.objects.StaticTextures
}

// Models returns every renderable model in file order.
func (x *Index) Models() []*soi.RenderableModel {
	return x.objects.RenderableModels
}

// CollisionModels returns every collision model in file order.
func (x *Index) CollisionModels() []*soi.CollisionModel {
	return x.objects.CollisionModels
}

// Layout returns the package layout.
func (x *Index) Layout() *toc.Layout {
	return x.layout
}
