// Package layermanager holds the ordered stack of layers backing a
// LayeredStorage and designates exactly one as top (mutable).
package layermanager

import (
	"sort"

	"emperror.dev/errors"

	"github.com/ocfl-archive/layerstore/pkg/layer"
)

// Manager owns an ordered set of layers and exposes lookup by id. Creating
// and sealing layers is an external policy decision; the Manager only
// consumes the stack it is given.
type Manager interface {
	// GetTopLayer returns the layer with the greatest Id.
	GetTopLayer() (layer.Layer, error)

	// GetLayer returns the layer with the given Id.
	GetLayer(id layer.Id) (layer.Layer, error)

	// Layers returns every layer, ordered ascending by Id.
	Layers() []layer.Layer
}

// InMemory is a Manager backed by a slice sorted once at construction.
type InMemory struct {
	byID  map[layer.Id]layer.Layer
	order []layer.Layer
}

// New builds a Manager from layers, which need not be pre-sorted. At least
// one layer must be given.
func New(layers []layer.Layer) (*InMemory, error) {
	if len(layers) == 0 {
		return nil, errors.New("layer manager requires at least one layer")
	}
	m := &InMemory{
		byID:  make(map[layer.Id]layer.Layer, len(layers)),
		order: append([]layer.Layer(nil), layers...),
	}
	sort.Slice(m.order, func(i, j int) bool {
		return m.order[i].Id() < m.order[j].Id()
	})
	for _, l := range m.order {
		if _, exists := m.byID[l.Id()]; exists {
			return nil, errors.Errorf("duplicate layer id %d", l.Id())
		}
		m.byID[l.Id()] = l
	}
	return m, nil
}

func (m *InMemory) GetTopLayer() (layer.Layer, error) {
	if len(m.order) == 0 {
		return nil, errors.New("no layers in manager")
	}
	return m.order[len(m.order)-1], nil
}

func (m *InMemory) GetLayer(id layer.Id) (layer.Layer, error) {
	l, ok := m.byID[id]
	if !ok {
		return nil, errors.Errorf("no such layer: %d", id)
	}
	return l, nil
}

func (m *InMemory) Layers() []layer.Layer {
	return append([]layer.Layer(nil), m.order...)
}

// AddLayer appends a new top layer to the stack. The caller (external
// sealing policy, per spec.md §3 "Layers are created by an external
// policy") is responsible for having sealed the previous top before
// calling this.
func (m *InMemory) AddLayer(l layer.Layer) error {
	if _, exists := m.byID[l.Id()]; exists {
		return errors.Errorf("duplicate layer id %d", l.Id())
	}
	if len(m.order) > 0 && l.Id() <= m.order[len(m.order)-1].Id() {
		return errors.Errorf("new layer id %d must be greater than current top %d", l.Id(), m.order[len(m.order)-1].Id())
	}
	m.byID[l.Id()] = l
	m.order = append(m.order, l)
	return nil
}
