package picker

import (
	"context"
	"fmt"
	"sort"

	bferrors "github.com/otherjamesbrown/backoffice/pkg/errors"
)

// Registry holds one picker per entity type.
type Registry struct {
	pickers map[EntityType]*Picker
}

// NewRegistry creates pickers for every descriptor, all sharing engine and opts.
// With no descriptors the built-in ones are used.
func NewRegistry(engine QueryEngine, descs []Descriptor, opts ...PickerOption) *Registry {
	if len(descs) == 0 {
		descs = Descriptors()
	}
	r := &Registry{pickers: make(map[EntityType]*Picker, len(descs))}
	for _, d := range descs {
		r.pickers[d.Entity] = New(d, engine, opts...)
	}
	return r
}

// Picker returns the picker for t.
func (r *Registry) Picker(t EntityType) (*Picker, error) {
	p, ok := r.pickers[t]
	if !ok {
		return nil, fmt.Errorf("%w: no picker for entity type %q", bferrors.ErrInvalidRequest, t)
	}
	return p, nil
}

// Types returns the registered entity types, sorted.
func (r *Registry) Types() []EntityType {
	types := make([]EntityType, 0, len(r.pickers))
	for t := range r.pickers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Search runs a search against the picker for t.
func (r *Registry) Search(ctx context.Context, query string, t EntityType) (OptionSet, error) {
	p, err := r.Picker(t)
	if err != nil {
		return nil, err
	}
	return p.Search(ctx, query)
}

// ResolveLabel resolves key against the picker for t.
func (r *Registry) ResolveLabel(ctx context.Context, t EntityType, key int64) (string, error) {
	p, err := r.Picker(t)
	if err != nil {
		return "", err
	}
	return p.ResolveLabel(ctx, key)
}

// Exists checks key against the picker for t.
func (r *Registry) Exists(ctx context.Context, t EntityType, key int64) (bool, error) {
	p, err := r.Picker(t)
	if err != nil {
		return false, err
	}
	return p.Exists(ctx, key)
}
