package registry

import "fmt"

// Registry is the entity table consulted by the engines. It is built once
// at startup and read-only afterwards.
type Registry struct {
	byName map[string]Descriptor
	order  []string
}

func New(descs ...Descriptor) (*Registry, error) {
	r := &Registry{byName: make(map[string]Descriptor, len(descs))}
	for _, d := range descs {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustNew is New for static tables; it panics on an invalid descriptor.
func MustNew(descs ...Descriptor) *Registry {
	r, err := New(descs...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Register(d Descriptor) error {
	if err := d.validate(); err != nil {
		return err
	}
	if _, dup := r.byName[d.Name]; dup {
		return fmt.Errorf("%w: %s registered twice", ErrInvalidDescriptor, d.Name)
	}
	r.byName[d.Name] = d
	r.order = append(r.order, d.Name)
	return nil
}

func (r *Registry) Lookup(name string) (Descriptor, error) {
	d, ok := r.byName[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrUnknownEntity, name)
	}
	return d, nil
}

// Names lists entity names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
