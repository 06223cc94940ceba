package feature

import (
	"fmt"
	"slices"
)

// Pool registers managers by type against one binder. A manager can join
// one pool only, since activation is one-shot.
type Pool struct {
	binder   Binder
	managers map[string]Manager
	owners   map[string]Manager
	order    []string
}

// NewPool creates a pool whose managers are activated against b.
func NewPool(b Binder) *Pool {
	return &Pool{
		binder:   b,
		managers: make(map[string]Manager),
		owners:   make(map[string]Manager),
	}
}

// Add activates and registers managers. It fails on the first manager whose
// type, or the type of one of its delegates, is already registered, or that
// is already active.
func (p *Pool) Add(managers ...Manager) error {
	for _, m := range managers {
		if err := p.add(m); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pool) add(m Manager) error {
	if m == nil {
		return fmt.Errorf("%w: nil manager", ErrInvalidArgument)
	}
	types := typesOf(m)
	for _, t := range types {
		if _, dup := p.owners[t]; dup {
			return fmt.Errorf("failed to add %q to pool: %w", t, ErrDuplicateType)
		}
	}
	if m.Active() {
		return fmt.Errorf("failed to add %q to pool: %w", m.Type(), ErrAlreadyActive)
	}
	if err := m.Activate(p.binder); err != nil {
		return fmt.Errorf("failed to add %q to pool: %w", m.Type(), err)
	}

	p.managers[m.Type()] = m
	p.order = append(p.order, m.Type())
	for _, t := range types {
		p.owners[t] = m
	}
	return nil
}

// Get returns the manager registered under typ.
func (p *Pool) Get(typ string) (Manager, bool) {
	m, ok := p.managers[typ]
	return m, ok
}

// Has reports whether a manager is registered under typ.
func (p *Pool) Has(typ string) bool {
	_, ok := p.managers[typ]
	return ok
}

// Types returns the registered types in registration order.
func (p *Pool) Types() []string {
	return slices.Clone(p.order)
}

// Resolve returns the manager that can answer for entities named by typ:
// the registered manager itself, or the delegate of that type nested in a
// registered composed store.
func (p *Pool) Resolve(typ string) (Manager, bool) {
	if m, ok := p.managers[typ]; ok {
		return m, true
	}
	owner, ok := p.owners[typ]
	if !ok {
		return nil, false
	}
	return findManager(owner, typ)
}

// Store returns the leaf store that owns entities of type typ.
func (p *Pool) Store(typ string) (*Store, bool) {
	owner, ok := p.owners[typ]
	if !ok {
		return nil, false
	}
	return findStore(owner, typ)
}

func typesOf(m Manager) []string {
	types := []string{m.Type()}
	for _, d := range m.Delegates() {
		types = append(types, typesOf(d)...)
	}
	return types
}

func findManager(m Manager, typ string) (Manager, bool) {
	if m.Type() == typ {
		return m, true
	}
	for _, d := range m.Delegates() {
		if found, ok := findManager(d, typ); ok {
			return found, true
		}
	}
	return nil, false
}
