package feature

import (
	"fmt"
	"strings"

	"github.com/MeKo-Tech/trackmap/internal/event"
	"github.com/MeKo-Tech/trackmap/internal/infowindow"
	"github.com/paulmach/orb"
)

// IDSeparator joins a delegate type and a delegate id into a composed id.
const IDSeparator = "#"

// ComposeOptions configures a composed store.
type ComposeOptions struct {
	// Type defaults to the delegate types joined by "_".
	Type     string
	Classify ClassifyFunc
	Stores   []Manager
}

// Composed is a virtual store with no entities of its own. Every operation
// is routed to the delegate chosen by the classify function, and entity
// ids take the form delegateType#delegateID.
type Composed struct {
	event.Registry

	typ       string
	classify  ClassifyFunc
	delegates map[string]Manager
	order     []Manager
	active    bool
}

// Compose puts several unbound stores behind one virtual store. Delegate
// events are re-dispatched by the composed store.
func Compose(opts ComposeOptions) (*Composed, error) {
	if opts.Classify == nil {
		return nil, fmt.Errorf("%w: classify function is required", ErrInvalidArgument)
	}
	if len(opts.Stores) == 0 {
		return nil, fmt.Errorf("%w: at least one store is required", ErrInvalidArgument)
	}

	c := &Composed{
		classify:  opts.Classify,
		delegates: make(map[string]Manager, len(opts.Stores)),
	}
	types := make([]string, 0, len(opts.Stores))
	for _, m := range opts.Stores {
		if m == nil {
			return nil, fmt.Errorf("%w: nil store", ErrInvalidArgument)
		}
		if m.Active() {
			return nil, fmt.Errorf("failed to compose store %q: %w", m.Type(), ErrAlreadyActive)
		}
		if _, dup := c.delegates[m.Type()]; dup {
			return nil, fmt.Errorf("failed to compose store %q: %w", m.Type(), ErrDuplicateType)
		}
		c.delegates[m.Type()] = m
		c.order = append(c.order, m)
		types = append(types, m.Type())
	}

	c.typ = opts.Type
	if c.typ == "" {
		c.typ = strings.Join(types, "_")
	}
	if strings.Contains(c.typ, IDSeparator) {
		return nil, fmt.Errorf("%w: store type %q must not contain %q", ErrInvalidArgument, c.typ, IDSeparator)
	}

	c.Init(c)
	for _, m := range c.order {
		m.On(strings.Join(allEvents, ","), func(e *event.Event) {
			if c.Dispatch(e.Type, e.Data).PropagationStopped() {
				e.StopPropagation()
			}
		})
	}
	return c, nil
}

// Type returns the composed type.
func (c *Composed) Type() string { return c.typ }

// Active reports whether the composed store has been activated.
func (c *Composed) Active() bool { return c.active }

// Activate activates every delegate against b.
func (c *Composed) Activate(b Binder) error {
	if b == nil {
		return fmt.Errorf("%w: binder is required to activate store %q", ErrInvalidArgument, c.typ)
	}
	if c.active {
		return fmt.Errorf("failed to activate store %q: %w", c.typ, ErrAlreadyActive)
	}
	for _, m := range c.order {
		if err := m.Activate(b); err != nil {
			return fmt.Errorf("failed to activate delegate of %q: %w", c.typ, err)
		}
	}
	c.active = true
	return nil
}

// Delegates returns the delegate managers in composition order.
func (c *Composed) Delegates() []Manager {
	return append([]Manager(nil), c.order...)
}

// Delegate returns the delegate of the given type.
func (c *Composed) Delegate(typ string) (Manager, bool) {
	m, ok := c.delegates[typ]
	return m, ok
}

// Classify returns the delegate that owns attrs.
func (c *Composed) Classify(attrs Attributes) (Manager, error) {
	typ := c.classify(attrs)
	m, ok := c.delegates[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %q in composed store %q", ErrUnknownType, typ, c.typ)
	}
	return m, nil
}

// FeatureID returns delegateType#delegateID for attrs.
func (c *Composed) FeatureID(attrs Attributes) (string, error) {
	m, err := c.Classify(attrs)
	if err != nil {
		return "", err
	}
	id, err := m.FeatureID(attrs)
	if err != nil {
		return "", err
	}
	return m.Type() + IDSeparator + id, nil
}

// GeometryOf returns the geometry the owning delegate derives from attrs.
func (c *Composed) GeometryOf(attrs Attributes) (orb.Geometry, error) {
	m, err := c.Classify(attrs)
	if err != nil {
		return nil, err
	}
	return m.GeometryOf(attrs)
}

// SplitID splits a composed id at the first separator.
func SplitID(id string) (typ, rest string, ok bool) {
	return strings.Cut(id, IDSeparator)
}

// Add routes each attribute object to its delegate. The whole batch is
// checked before any delegate is changed.
func (c *Composed) Add(attrs ...Attributes) error {
	return c.route(modeAdd, attrs)
}

// Update routes each attribute object to its delegate.
func (c *Composed) Update(attrs ...Attributes) error {
	return c.route(modeUpdate, attrs)
}

// Upsert routes each attribute object to its delegate.
func (c *Composed) Upsert(attrs ...Attributes) error {
	return c.route(modeUpsert, attrs)
}

func (c *Composed) route(m mode, attrs []Attributes) error {
	if !c.active {
		return fmt.Errorf("store %q: %w", c.typ, ErrNotActive)
	}

	type pending struct {
		d     Manager
		id    string
		attrs Attributes
	}
	groups := make(map[Manager][]Attributes)
	merged := make(map[string]*pending, len(attrs))
	var order []*pending
	for _, a := range attrs {
		d, err := c.Classify(a)
		if err != nil {
			return err
		}
		id, err := d.FeatureID(a)
		if err != nil {
			return err
		}
		key := d.Type() + IDSeparator + id
		if p, ok := merged[key]; ok {
			if m == modeAdd {
				return fmt.Errorf("failed to add %s feature %q: %w", d.Type(), id, ErrDuplicateFeature)
			}
			p.attrs = p.attrs.Merge(a)
			groups[d] = append(groups[d], a)
			continue
		}

		p := &pending{d: d, id: id}
		existing, exists := d.FeatureByID(id)
		switch {
		case m == modeAdd && exists:
			return fmt.Errorf("failed to add %s feature %q: %w", d.Type(), id, ErrDuplicateFeature)
		case m == modeUpdate && !exists:
			return fmt.Errorf("failed to update %s feature %q: %w", d.Type(), id, ErrFeatureNotFound)
		case exists:
			p.attrs = existing.Attributes().Merge(a)
		default:
			p.attrs = a.Clone()
		}
		merged[key] = p
		order = append(order, p)
		groups[d] = append(groups[d], a)
	}

	// Check every merged result before any delegate writes.
	for _, p := range order {
		if _, err := p.d.GeometryOf(p.attrs); err != nil {
			return fmt.Errorf("feature %q: %w", p.id, err)
		}
	}

	for _, d := range c.order {
		batch, ok := groups[d]
		if !ok {
			continue
		}
		var err error
		switch m {
		case modeAdd:
			err = d.Add(batch...)
		case modeUpdate:
			err = d.Update(batch...)
		default:
			err = d.Upsert(batch...)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Remove routes the selection to the owning delegates.
func (c *Composed) Remove(sel Selector) error {
	return c.fanOut(sel, Manager.Remove)
}

// Hide routes the selection to the owning delegates.
func (c *Composed) Hide(sel Selector) error {
	return c.fanOut(sel, Manager.Hide)
}

// Show routes the selection to the owning delegates.
func (c *Composed) Show(sel Selector) error {
	return c.fanOut(sel, Manager.Show)
}

func (c *Composed) fanOut(sel Selector, op func(Manager, Selector) error) error {
	if !c.active {
		return fmt.Errorf("store %q: %w", c.typ, ErrNotActive)
	}
	if sel.isPredicate() {
		for _, d := range c.order {
			if err := op(d, sel); err != nil {
				return err
			}
		}
		return nil
	}

	groups := make(map[Manager][]string)
	var missing []string
	add := func(d Manager, id string) {
		if d.HasFeature(id) {
			groups[d] = append(groups[d], id)
		} else {
			missing = append(missing, d.Type()+IDSeparator+id)
		}
	}
	for _, id := range sel.ids {
		typ, rest, ok := SplitID(id)
		d, known := c.delegates[typ]
		if !ok || !known {
			missing = append(missing, id)
			continue
		}
		add(d, rest)
	}
	for _, a := range sel.attrs {
		d, err := c.Classify(a)
		if err != nil {
			return err
		}
		id, err := d.FeatureID(a)
		if err != nil {
			return err
		}
		add(d, id)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s %s", ErrFeatureNotFound, c.typ, strings.Join(missing, ", "))
	}

	for _, d := range c.order {
		if ids, ok := groups[d]; ok {
			if err := op(d, IDs(ids...)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Clear clears every delegate.
func (c *Composed) Clear() error {
	return c.each(Manager.Clear)
}

// HideLayer hides every delegate layer.
func (c *Composed) HideLayer() error {
	return c.each(Manager.HideLayer)
}

// ShowLayer shows every delegate layer.
func (c *Composed) ShowLayer() error {
	return c.each(Manager.ShowLayer)
}

func (c *Composed) each(op func(Manager) error) error {
	if !c.active {
		return fmt.Errorf("store %q: %w", c.typ, ErrNotActive)
	}
	for _, d := range c.order {
		if err := op(d); err != nil {
			return err
		}
	}
	return nil
}

// FeatureByID resolves a composed id through the owning delegate.
func (c *Composed) FeatureByID(id string) (*Feature, bool) {
	d, rest, ok := c.lookup(id)
	if !ok {
		return nil, false
	}
	return d.FeatureByID(rest)
}

// VisibleByID resolves a composed id to a visible entity.
func (c *Composed) VisibleByID(id string) (*Feature, bool) {
	d, rest, ok := c.lookup(id)
	if !ok {
		return nil, false
	}
	return d.VisibleByID(rest)
}

// HasFeature reports whether a composed id names an entity.
func (c *Composed) HasFeature(id string) bool {
	_, ok := c.FeatureByID(id)
	return ok
}

func (c *Composed) lookup(id string) (Manager, string, bool) {
	typ, rest, ok := SplitID(id)
	if !ok {
		return nil, "", false
	}
	d, ok := c.delegates[typ]
	return d, rest, ok
}

// Features returns the entities of all delegates, delegate by delegate.
func (c *Composed) Features() []*Feature {
	var fs []*Feature
	for _, d := range c.order {
		fs = append(fs, d.Features()...)
	}
	return fs
}

// ComposedID returns the id under which f is known to this store.
func (c *Composed) ComposedID(f *Feature) (string, bool) {
	for _, d := range c.order {
		if d.Type() == f.Type() {
			return d.Type() + IDSeparator + f.ID(), true
		}
		if nested, ok := d.(*Composed); ok {
			if id, ok := nested.ComposedID(f); ok {
				return d.Type() + IDSeparator + id, true
			}
		}
	}
	return "", false
}

// Store returns the leaf store owning entities of type typ.
func (c *Composed) Store(typ string) (*Store, bool) {
	return findStore(c, typ)
}

// InfoWindowFor asks the store that owns f.
func (c *Composed) InfoWindowFor(f *Feature) (infowindow.InfoWindow, bool) {
	s, ok := c.Store(f.Type())
	if !ok {
		return infowindow.InfoWindow{}, false
	}
	return s.InfoWindowFor(f)
}

// StyleOf asks the store that owns the renderable's entities.
func (c *Composed) StyleOf(r Renderable, resolution float64) []Style {
	members := r.Members()
	if len(members) == 0 {
		return nil
	}
	s, ok := c.Store(members[0].Type())
	if !ok {
		return nil
	}
	return s.StyleOf(r, resolution)
}

func findStore(m Manager, typ string) (*Store, bool) {
	if s, ok := m.(*Store); ok {
		return s, s.Type() == typ
	}
	for _, d := range m.Delegates() {
		if s, ok := findStore(d, typ); ok {
			return s, true
		}
	}
	return nil, false
}
