package feature

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/MeKo-Tech/trackmap/internal/event"
	"github.com/MeKo-Tech/trackmap/internal/infowindow"
	"github.com/paulmach/orb"
)

const (
	// DefaultZIndex is the layer z-index used when Options.ZIndex is zero.
	DefaultZIndex = 999
	// DefaultClusterDistance is the grouping distance in pixels used by Cluster(0).
	DefaultClusterDistance = 50.0
)

// Options configures a Store. Type and Geometry are required.
type Options struct {
	Type         string
	Key          KeyFunc
	Geometry     GeometryFunc
	Style        StyleFunc
	ClusterStyle ClusterStyleFunc
	InfoWindow   InfoWindowFunc
	ZIndex       int
	Logger       *slog.Logger
}

// Store owns the entities of one type.
type Store struct {
	event.Registry

	typ          string
	key          KeyFunc
	geometry     GeometryFunc
	style        StyleFunc
	clusterStyle ClusterStyleFunc
	infoWindow   InfoWindowFunc
	zIndex       int
	logger       *slog.Logger

	binder      Binder
	visible     map[string]*Feature
	hidden      map[string]*Feature
	seq         uint64
	layerHidden bool

	clusterDistance float64
	version         uint64
	cache           *clusterCache
}

// New creates an unbound store.
func New(opts Options) (*Store, error) {
	if opts.Type == "" {
		return nil, fmt.Errorf("%w: store type is required", ErrInvalidArgument)
	}
	if strings.Contains(opts.Type, IDSeparator) {
		return nil, fmt.Errorf("%w: store type %q must not contain %q", ErrInvalidArgument, opts.Type, IDSeparator)
	}
	if opts.Geometry == nil {
		return nil, fmt.Errorf("%w: geometry function is required for store %q", ErrInvalidArgument, opts.Type)
	}

	s := &Store{
		typ:          opts.Type,
		key:          opts.Key,
		geometry:     opts.Geometry,
		style:        opts.Style,
		clusterStyle: opts.ClusterStyle,
		infoWindow:   opts.InfoWindow,
		zIndex:       opts.ZIndex,
		logger:       opts.Logger,
		visible:      make(map[string]*Feature),
		hidden:       make(map[string]*Feature),
	}
	if s.key == nil {
		s.key = DefaultKey
	}
	if s.style == nil {
		s.style = DefaultStyle
	}
	if s.clusterStyle == nil {
		s.clusterStyle = DefaultClusterStyle
	}
	if s.zIndex == 0 {
		s.zIndex = DefaultZIndex
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.Init(s)

	return s, nil
}

// Type returns the store type.
func (s *Store) Type() string { return s.typ }

// Active reports whether the store has been activated.
func (s *Store) Active() bool { return s.binder != nil }

// Activate binds the store to a popup coordinator and adds its layer to
// the coordinator's map. A store can be activated only once.
func (s *Store) Activate(b Binder) error {
	if b == nil {
		return fmt.Errorf("%w: binder is required to activate store %q", ErrInvalidArgument, s.typ)
	}
	if s.binder != nil {
		return fmt.Errorf("failed to activate store %q: %w", s.typ, ErrAlreadyActive)
	}
	s.binder = b
	b.AddLayer(s)
	s.logger.Debug("Feature store activated", "type", s.typ, "zIndex", s.zIndex)
	return nil
}

// Delegates returns nil; a store routes to nobody.
func (s *Store) Delegates() []Manager { return nil }

// FeatureID derives the id of the entity described by attrs.
func (s *Store) FeatureID(attrs Attributes) (string, error) {
	id := s.key(attrs)
	if id == "" {
		return "", fmt.Errorf("%w: no id derivable for %s attributes", ErrInvalidArgument, s.typ)
	}
	return id, nil
}

// GeometryOf derives the geometry of the entity described by attrs.
func (s *Store) GeometryOf(attrs Attributes) (orb.Geometry, error) {
	g, err := s.geometry(attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s geometry: %w", s.typ, err)
	}
	if g == nil {
		return nil, fmt.Errorf("%w: geometry function of %s returned nil", ErrInvalidArgument, s.typ)
	}
	return g, nil
}

// Add creates visible entities. It fails without adding anything if any id
// already exists.
func (s *Store) Add(attrs ...Attributes) error {
	return s.apply(modeAdd, attrs)
}

// Update shallow-merges attrs over existing entities, visible or hidden, and
// recomputes their geometry. It fails without updating anything if any id
// is unknown.
func (s *Store) Update(attrs ...Attributes) error {
	return s.apply(modeUpdate, attrs)
}

// Upsert updates entities that exist and adds the others.
func (s *Store) Upsert(attrs ...Attributes) error {
	return s.apply(modeUpsert, attrs)
}

type mode int

const (
	modeAdd mode = iota
	modeUpdate
	modeUpsert
)

type change struct {
	existing *Feature
	id       string
	attrs    Attributes
	geom     orb.Geometry
}

func (s *Store) apply(m mode, attrs []Attributes) error {
	if err := s.checkActive(); err != nil {
		return err
	}

	changes, err := s.prepare(m, attrs)
	if err != nil {
		return err
	}

	for _, c := range changes {
		if c.existing == nil {
			s.seq++
			f := &Feature{id: c.id, typ: s.typ, attrs: c.attrs, geom: c.geom, seq: s.seq}
			s.visible[c.id] = f
			s.changed()
			s.Dispatch(EventAdd, f)
			continue
		}

		f := c.existing
		f.attrs = c.attrs
		f.geom = c.geom
		if !f.hidden {
			s.changed()
		}
		s.Dispatch(EventUpdate, f)
	}
	return nil
}

// prepare validates a batch and computes every resulting attribute set and
// geometry before the store is touched.
func (s *Store) prepare(m mode, attrs []Attributes) ([]*change, error) {
	changes := make([]*change, 0, len(attrs))
	byID := make(map[string]*change, len(attrs))

	for _, a := range attrs {
		id, err := s.FeatureID(a)
		if err != nil {
			return nil, err
		}

		if c, ok := byID[id]; ok {
			if m == modeAdd {
				return nil, fmt.Errorf("failed to add %s feature %q: %w", s.typ, id, ErrDuplicateFeature)
			}
			c.attrs = c.attrs.Merge(a)
			continue
		}

		c := &change{id: id}
		existing, ok := s.FeatureByID(id)
		switch {
		case ok && m == modeAdd:
			return nil, fmt.Errorf("failed to add %s feature %q: %w", s.typ, id, ErrDuplicateFeature)
		case !ok && m == modeUpdate:
			return nil, fmt.Errorf("failed to update %s feature %q: %w", s.typ, id, ErrFeatureNotFound)
		case ok:
			c.existing = existing
			c.attrs = existing.attrs.Merge(a)
		default:
			c.attrs = a.Clone()
		}
		byID[id] = c
		changes = append(changes, c)
	}

	for _, c := range changes {
		g, err := s.GeometryOf(c.attrs)
		if err != nil {
			return nil, fmt.Errorf("feature %q: %w", c.id, err)
		}
		c.geom = g
	}
	return changes, nil
}

// Remove deletes the selected entities. An open popup on a removed entity
// is closed before the entity leaves the store.
func (s *Store) Remove(sel Selector) error {
	if err := s.checkActive(); err != nil {
		return err
	}
	fs, err := s.selectFeatures(sel, s.Features(), func(*Feature) bool { return true })
	if err != nil {
		return fmt.Errorf("failed to remove: %w", err)
	}

	for _, f := range fs {
		if f.hidden {
			delete(s.hidden, f.id)
		} else {
			s.binder.CloseIfMatchesFeature(f)
			delete(s.visible, f.id)
			s.changed()
		}
		s.Dispatch(EventRemove, f)
	}
	return nil
}

// Hide moves the selected visible entities to the hidden subset, closing
// their popup first. Selected entities that are already hidden are skipped.
func (s *Store) Hide(sel Selector) error {
	if err := s.checkActive(); err != nil {
		return err
	}
	fs, err := s.selectFeatures(sel, s.VisibleFeatures(), func(f *Feature) bool { return !f.hidden })
	if err != nil {
		return fmt.Errorf("failed to hide: %w", err)
	}

	for _, f := range fs {
		s.binder.CloseIfMatchesFeature(f)
		delete(s.visible, f.id)
		f.hidden = true
		f.hover = false
		s.hidden[f.id] = f
		s.changed()
		s.Dispatch(EventHide, f)
	}
	return nil
}

// Show moves the selected hidden entities back to the visible subset.
func (s *Store) Show(sel Selector) error {
	if err := s.checkActive(); err != nil {
		return err
	}
	fs, err := s.selectFeatures(sel, s.HiddenFeatures(), func(f *Feature) bool { return f.hidden })
	if err != nil {
		return fmt.Errorf("failed to show: %w", err)
	}

	for _, f := range fs {
		delete(s.hidden, f.id)
		f.hidden = false
		s.visible[f.id] = f
		s.changed()
		s.Dispatch(EventShow, f)
	}
	return nil
}

// Clear removes every entity, closing a popup of this store's type first.
func (s *Store) Clear() error {
	if err := s.checkActive(); err != nil {
		return err
	}
	s.binder.CloseIfMatchesType(s.typ)
	s.visible = make(map[string]*Feature)
	s.hidden = make(map[string]*Feature)
	s.changed()
	s.Dispatch(EventClear, nil)
	return nil
}

// HideLayer stops the whole layer from rendering without touching entities.
func (s *Store) HideLayer() error {
	if err := s.checkActive(); err != nil {
		return err
	}
	s.binder.CloseIfMatchesType(s.typ)
	s.layerHidden = true
	s.Dispatch(EventHideLayer, nil)
	return nil
}

// ShowLayer renders the layer again.
func (s *Store) ShowLayer() error {
	if err := s.checkActive(); err != nil {
		return err
	}
	s.layerHidden = false
	s.Dispatch(EventShowLayer, nil)
	return nil
}

// FeatureByID returns the entity with id from either subset.
func (s *Store) FeatureByID(id string) (*Feature, bool) {
	if f, ok := s.visible[id]; ok {
		return f, true
	}
	f, ok := s.hidden[id]
	return f, ok
}

// VisibleByID returns the entity with id if it is visible.
func (s *Store) VisibleByID(id string) (*Feature, bool) {
	f, ok := s.visible[id]
	return f, ok
}

// HiddenByID returns the entity with id if it is hidden.
func (s *Store) HiddenByID(id string) (*Feature, bool) {
	f, ok := s.hidden[id]
	return f, ok
}

// HasFeature reports whether id names an entity of this store.
func (s *Store) HasFeature(id string) bool {
	_, ok := s.FeatureByID(id)
	return ok
}

// AttributesByID returns a copy of the attributes of the entity with id.
func (s *Store) AttributesByID(id string) (Attributes, bool) {
	f, ok := s.FeatureByID(id)
	if !ok {
		return nil, false
	}
	return f.attrs.Clone(), true
}

// Len returns the number of entities in both subsets.
func (s *Store) Len() int {
	return len(s.visible) + len(s.hidden)
}

// Features returns all entities in insertion order.
func (s *Store) Features() []*Feature {
	fs := make([]*Feature, 0, s.Len())
	for _, f := range s.visible {
		fs = append(fs, f)
	}
	for _, f := range s.hidden {
		fs = append(fs, f)
	}
	sortBySeq(fs)
	return fs
}

// VisibleFeatures returns the visible entities in insertion order.
func (s *Store) VisibleFeatures() []*Feature {
	return sortedValues(s.visible)
}

// HiddenFeatures returns the hidden entities in insertion order.
func (s *Store) HiddenFeatures() []*Feature {
	return sortedValues(s.hidden)
}

// ForEach calls fn for every entity in insertion order.
func (s *Store) ForEach(fn func(f *Feature)) {
	for _, f := range s.Features() {
		fn(f)
	}
}

// InfoWindowFor returns the popup configuration of f.
func (s *Store) InfoWindowFor(f *Feature) (infowindow.InfoWindow, bool) {
	if s.infoWindow == nil {
		return infowindow.InfoWindow{}, false
	}
	return s.infoWindow(f)
}

// SetStyle replaces the single-entity style. nil restores the default.
func (s *Store) SetStyle(fn StyleFunc) {
	if fn == nil {
		fn = DefaultStyle
	}
	s.style = fn
}

// SetClusterStyle replaces the cluster style. nil restores the default.
func (s *Store) SetClusterStyle(fn ClusterStyleFunc) {
	if fn == nil {
		fn = DefaultClusterStyle
	}
	s.clusterStyle = fn
}

// StyleOf returns the styles of a renderable produced by this store.
func (s *Store) StyleOf(r Renderable, resolution float64) []Style {
	if c, ok := r.(*Cluster); ok && c.Size() > 1 {
		return s.clusterStyle(c, resolution)
	}
	members := r.Members()
	if len(members) == 0 {
		return nil
	}
	return s.style(members[0], resolution)
}

// LayerType implements Layer.
func (s *Store) LayerType() string { return s.typ }

// LayerVisible implements Layer.
func (s *Store) LayerVisible() bool { return !s.layerHidden }

// ZIndex implements Layer.
func (s *Store) ZIndex() int { return s.zIndex }

func (s *Store) checkActive() error {
	if s.binder == nil {
		return fmt.Errorf("store %q: %w", s.typ, ErrNotActive)
	}
	return nil
}

// changed invalidates the cluster view.
func (s *Store) changed() {
	s.version++
	s.cache = nil
}

func (s *Store) selectFeatures(sel Selector, scope []*Feature, inScope func(*Feature) bool) ([]*Feature, error) {
	if sel.isPredicate() {
		out := make([]*Feature, 0, len(scope))
		for _, f := range scope {
			if sel.pred(f) {
				out = append(out, f)
			}
		}
		return out, nil
	}

	ids := slices.Clone(sel.ids)
	for _, a := range sel.attrs {
		id, err := s.FeatureID(a)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	var (
		out     []*Feature
		missing []string
		seen    = make(map[string]bool, len(ids))
	)
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		f, ok := s.FeatureByID(id)
		if !ok {
			missing = append(missing, id)
			continue
		}
		if inScope(f) {
			out = append(out, f)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrFeatureNotFound, s.typ, strings.Join(missing, ", "))
	}
	return out, nil
}

func sortedValues(m map[string]*Feature) []*Feature {
	fs := make([]*Feature, 0, len(m))
	for _, f := range m {
		fs = append(fs, f)
	}
	sortBySeq(fs)
	return fs
}

func sortBySeq(fs []*Feature) {
	slices.SortFunc(fs, func(a, b *Feature) int {
		return cmp.Compare(a.seq, b.seq)
	})
}
