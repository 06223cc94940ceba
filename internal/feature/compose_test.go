package feature

import (
	"testing"

	"github.com/MeKo-Tech/trackmap/internal/event"
	"github.com/MeKo-Tech/trackmap/internal/infowindow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func byKind(attrs Attributes) string {
	return attrs.String("kind")
}

func newStore(t *testing.T, typ string, opts ...func(*Options)) *Store {
	t.Helper()
	o := Options{Type: typ, Geometry: pointGeometry}
	for _, fn := range opts {
		fn(&o)
	}
	s, err := New(o)
	require.NoError(t, err)
	return s
}

func TestCompose_RoutesByClassify(t *testing.T) {
	a := newStore(t, "x")
	b := newStore(t, "y")
	c, err := Compose(ComposeOptions{Classify: byKind, Stores: []Manager{a, b}})
	require.NoError(t, err)
	assert.Equal(t, "x_y", c.Type())
	require.NoError(t, c.Activate(&fakeBinder{}))

	attrs := Attributes{"id": "7", "kind": "y", "x": 1.0, "y": 1.0}
	require.NoError(t, c.Add(attrs))

	assert.Equal(t, 0, a.Len())
	assert.True(t, b.HasFeature("7"))

	id, err := c.FeatureID(attrs)
	require.NoError(t, err)
	assert.Equal(t, "y#7", id)

	f, ok := c.FeatureByID("y#7")
	require.True(t, ok)
	assert.Equal(t, "y", f.Type())

	cid, ok := c.ComposedID(f)
	require.True(t, ok)
	assert.Equal(t, "y#7", cid)
}

func TestCompose_RejectsActiveDelegate(t *testing.T) {
	a := newStore(t, "x")
	require.NoError(t, a.Activate(&fakeBinder{}))

	_, err := Compose(ComposeOptions{Classify: byKind, Stores: []Manager{a, newStore(t, "y")}})
	assert.ErrorIs(t, err, ErrAlreadyActive)
}

func TestCompose_Validation(t *testing.T) {
	_, err := Compose(ComposeOptions{Stores: []Manager{newStore(t, "x")}})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = Compose(ComposeOptions{Classify: byKind})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = Compose(ComposeOptions{Classify: byKind, Stores: []Manager{newStore(t, "x"), newStore(t, "x")}})
	assert.ErrorIs(t, err, ErrDuplicateType)
}

func TestCompose_UnknownClassification(t *testing.T) {
	c, err := Compose(ComposeOptions{Classify: byKind, Stores: []Manager{newStore(t, "x")}})
	require.NoError(t, err)
	require.NoError(t, c.Activate(&fakeBinder{}))

	err = c.Add(Attributes{"id": "1", "kind": "nope", "x": 0.0, "y": 0.0})
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestCompose_BatchIsCheckedBeforeRouting(t *testing.T) {
	a := newStore(t, "x")
	b := newStore(t, "y")
	c, err := Compose(ComposeOptions{Classify: byKind, Stores: []Manager{a, b}})
	require.NoError(t, err)
	require.NoError(t, c.Activate(&fakeBinder{}))
	require.NoError(t, c.Add(Attributes{"id": "1", "kind": "y", "x": 0.0, "y": 0.0}))

	err = c.Add(
		Attributes{"id": "1", "kind": "x", "x": 0.0, "y": 0.0},
		Attributes{"id": "1", "kind": "y", "x": 0.0, "y": 0.0},
	)
	assert.ErrorIs(t, err, ErrDuplicateFeature)
	assert.Equal(t, 0, a.Len())
}

func TestCompose_UpdateRemoveHideShow(t *testing.T) {
	a := newStore(t, "x")
	b := newStore(t, "y")
	c, err := Compose(ComposeOptions{Type: "xy", Classify: byKind, Stores: []Manager{a, b}})
	require.NoError(t, err)
	binder := &fakeBinder{}
	require.NoError(t, c.Activate(binder))
	assert.Len(t, binder.layers, 2)

	require.NoError(t, c.Add(
		Attributes{"id": "1", "kind": "x", "x": 0.0, "y": 0.0},
		Attributes{"id": "2", "kind": "y", "x": 0.0, "y": 0.0},
	))

	require.NoError(t, c.Update(Attributes{"id": "2", "kind": "y", "x": 4.0}))
	f, _ := b.FeatureByID("2")
	assert.Equal(t, 4.0, f.Attributes()["x"])

	require.NoError(t, c.Hide(IDs("x#1")))
	_, hidden := a.HiddenByID("1")
	assert.True(t, hidden)
	_, visible := c.VisibleByID("x#1")
	assert.False(t, visible)

	require.NoError(t, c.Show(Attrs(Attributes{"id": "1", "kind": "x"})))
	_, visible = c.VisibleByID("x#1")
	assert.True(t, visible)

	assert.ErrorIs(t, c.Remove(IDs("x#404")), ErrFeatureNotFound)
	assert.ErrorIs(t, c.Remove(IDs("no-separator")), ErrFeatureNotFound)

	require.NoError(t, c.Remove(Where(func(f *Feature) bool { return true })))
	assert.Empty(t, c.Features())
}

func TestCompose_PartialUpdateMergesExistingAttributes(t *testing.T) {
	a := newStore(t, "x")
	b := newStore(t, "y")
	c, err := Compose(ComposeOptions{Classify: byKind, Stores: []Manager{a, b}})
	require.NoError(t, err)
	require.NoError(t, c.Activate(&fakeBinder{}))
	require.NoError(t, c.Add(
		Attributes{"id": "1", "kind": "x", "x": 1.0, "y": 1.0},
		Attributes{"id": "2", "kind": "y", "x": 2.0, "y": 2.0},
	))

	require.NoError(t, c.Update(Attributes{"id": "2", "kind": "y", "speed": 4.0}))
	f, _ := b.FeatureByID("2")
	assert.Equal(t, 4.0, f.Attributes()["speed"])
	assert.Equal(t, 2.0, f.Attributes()["x"])

	require.NoError(t, c.Upsert(
		Attributes{"id": "1", "kind": "x", "speed": 1.0},
		Attributes{"id": "1", "kind": "x", "x": 5.0},
		Attributes{"id": "3", "kind": "y", "x": 3.0, "y": 3.0},
	))
	f, _ = a.FeatureByID("1")
	assert.Equal(t, 1.0, f.Attributes()["speed"])
	assert.Equal(t, 5.0, f.Attributes()["x"])
	assert.True(t, b.HasFeature("3"))
}

func TestCompose_RejectsBatchBeforeAnyDelegateWrites(t *testing.T) {
	a := newStore(t, "x")
	b := newStore(t, "y")
	c, err := Compose(ComposeOptions{Classify: byKind, Stores: []Manager{a, b}})
	require.NoError(t, err)
	require.NoError(t, c.Activate(&fakeBinder{}))

	err = c.Upsert(
		Attributes{"id": "1", "kind": "x", "x": 1.0, "y": 1.0},
		Attributes{"id": "2", "kind": "y", "speed": 4.0},
	)
	require.Error(t, err)
	assert.Equal(t, 0, a.Len())
	assert.Equal(t, 0, b.Len())
}

func TestCompose_ForwardsEvents(t *testing.T) {
	a := newStore(t, "x")
	c, err := Compose(ComposeOptions{Classify: byKind, Stores: []Manager{a}})
	require.NoError(t, err)
	require.NoError(t, c.Activate(&fakeBinder{}))

	var got []string
	c.On(EventAdd+","+EventClear, func(e *event.Event) {
		got = append(got, e.Type)
		assert.Same(t, c, e.Target)
	})

	require.NoError(t, c.Add(Attributes{"id": "1", "kind": "x", "x": 0.0, "y": 0.0}))
	require.NoError(t, c.Clear())

	assert.Equal(t, []string{EventAdd, EventClear}, got)
}

func TestCompose_RoutesPopupAndStyleLookups(t *testing.T) {
	withPopup := func(o *Options) {
		o.InfoWindow = StaticInfoWindow(infowindow.New("y-popup", infowindow.Bottom, infowindow.Offset{}))
	}
	a := newStore(t, "x")
	b := newStore(t, "y", withPopup)
	c, err := Compose(ComposeOptions{Classify: byKind, Stores: []Manager{a, b}})
	require.NoError(t, err)
	require.NoError(t, c.Activate(&fakeBinder{}))
	require.NoError(t, c.Add(
		Attributes{"id": "1", "kind": "x", "x": 0.0, "y": 0.0},
		Attributes{"id": "2", "kind": "y", "x": 0.0, "y": 0.0},
	))

	fx, _ := c.FeatureByID("x#1")
	_, ok := c.InfoWindowFor(fx)
	assert.False(t, ok)

	fy, _ := c.FeatureByID("y#2")
	w, ok := c.InfoWindowFor(fy)
	require.True(t, ok)
	assert.Equal(t, "y-popup", w.Template)

	assert.NotEmpty(t, c.StyleOf(fy, 1))
}

func TestCompose_Nested(t *testing.T) {
	inner, err := Compose(ComposeOptions{
		Type:     "inner",
		Classify: func(a Attributes) string { return a.String("sub") },
		Stores:   []Manager{newStore(t, "p"), newStore(t, "q")},
	})
	require.NoError(t, err)
	outer, err := Compose(ComposeOptions{
		Type:     "outer",
		Classify: byKind,
		Stores:   []Manager{inner, newStore(t, "r")},
	})
	require.NoError(t, err)
	require.NoError(t, outer.Activate(&fakeBinder{}))
	assert.True(t, inner.Active())

	attrs := Attributes{"id": "9", "kind": "inner", "sub": "q", "x": 0.0, "y": 0.0}
	require.NoError(t, outer.Add(attrs))

	id, err := outer.FeatureID(attrs)
	require.NoError(t, err)
	assert.Equal(t, "inner#q#9", id)

	f, ok := outer.FeatureByID(id)
	require.True(t, ok)
	assert.Equal(t, "q", f.Type())

	cid, ok := outer.ComposedID(f)
	require.True(t, ok)
	assert.Equal(t, id, cid)

	s, ok := outer.Store("q")
	require.True(t, ok)
	assert.True(t, s.HasFeature("9"))

	require.NoError(t, outer.Remove(IDs(id)))
	assert.False(t, s.HasFeature("9"))
}
