package feature

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultStyle_HoverStroke(t *testing.T) {
	f := &Feature{id: "1", typ: "x", geom: orb.Point{0, 0}}

	styles := DefaultStyle(f, 1)
	require.Len(t, styles, 1)
	assert.Equal(t, "#3399cc", styles[0].Stroke)
	assert.Equal(t, 5.0, styles[0].Radius)

	f.SetHover(true)
	assert.Equal(t, "#ff6600", DefaultStyle(f, 1)[0].Stroke)
}

func TestDefaultClusterStyle_ColorBySize(t *testing.T) {
	tests := []struct {
		size int
		fill string
	}{
		{2, "rgba(0, 128, 0, 1)"},
		{8, "rgba(0, 128, 0, 1)"},
		{9, "rgba(255, 128, 0, 1)"},
		{25, "rgba(255, 128, 0, 1)"},
		{26, "rgba(192, 0, 0, 1)"},
	}

	for _, tt := range tests {
		c := &Cluster{members: make([]*Feature, tt.size)}
		styles := DefaultClusterStyle(c, 1)
		require.Len(t, styles, 1)
		assert.Equal(t, tt.fill, styles[0].Fill, "size %d", tt.size)
		assert.Equal(t, ClusterRadius(tt.size), styles[0].Radius)
	}
	assert.Equal(t, "26", DefaultClusterStyle(&Cluster{members: make([]*Feature, 26)}, 1)[0].Text)
}

func TestClusterRadius(t *testing.T) {
	assert.Equal(t, 10.0, ClusterRadius(2))
	assert.Equal(t, 15.0, ClusterRadius(20))
	assert.Equal(t, 18.0, ClusterRadius(100))
}
