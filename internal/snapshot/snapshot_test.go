package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/vision"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/pkg/geometry"
)

func TestCacheTokenValidity(t *testing.T) {
	c := NewCache()

	_, ok := c.Get(1)
	assert.False(t, ok)

	scene := &Scene{
		Token: 1,
		Detections: []vision.Detection{
			{Title: "Add", BBox: geometry.NewRectInt(10, 10, 200, 100)},
		},
	}
	c.Put(scene)

	got, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, scene, got)

	// An advanced token means the view changed since capture.
	_, ok = c.Get(2)
	assert.False(t, ok)
}

func TestCacheDirtyMarks(t *testing.T) {
	c := NewCache()
	c.Put(&Scene{Token: 3})

	assert.True(t, c.UsableFor(3, "n1"))
	c.MarkNodeDirty("n1")
	assert.False(t, c.UsableFor(3, "n1"))
	assert.True(t, c.UsableFor(3, "n2"))

	// A fresh scene clears the marks.
	c.Put(&Scene{Token: 4})
	assert.True(t, c.UsableFor(4, "n1"))
}

func TestCacheInvalidateAll(t *testing.T) {
	c := NewCache()
	c.Put(&Scene{Token: 5})
	c.InvalidateAll()

	_, ok := c.Get(5)
	assert.False(t, ok)
}
