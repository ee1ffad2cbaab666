// Package snapshot caches the most recent capture-and-detect result so that
// consecutive steps on an unchanged view skip redundant screenshots and OCR.
package snapshot

import (
	"image"
	"sync"

	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/vision"
)

// ViewToken identifies one viewport state. Any pan, zoom or layout mutation
// advances the token, which implicitly invalidates everything recorded under
// older tokens.
type ViewToken uint64

// Scene is one captured frame with its detections, tagged with the view
// token it was taken under.
type Scene struct {
	Frame      image.Image
	Detections []vision.Detection
	Token      ViewToken
}

// Cache holds at most one scene. Per-node dirty marks let a step invalidate
// only the nodes it touched while the rest of the scene stays usable.
type Cache struct {
	mu    sync.Mutex
	scene *Scene
	dirty map[string]bool
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{dirty: map[string]bool{}}
}

// Put stores the scene, replacing any previous one and clearing dirty marks.
func (c *Cache) Put(scene *Scene) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scene = scene
	c.dirty = map[string]bool{}
}

// Get returns the cached scene if it was captured under the given token.
func (c *Cache) Get(token ViewToken) (*Scene, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scene == nil || c.scene.Token != token {
		return nil, false
	}
	return c.scene, true
}

// UsableFor reports whether the cached scene can answer a query about the
// node: the token must match and the node must not be marked dirty.
func (c *Cache) UsableFor(token ViewToken, nodeID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scene != nil && c.scene.Token == token && !c.dirty[nodeID]
}

// MarkNodeDirty flags one node as stale without discarding the scene.
func (c *Cache) MarkNodeDirty(nodeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirty[nodeID] = true
}

// InvalidateAll discards the cached scene entirely.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scene = nil
	c.dirty = map[string]bool{}
}
