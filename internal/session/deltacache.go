package session

import (
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/snapshot"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/pkg/geometry"
)

// PositionDeltaCache records, per node, the observed drift between where the
// transform predicts the node and where it was actually detected, in model
// units. New nodes are placed with the averaged drift of their nearest
// already-positioned neighbors; the model position itself is never rewritten.
// Entries are scoped to the view token they were observed under.
type PositionDeltaCache struct {
	token  snapshot.ViewToken
	deltas map[string]geometry.Point2D
}

// NewPositionDeltaCache returns an empty cache.
func NewPositionDeltaCache() *PositionDeltaCache {
	return &PositionDeltaCache{deltas: map[string]geometry.Point2D{}}
}

// Set records the drift for a node under the given token. A token change
// drops all previous entries first.
func (c *PositionDeltaCache) Set(token snapshot.ViewToken, nodeID string, delta geometry.Point2D) {
	if token != c.token {
		c.deltas = map[string]geometry.Point2D{}
		c.token = token
	}
	c.deltas[nodeID] = delta
}

// Get returns the drift recorded for a node under the given token.
func (c *PositionDeltaCache) Get(token snapshot.ViewToken, nodeID string) (geometry.Point2D, bool) {
	if token != c.token {
		return geometry.Point2D{}, false
	}
	d, ok := c.deltas[nodeID]
	return d, ok
}

// All returns a copy of every drift recorded under the given token.
func (c *PositionDeltaCache) All(token snapshot.ViewToken) map[string]geometry.Point2D {
	if token != c.token {
		return nil
	}
	out := make(map[string]geometry.Point2D, len(c.deltas))
	for id, d := range c.deltas {
		out[id] = d
	}
	return out
}

// Clear drops all entries.
func (c *PositionDeltaCache) Clear() {
	c.deltas = map[string]geometry.Point2D{}
	c.token = 0
}
