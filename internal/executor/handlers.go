package executor

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/assign"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/graph"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/input"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/session"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/snapshot"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/vision"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/pkg/geometry"
)

const (
	menuSettle   = 250 * time.Millisecond
	createSettle = 400 * time.Millisecond
	inputSettle  = 120 * time.Millisecond

	expanderInset = 12

	// placementNeighbors caps how many nearby drift entries bias a new
	// node's target position.
	placementNeighbors = 3
)

// runCreateNode places a node through the editor's add-node palette and
// verifies it appeared. On an uncalibrated session the node goes to the
// canvas center and its detection bootstraps the transform.
func (e *Executor) runCreateNode(ctx context.Context, step Step) error {
	node := e.model.Node(step.NodeID)
	if node == nil {
		node = &graph.Node{ID: step.NodeID, Title: step.Title, Pos: step.Pos}
		e.model.AddNode(node)
	}

	t, calibrated := e.sess.Transform()
	_, roi, err := e.observe(ctx)
	if err != nil {
		return err
	}

	var target geometry.Point2D
	if calibrated {
		if err := e.viewport.EnsureVisible(ctx, roi, node.Pos); err != nil {
			return err
		}
		t, _ = e.sess.Transform()
		target = t.Apply(node.Pos.Add(e.placementBias(node.Pos)))
	} else {
		target = roi.Center()
	}

	screen := e.sess.EditorToScreen(target)
	if err := e.in.Click(int(screen.X), int(screen.Y), input.ButtonRight); err != nil {
		return fmt.Errorf("open palette: %w", err)
	}
	input.Sleep(ctx, menuSettle)
	if err := e.in.TypeText(step.Title + "\n"); err != nil {
		return fmt.Errorf("type node title: %w", err)
	}
	input.Sleep(ctx, createSettle)

	scene, roi, err := e.observeFresh(ctx)
	if err != nil {
		return err
	}
	if !calibrated {
		if err := e.recalibrate(scene, roi); err != nil {
			return err
		}
		t, _ = e.sess.Transform()
	}

	bindings := e.assigner.Assign(e.model, scene.Detections, t)
	if !bindings[step.NodeID].Visible {
		return fmt.Errorf("created node %q not detected: %w", step.NodeID, errNodeNotVisible)
	}
	e.sess.History.Record(step.NodeID)
	e.log.Info("created node", "node", step.NodeID, "title", step.Title)
	return nil
}

// runConnect drags each edge from its source port to its destination port.
func (e *Executor) runConnect(ctx context.Context, step Step) error {
	for _, edge := range step.Edges {
		if err := e.connectEdge(ctx, edge); err != nil {
			return err
		}
	}
	return nil
}

// runConnectMerged is the batched form: the shared preparation already ran
// once for the whole batch, the edges themselves connect the same way.
func (e *Executor) runConnectMerged(ctx context.Context, step Step) error {
	return e.runConnect(ctx, step)
}

// runCreateAndConnect creates the node and immediately wires its edges while
// the fresh detection is still trustworthy.
func (e *Executor) runCreateAndConnect(ctx context.Context, step Step) error {
	if err := e.runCreateNode(ctx, step); err != nil {
		return err
	}
	return e.runConnect(ctx, step)
}

// connectEdge resolves both drag endpoints from one frame so the coordinates
// agree with a single viewport state; a pan between them would shift every
// node on screen.
func (e *Executor) connectEdge(ctx context.Context, edge graph.Edge) error {
	scene, src, dst, err := e.resolvePair(ctx, edge.SrcNode, edge.DstNode)
	if err != nil {
		return err
	}

	srcPt := e.portAnchor(scene, src.BBox, vision.PortSideRight, edge.SrcPort)
	dstPt := e.portAnchor(scene, dst.BBox, vision.PortSideLeft, edge.DstPort)
	from := e.sess.EditorToScreen(srcPt)
	to := e.sess.EditorToScreen(dstPt)
	if err := e.in.Drag(int(from.X), int(from.Y), int(to.X), int(to.Y)); err != nil {
		return fmt.Errorf("connect %s->%s: %w", edge.SrcNode, edge.DstNode, err)
	}
	input.Sleep(ctx, inputSettle)
	e.log.Info("connected", "src", edge.SrcNode, "dst", edge.DstNode)
	return nil
}

// resolvePair binds both endpoints of a connection from the same scene. When
// either is missing the viewport centers the pair's model-space midpoint,
// which gives both nodes the best chance to fit on screen together, and both
// are re-resolved from the post-pan frame.
func (e *Executor) resolvePair(ctx context.Context, srcID, dstID string) (*snapshot.Scene, assign.Binding, assign.Binding, error) {
	var none assign.Binding
	srcNode := e.model.Node(srcID)
	dstNode := e.model.Node(dstID)
	if srcNode == nil || dstNode == nil {
		return nil, none, none, fmt.Errorf("connect %s->%s: unknown node", srcID, dstID)
	}

	scene, roi, err := e.observeFor(ctx, srcID, dstID)
	if err != nil {
		return nil, none, none, err
	}
	t, ok := e.sess.Transform()
	if !ok {
		return nil, none, none, session.ErrNotCalibrated
	}
	bindings := e.assigner.Assign(e.model, scene.Detections, t)
	src, dst := bindings[srcID], bindings[dstID]
	if src.Visible && dst.Visible {
		return scene, src, dst, nil
	}

	mid := geometry.Point2D{
		X: (srcNode.Pos.X + dstNode.Pos.X) / 2,
		Y: (srcNode.Pos.Y + dstNode.Pos.Y) / 2,
	}
	if err := e.viewport.CenterOn(ctx, roi, mid); err != nil {
		return nil, none, none, err
	}
	scene, _, err = e.observe(ctx)
	if err != nil {
		return nil, none, none, err
	}
	t, _ = e.sess.Transform()
	bindings = e.assigner.Assign(e.model, scene.Detections, t)
	src, dst = bindings[srcID], bindings[dstID]
	if !src.Visible {
		return nil, none, none, e.missingBinding(scene, srcNode)
	}
	if !dst.Visible {
		return nil, none, none, e.missingBinding(scene, dstNode)
	}
	return scene, src, dst, nil
}

// placementBias averages the recorded drift of the nearest already-positioned
// neighbors, in model units, so a new node lands beside where its neighbors
// actually sit rather than at the bare projection.
func (e *Executor) placementBias(pos geometry.Point2D) geometry.Point2D {
	deltas := e.sess.Deltas.All(e.sess.ViewToken())
	if len(deltas) == 0 {
		return geometry.Point2D{}
	}
	type neighbor struct {
		id    string
		dist  float64
		delta geometry.Point2D
	}
	var neighbors []neighbor
	for id, d := range deltas {
		node := e.model.Node(id)
		if node == nil {
			continue
		}
		neighbors = append(neighbors, neighbor{id: id, dist: pos.Distance(node.Pos), delta: d})
	}
	if len(neighbors) == 0 {
		return geometry.Point2D{}
	}
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].dist != neighbors[j].dist {
			return neighbors[i].dist < neighbors[j].dist
		}
		return neighbors[i].id < neighbors[j].id
	})
	if len(neighbors) > placementNeighbors {
		neighbors = neighbors[:placementNeighbors]
	}
	var sum geometry.Point2D
	for _, n := range neighbors {
		sum = sum.Add(n.delta)
	}
	return sum.Scale(1 / float64(len(neighbors)))
}

// portAnchor locates the grab point for a port. Detected markers on the
// wanted side are matched by the index hint in the port name; with no
// markers the edge midpoint of the node box works for single-port edges.
func (e *Executor) portAnchor(
	scene *snapshot.Scene,
	bbox geometry.RectInt,
	side vision.PortSide,
	portName string,
) geometry.Point2D {
	var onSide []vision.PortDetection
	for _, p := range e.detector.DetectPorts(scene.Frame, bbox) {
		if p.Side == side {
			onSide = append(onSide, p)
		}
	}
	if len(onSide) > 0 {
		sort.Slice(onSide, func(i, j int) bool { return onSide[i].Index < onSide[j].Index })
		want := portIndexHint(portName)
		for _, p := range onSide {
			if p.Index == want {
				return p.BBox.Center()
			}
		}
		return onSide[0].BBox.Center()
	}

	y := float64(bbox.Y) + float64(bbox.Height)/2
	if side == vision.PortSideRight {
		return geometry.Point2D{X: float64(bbox.X + bbox.Width), Y: y}
	}
	return geometry.Point2D{X: float64(bbox.X), Y: y}
}

// runConfigNodeMerged opens the node's config panel and applies every field
// in one visit.
func (e *Executor) runConfigNodeMerged(ctx context.Context, step Step) error {
	b, err := e.resolveNode(ctx, step.NodeID)
	if err != nil {
		return err
	}
	center := e.sess.EditorToScreen(b.ScreenAnchor)
	// Double click opens the inline config editor.
	for i := 0; i < 2; i++ {
		if err := e.in.Click(int(center.X), int(center.Y), input.ButtonLeft); err != nil {
			return fmt.Errorf("open config of %s: %w", step.NodeID, err)
		}
	}
	input.Sleep(ctx, menuSettle)

	// The panel is open; the node's cached look is already stale.
	e.cache.MarkNodeDirty(step.NodeID)

	for _, key := range sortedKeys(step.Params) {
		if err := e.in.TypeText(step.Params[key] + "\t"); err != nil {
			return fmt.Errorf("set %s.%s: %w", step.NodeID, key, err)
		}
		input.Sleep(ctx, inputSettle)
	}
	if err := e.in.TypeText("\n"); err != nil {
		return fmt.Errorf("commit config of %s: %w", step.NodeID, err)
	}
	e.log.Info("configured node", "node", step.NodeID, "fields", len(step.Params))
	return nil
}

// runSetPortTypesMerged assigns a type to each named port through the port
// context menu.
func (e *Executor) runSetPortTypesMerged(ctx context.Context, step Step) error {
	b, err := e.resolveNode(ctx, step.NodeID)
	if err != nil {
		return err
	}
	scene, _, err := e.observe(ctx)
	if err != nil {
		return err
	}

	e.cache.MarkNodeDirty(step.NodeID)
	for _, port := range sortedKeys(step.PortTypes) {
		pt := e.portAnchor(scene, b.BBox, vision.PortSideLeft, port)
		screen := e.sess.EditorToScreen(pt)
		if err := e.in.Click(int(screen.X), int(screen.Y), input.ButtonRight); err != nil {
			return fmt.Errorf("open port menu %s.%s: %w", step.NodeID, port, err)
		}
		input.Sleep(ctx, menuSettle)
		if err := e.in.TypeText(step.PortTypes[port] + "\n"); err != nil {
			return fmt.Errorf("set type of %s.%s: %w", step.NodeID, port, err)
		}
		input.Sleep(ctx, inputSettle)
	}
	return nil
}

// runAddVariadicInputs clicks the add-input control Count times.
func (e *Executor) runAddVariadicInputs(ctx context.Context, step Step) error {
	return e.clickExpander(ctx, step, false)
}

// runAddBranchOutputs clicks the add-output control Count times.
func (e *Executor) runAddBranchOutputs(ctx context.Context, step Step) error {
	return e.clickExpander(ctx, step, true)
}

// clickExpander hits the expander control on the node's bottom edge: inputs
// grow from the left corner, outputs from the right.
func (e *Executor) clickExpander(ctx context.Context, step Step, rightSide bool) error {
	b, err := e.resolveNode(ctx, step.NodeID)
	if err != nil {
		return err
	}
	box := b.BBox
	x := box.X + expanderInset
	if rightSide {
		x = box.X + box.Width - expanderInset
	}
	pt := e.sess.EditorToScreen(geometry.Point2D{
		X: float64(x),
		Y: float64(box.Y + box.Height - expanderInset),
	})
	e.cache.MarkNodeDirty(step.NodeID)
	for i := 0; i < step.Count; i++ {
		if err := e.in.Click(int(pt.X), int(pt.Y), input.ButtonLeft); err != nil {
			return fmt.Errorf("expand %s: %w", step.NodeID, err)
		}
		input.Sleep(ctx, inputSettle)
	}
	return nil
}

// resolveNode observes and returns the binding for one node, panning it into
// view once when it is off screen. A scene marked dirty for the node is
// recaptured first.
func (e *Executor) resolveNode(ctx context.Context, nodeID string) (assign.Binding, error) {
	scene, roi, err := e.observeFor(ctx, nodeID)
	if err != nil {
		return assign.Binding{}, err
	}
	t, ok := e.sess.Transform()
	if !ok {
		return assign.Binding{}, fmt.Errorf("resolve %s: transform lost", nodeID)
	}
	bindings := e.assigner.Assign(e.model, scene.Detections, t)
	if b := bindings[nodeID]; b.Visible {
		return b, nil
	}

	node := e.model.Node(nodeID)
	if node == nil {
		return assign.Binding{}, fmt.Errorf("unknown node %q", nodeID)
	}
	if err := e.viewport.EnsureVisible(ctx, roi, node.Pos); err != nil {
		return assign.Binding{}, err
	}
	scene, _, err = e.observe(ctx)
	if err != nil {
		return assign.Binding{}, err
	}
	t, _ = e.sess.Transform()
	bindings = e.assigner.Assign(e.model, scene.Detections, t)
	b := bindings[nodeID]
	if !b.Visible {
		return assign.Binding{}, e.missingBinding(scene, node)
	}
	return b, nil
}

// missingBinding classifies an unresolvable node: a same-title detection that
// could not be attributed is ambiguous, no detection at all means the node is
// not visible.
func (e *Executor) missingBinding(scene *snapshot.Scene, node *graph.Node) error {
	if e.sameTitleDetected(scene.Detections, node.Title) {
		return fmt.Errorf("node %q: %w", node.ID, ErrAssignmentAmbiguous)
	}
	return fmt.Errorf("node %q: %w", node.ID, errNodeNotVisible)
}

func (e *Executor) sameTitleDetected(dets []vision.Detection, title string) bool {
	want := vision.NormalizeTitle(title)
	for _, d := range dets {
		if vision.NormalizeTitle(d.Title) == want {
			return true
		}
	}
	return false
}

// portIndexHint extracts a trailing number from a port name, "in_2" or
// "out3" style. Ports without one default to the first marker.
func portIndexHint(portName string) int {
	i := len(portName)
	for i > 0 && portName[i-1] >= '0' && portName[i-1] <= '9' {
		i--
	}
	if i == len(portName) {
		return 0
	}
	n, err := strconv.Atoi(portName[i:])
	if err != nil {
		return 0
	}
	return n
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
