// Package executor turns abstract graph-editing steps into synthetic input
// against the editor window, driven by capture, recognition and calibration.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/assign"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/calibrate"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/capture"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/config"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/graph"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/input"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/session"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/snapshot"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/vision"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/pkg/geometry"
)

// Executor runs steps against the editor. It owns the capture-detect-assign
// loop; all mutable run state lives in the Session so a controller thread can
// pause or cancel from outside.
type Executor struct {
	cfg      config.Config
	log      *slog.Logger
	capturer capture.WindowCapturer
	detector vision.Detector
	in       input.Input

	engine   *calibrate.Engine
	assigner *assign.Assigner
	sess     *session.Session
	cache    *snapshot.Cache
	viewport *Viewport
	recorder *Recorder

	model *graph.Model

	stepSeq int
}

// New wires an executor for one target model.
func New(
	cfg config.Config,
	model *graph.Model,
	capturer capture.WindowCapturer,
	detector vision.Detector,
	in input.Input,
	recorder *Recorder,
	log *slog.Logger,
) *Executor {
	sess := session.New()
	return &Executor{
		cfg:      cfg,
		log:      log,
		capturer: capturer,
		detector: detector,
		in:       in,
		engine:   calibrate.NewEngine(cfg, log),
		assigner: assign.NewAssigner(cfg, log),
		sess:     sess,
		cache:    snapshot.NewCache(),
		viewport: NewViewport(cfg.Viewport, in, sess, log),
		recorder: recorder,
		model:    model,
	}
}

// Session exposes the run state for the controlling thread.
func (e *Executor) Session() *session.Session { return e.sess }

// Execute runs one step end to end: entry guard, preparation passes, the
// handler itself with at most one retry, then the invalidations the step
// plan declares.
func (e *Executor) Execute(ctx context.Context, step Step) error {
	if err := e.waitRunnable(ctx); err != nil {
		return &OperationError{Kind: step.Kind, NodeID: step.NodeID, Err: err}
	}

	plan, ok := PlanFor(step.Kind)
	if !ok {
		return &OperationError{Kind: step.Kind, NodeID: step.NodeID, Err: fmt.Errorf("unknown step kind %q", step.Kind)}
	}

	// Before the first calibration only node creation can run; it is the
	// one operation that can bootstrap the transform.
	if _, calibrated := e.sess.Transform(); !calibrated && !plan.CreatesNode {
		return &OperationError{Kind: step.Kind, NodeID: step.NodeID, Err: session.ErrNotCalibrated}
	}

	if plan.RequiresViewSync && e.sess.NeedsViewSync() {
		if err := e.syncView(ctx); err != nil {
			return &OperationError{Kind: step.Kind, NodeID: step.NodeID, Err: err}
		}
	}
	if plan.RequiresConnectPrepare && e.sess.NeedsConnectPrewarm() {
		if err := e.prewarmConnect(ctx); err != nil {
			return &OperationError{Kind: step.Kind, NodeID: step.NodeID, Err: err}
		}
	}

	e.stepSeq++
	index := e.stepSeq
	e.recordStage(stageBefore, index, step, plan, nil, 0, 0)

	start := time.Now()
	attempts := 1
	err := plan.Handler(e, ctx, step)
	if err != nil && recoverable(err) && !e.sess.Canceled() {
		e.log.Warn("step failed, retrying once", "step", step.Kind, "node", step.NodeID, "error", err)
		if panErr := e.fallbackToAnchor(ctx); panErr != nil {
			e.log.Warn("anchor fallback pan failed", "error", panErr)
		}
		e.cache.InvalidateAll()
		attempts = 2
		err = plan.Handler(e, ctx, step)
	}

	if err == nil {
		if plan.MutatesLayout {
			e.sess.MarkViewChanged()
		}
		if plan.InvalidateCacheOnSuccess {
			e.cache.InvalidateAll()
		}
	}

	e.recordStage(stageAfter, index, step, plan, err, attempts, time.Since(start))
	if err != nil {
		return &OperationError{Kind: step.Kind, NodeID: step.NodeID, Err: err}
	}
	return nil
}

// waitRunnable blocks while paused and reports cancellation.
func (e *Executor) waitRunnable(ctx context.Context) error {
	for {
		if e.sess.Canceled() {
			return ErrRunCanceled
		}
		if !e.sess.Paused() {
			return nil
		}
		input.WaitUntil(ctx, time.Second, func() bool {
			return !e.sess.Paused() || e.sess.Canceled()
		})
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// observe returns the scene for the current view token, capturing and
// detecting only when the cache cannot answer.
func (e *Executor) observe(ctx context.Context) (*snapshot.Scene, geometry.RectInt, error) {
	token := e.sess.ViewToken()
	if scene, ok := e.cache.Get(token); ok {
		return scene, capture.CanvasRegion(scene.Frame), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, geometry.RectInt{}, err
	}

	frame, err := e.capturer.CaptureWindow(e.cfg.WindowTitle)
	if err != nil {
		return nil, geometry.RectInt{}, fmt.Errorf("observe: %w", err)
	}
	if rect, err := e.capturer.WindowRect(e.cfg.WindowTitle); err == nil {
		e.sess.SetWindowOrigin(rect.TopLeft())
	} else {
		e.log.Warn("window rect unavailable, keeping last origin", "error", err)
	}

	scene := &snapshot.Scene{
		Frame:      frame,
		Detections: e.detector.DetectNodes(frame),
		Token:      token,
	}
	e.cache.Put(scene)
	return scene, capture.CanvasRegion(frame), nil
}

// observeFresh discards the cache first, for verification right after an
// input that changed the screen without advancing the token yet.
func (e *Executor) observeFresh(ctx context.Context) (*snapshot.Scene, geometry.RectInt, error) {
	e.cache.InvalidateAll()
	return e.observe(ctx)
}

// observeFor returns a scene usable for the named nodes: a cached scene that
// carries a dirty mark for any of them is recaptured instead of served.
func (e *Executor) observeFor(ctx context.Context, nodeIDs ...string) (*snapshot.Scene, geometry.RectInt, error) {
	token := e.sess.ViewToken()
	for _, id := range nodeIDs {
		if !e.cache.UsableFor(token, id) {
			return e.observeFresh(ctx)
		}
	}
	return e.observe(ctx)
}

// syncView compares where visible nodes are detected against where the
// transform predicts them. Small drifts are remembered per node; a drift
// beyond the threshold forces a recalibration from the same frame.
func (e *Executor) syncView(ctx context.Context) error {
	scene, roi, err := e.observe(ctx)
	if err != nil {
		return err
	}
	t, ok := e.sess.Transform()
	if !ok {
		return session.ErrNotCalibrated
	}

	bindings := e.assigner.Assign(e.model, scene.Detections, t)
	token := e.sess.ViewToken()
	worst := 0.0
	for id, b := range bindings {
		if !b.Visible {
			continue
		}
		node := e.model.Node(id)
		drift := b.EditorAnchor.Sub(t.Apply(node.Pos))
		e.sess.Deltas.Set(token, id, drift.Scale(1/t.Scale))
		worst = math.Max(worst, math.Max(math.Abs(drift.X), math.Abs(drift.Y)))
	}

	if worst > e.cfg.Viewport.SyncThresholdPx {
		e.log.Info("view drifted beyond threshold, recalibrating", "worst_px", worst)
		if err := e.recalibrate(scene, roi); err != nil {
			return err
		}
		e.sess.Deltas.Clear()
	}
	e.sess.MarkViewSynced()
	return nil
}

// prewarmConnect parks the pointer over the canvas and warms the scene cache
// so the first drag of a connection does not race a stale frame.
func (e *Executor) prewarmConnect(ctx context.Context) error {
	_, roi, err := e.observe(ctx)
	if err != nil {
		return err
	}
	center := e.sess.EditorToScreen(roi.Center())
	if err := e.in.MoveMouse(int(center.X), int(center.Y)); err != nil {
		return fmt.Errorf("prewarm: %w", err)
	}
	e.sess.MarkConnectPrewarmed()
	return nil
}

// recalibrate runs the strategy chain over an existing scene and installs
// the result.
func (e *Executor) recalibrate(scene *snapshot.Scene, roi geometry.RectInt) error {
	var current *geometry.ViewTransform
	if t, ok := e.sess.Transform(); ok {
		current = &t
	}
	result, err := e.engine.Calibrate(e.model, scene.Detections, roi, current)
	if err != nil {
		e.sess.InvalidateTransform()
		return err
	}
	e.sess.SetTransform(result.Transform)
	return nil
}

// fallbackToAnchor pans the most recently created node back into the safe
// region before a retry. With no creation history it does nothing.
func (e *Executor) fallbackToAnchor(ctx context.Context) error {
	head := e.sess.History.Head()
	if head == "" {
		return nil
	}
	node := e.model.Node(head)
	if node == nil {
		return nil
	}
	_, roi, err := e.observe(ctx)
	if err != nil {
		return err
	}
	return e.viewport.EnsureVisible(ctx, roi, node.Pos)
}

const (
	stageBefore = "before"
	stageAfter  = "after"
)

// recordStage emits one replay entry. Steps that declare replay IO are always
// logged; the rest only when the recorder is configured to record every step.
func (e *Executor) recordStage(stage string, index int, step Step, plan StepPlan, err error, attempts int, elapsed time.Duration) {
	if !plan.RecordReplayIO && !e.recorder.RecordsAll() {
		return
	}
	entry := ReplayEntry{
		Time:      time.Now(),
		Stage:     stage,
		StepIndex: index,
		Step:      step.Kind,
		NodeID:    step.NodeID,
		Inputs:    stepInputs(step),
		Status:    "started",
		ViewToken: uint64(e.sess.ViewToken()),
	}
	if t, ok := e.sess.Transform(); ok {
		entry.Origin = &t.Origin
	}
	if stage == stageAfter {
		entry.Status = "ok"
		entry.Attempts = attempts
		entry.DurationMs = elapsed.Milliseconds()
		if err != nil {
			entry.Status = "failed"
			entry.Error = err.Error()
		}
		if plan.RecordReplayIO {
			if scene, ok := e.cache.Get(e.sess.ViewToken()); ok {
				name, shotErr := e.recorder.SaveFrame(scene.Frame)
				if shotErr != nil {
					e.log.Warn("replay screenshot failed", "error", shotErr)
				}
				entry.Screenshot = name
			}
		}
	}
	if recErr := e.recorder.Record(entry); recErr != nil {
		e.log.Warn("replay record failed", "error", recErr)
	}
}

// stepInputs collects the step's declared operation inputs for the replay
// log.
func stepInputs(step Step) map[string]any {
	in := map[string]any{}
	if step.Title != "" {
		in["title"] = step.Title
	}
	if step.Pos != (geometry.Point2D{}) {
		in["pos"] = step.Pos
	}
	if len(step.Edges) > 0 {
		in["edges"] = step.Edges
	}
	if len(step.Params) > 0 {
		in["params"] = step.Params
	}
	if len(step.PortTypes) > 0 {
		in["port_types"] = step.PortTypes
	}
	if step.Count > 0 {
		in["count"] = step.Count
	}
	if len(in) == 0 {
		return nil
	}
	return in
}
