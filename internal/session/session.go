// Package session holds the mutable state of one automation run: the
// calibrated view transform, the viewport state token, creation history and
// the control flags the worker goroutine polls.
package session

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/snapshot"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/pkg/geometry"
)

// ErrNotCalibrated is returned by coordinate conversions before the first
// successful calibration or after the transform was invalidated.
var ErrNotCalibrated = errors.New("view transform not calibrated")

// Session is shared between the worker goroutine and the controller. The
// controller only touches the atomic flags; everything else is worker-side
// state guarded by the mutex for the occasional cross-thread read.
type Session struct {
	mu sync.Mutex

	transform    geometry.ViewTransform
	calibrated   bool
	windowOrigin geometry.Point2D

	viewToken    atomic.Uint64
	prewarmToken uint64
	syncToken    uint64

	History *CreationHistory
	Deltas  *PositionDeltaCache

	paused   atomic.Bool
	canceled atomic.Bool
}

// New returns a fresh session with token 1 so that a zero token never reads
// as current.
func New() *Session {
	s := &Session{
		History: NewCreationHistory(),
		Deltas:  NewPositionDeltaCache(),
	}
	s.viewToken.Store(1)
	return s
}

// Transform returns the current transform; ok is false when uncalibrated.
func (s *Session) Transform() (geometry.ViewTransform, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transform, s.calibrated
}

// SetTransform installs a newly calibrated transform.
func (s *Session) SetTransform(t geometry.ViewTransform) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transform = t
	s.calibrated = true
}

// InvalidateTransform drops the transform wholesale. There is no partial
// invalidation; any doubt about the view discards it entirely.
func (s *Session) InvalidateTransform() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calibrated = false
}

// SetWindowOrigin records where the editor window sits on the desktop, for
// editor-to-screen conversion.
func (s *Session) SetWindowOrigin(origin geometry.Point2D) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windowOrigin = origin
}

// ProgramToEditor maps a model position to editor-window pixels.
func (s *Session) ProgramToEditor(pos geometry.Point2D) (geometry.Point2D, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.calibrated {
		return geometry.Point2D{}, ErrNotCalibrated
	}
	return s.transform.Apply(pos), nil
}

// EditorToScreen maps editor-window pixels to absolute desktop pixels.
func (s *Session) EditorToScreen(p geometry.Point2D) geometry.Point2D {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.windowOrigin.Add(p)
}

// ProgramToScreen composes the two mappings.
func (s *Session) ProgramToScreen(pos geometry.Point2D) (geometry.Point2D, error) {
	editor, err := s.ProgramToEditor(pos)
	if err != nil {
		return geometry.Point2D{}, err
	}
	return s.EditorToScreen(editor), nil
}

// ViewToken returns the current viewport state token.
func (s *Session) ViewToken() snapshot.ViewToken {
	return snapshot.ViewToken(s.viewToken.Load())
}

// MarkViewChanged advances the token. Every pan, zoom or layout-mutating
// operation calls this; anything recorded under an older token is stale.
func (s *Session) MarkViewChanged() snapshot.ViewToken {
	return snapshot.ViewToken(s.viewToken.Add(1))
}

// NeedsConnectPrewarm reports whether the view changed since the last
// connection prewarm.
func (s *Session) NeedsConnectPrewarm() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prewarmToken != s.viewToken.Load()
}

// MarkConnectPrewarmed records the prewarm as current for this token.
func (s *Session) MarkConnectPrewarmed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prewarmToken = s.viewToken.Load()
}

// NeedsViewSync reports whether the view changed since the last position
// sync pass.
func (s *Session) NeedsViewSync() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncToken != s.viewToken.Load()
}

// MarkViewSynced records the sync as current for this token.
func (s *Session) MarkViewSynced() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncToken = s.viewToken.Load()
}

// Pause and Resume toggle the worker's pause flag.
func (s *Session) Pause()  { s.paused.Store(true) }
func (s *Session) Resume() { s.paused.Store(false) }

// Paused reports the pause flag.
func (s *Session) Paused() bool { return s.paused.Load() }

// Cancel requests the worker to stop at the next checkpoint. It is one-way.
func (s *Session) Cancel() { s.canceled.Store(true) }

// Canceled reports the cancel flag.
func (s *Session) Canceled() bool { return s.canceled.Load() }

// ResetRun rewinds per-run state for a fresh execution: history, deltas,
// cache tokens. The calibrated transform survives a rewind; the viewport has
// not moved.
func (s *Session) ResetRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.History.Reset()
	s.Deltas.Clear()
	s.prewarmToken = 0
	s.syncToken = 0
	s.paused.Store(false)
	s.canceled.Store(false)
}
