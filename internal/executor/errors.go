package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/calibrate"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/session"
)

// ErrAssignmentAmbiguous is returned when a step needs exactly one binding
// for a node but the frame cannot disambiguate it.
var ErrAssignmentAmbiguous = errors.New("node assignment ambiguous")

// ErrRunCanceled is returned from Execute once the session's cancel flag is
// set.
var ErrRunCanceled = errors.New("run canceled")

// OperationError wraps a step failure with the step identity. Unwrap exposes
// the underlying cause for errors.Is checks against the sentinels.
type OperationError struct {
	Kind   StepKind
	NodeID string
	Err    error
}

func (e *OperationError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("step %s on node %s: %v", e.Kind, e.NodeID, e.Err)
	}
	return fmt.Sprintf("step %s: %v", e.Kind, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// recoverable reports whether a failed attempt is worth the single retry.
// Every handler failure is, except calibration failures (retrying the same
// frame cannot produce new evidence), uncalibrated rejections and
// cancellation.
func recoverable(err error) bool {
	return !errors.Is(err, calibrate.ErrCalibrationFailed) &&
		!errors.Is(err, session.ErrNotCalibrated) &&
		!errors.Is(err, ErrRunCanceled) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// errNodeNotVisible is an internal condition: the step's target node has no
// binding in the current frame.
var errNodeNotVisible = errors.New("target node not visible")
