package executor

import (
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/config"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/pkg/geometry"
)

// ReplayEntry is one line of the step replay log. Every step emits a pair of
// entries, one before the handler runs and one after it resolved.
type ReplayEntry struct {
	Time       time.Time      `json:"time"`
	Stage      string         `json:"stage"`
	StepIndex  int            `json:"step_index"`
	Step       StepKind       `json:"step"`
	NodeID     string         `json:"node_id,omitempty"`
	Inputs     map[string]any `json:"inputs,omitempty"`
	Status     string         `json:"status"`
	Error      string         `json:"error,omitempty"`
	Attempts   int            `json:"attempts,omitempty"`
	DurationMs int64          `json:"duration_ms,omitempty"`
	ViewToken  uint64         `json:"view_token"`
	Screenshot string         `json:"screenshot,omitempty"`

	// Origin is the calibrated view origin at record time, when one exists.
	Origin *geometry.Point2D `json:"origin,omitempty"`
}

// Recorder writes one JSONL replay log per run. A nil Recorder is valid and
// records nothing.
type Recorder struct {
	mu    sync.Mutex
	runID ulid.ULID
	dir   string
	file  *os.File
	enc   *json.Encoder
	shots bool
	all   bool
	seq   int
}

// NewRecorder opens the replay log for a new run. Returns nil when replay is
// disabled.
func NewRecorder(cfg config.ReplayConfig) (*Recorder, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	runID := ulid.Make()
	dir := filepath.Join(cfg.OutputDir, "run-"+runID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create replay dir: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, "steps.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("create replay log: %w", err)
	}
	return &Recorder{
		runID: runID,
		dir:   dir,
		file:  f,
		enc:   json.NewEncoder(f),
		shots: cfg.CaptureScreenshots,
		all:   cfg.RecordAllSteps,
	}, nil
}

// RecordsAll reports whether steps without declared replay IO are logged too.
func (r *Recorder) RecordsAll() bool {
	return r != nil && r.all
}

// RunID returns the run identifier.
func (r *Recorder) RunID() string {
	if r == nil {
		return ""
	}
	return r.runID.String()
}

// Record appends one entry. Errors are returned but a failed record never
// fails the run.
func (r *Recorder) Record(entry ReplayEntry) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enc.Encode(entry)
}

// SaveFrame stores a screenshot next to the log and returns its file name.
// Recording screenshots must be enabled; otherwise this is a no-op.
func (r *Recorder) SaveFrame(frame image.Image) (string, error) {
	if r == nil || !r.shots || frame == nil {
		return "", nil
	}
	r.mu.Lock()
	r.seq++
	name := fmt.Sprintf("frame-%04d.png", r.seq)
	r.mu.Unlock()

	f, err := os.Create(filepath.Join(r.dir, name))
	if err != nil {
		return "", fmt.Errorf("create screenshot: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, frame); err != nil {
		return "", fmt.Errorf("encode screenshot: %w", err)
	}
	return name, nil
}

// Close flushes and closes the log.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}
