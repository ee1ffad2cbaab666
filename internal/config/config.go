// Package config loads automation tuning parameters from an optional YAML
// file in the workspace. Every knob has a default that matches the values the
// engine was tuned with; an absent file or field keeps the default.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all tunable automation parameters.
type Config struct {
	// WindowTitle is the hint used to locate the editor window.
	WindowTitle string `yaml:"window_title"`

	Voting      VotingConfig      `yaml:"voting"`
	Anchor      AnchorConfig      `yaml:"anchor"`
	Fingerprint FingerprintConfig `yaml:"fingerprint"`
	Viewport    ViewportConfig    `yaml:"viewport"`
	Replay      ReplayConfig      `yaml:"replay"`
}

// VotingConfig tunes the origin-translation voting strategy.
type VotingConfig struct {
	BinSizeX       float64 `yaml:"bin_size_x"`
	BinSizeY       float64 `yaml:"bin_size_y"`
	MaxCandidates  int     `yaml:"max_candidates"`
	MinInliers     int     `yaml:"min_inliers"`
	MissingPenalty float64 `yaml:"missing_penalty"`
	ToleranceScale float64 `yaml:"tolerance_scale"`
}

// AnchorConfig tunes the relative-anchor and degenerate alignment fallbacks.
type AnchorConfig struct {
	MaxNeighbors   int     `yaml:"max_neighbors"`
	MinMatches     int     `yaml:"min_matches"`
	MinModelDelta  float64 `yaml:"min_model_delta"`
	RatioTolerance float64 `yaml:"ratio_tolerance"`
	MaxAnisotropy  float64 `yaml:"max_anisotropy"`
	ToleranceScale float64 `yaml:"tolerance_scale"`

	// OrdinaryMinMatches is the floor for the confirm-only position match.
	OrdinaryMinMatches int `yaml:"ordinary_min_matches"`
}

// FingerprintConfig tunes duplicate-title disambiguation.
type FingerprintConfig struct {
	Enabled        bool    `yaml:"enabled"`
	KNeighbors     int     `yaml:"k_neighbors"`
	RoundDigits    int     `yaml:"round_digits"`
	MinOverlap     int     `yaml:"min_overlap"`
	MaxDistance    float64 `yaml:"max_distance"`
	RatioTolerance float64 `yaml:"ratio_tolerance"`
	CacheDir       string  `yaml:"cache_dir"`
}

// ViewportConfig tunes panning and visibility checks.
type ViewportConfig struct {
	SafeMarginRatio float64 `yaml:"safe_margin_ratio"`
	PanStepPixels   int     `yaml:"pan_step_pixels"`
	MaxPanSteps     int     `yaml:"max_pan_steps"`
	SyncThresholdPx float64 `yaml:"sync_threshold_px"`
}

// ReplayConfig controls the optional step replay log.
type ReplayConfig struct {
	Enabled            bool   `yaml:"enabled"`
	CaptureScreenshots bool   `yaml:"capture_screenshots"`
	RecordAllSteps     bool   `yaml:"record_all_steps"`
	OutputDir          string `yaml:"output_dir"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		WindowTitle: "Node Graph Editor",
		Voting: VotingConfig{
			BinSizeX:       80.0,
			BinSizeY:       40.0,
			MaxCandidates:  8,
			MinInliers:     4,
			MissingPenalty: 0.5,
			ToleranceScale: 0.75,
		},
		Anchor: AnchorConfig{
			MaxNeighbors:       8,
			MinMatches:         2,
			MinModelDelta:      20.0,
			RatioTolerance:     0.25,
			MaxAnisotropy:      0.20,
			ToleranceScale:     1.20,
			OrdinaryMinMatches: 3,
		},
		Fingerprint: FingerprintConfig{
			Enabled:        true,
			KNeighbors:     4,
			RoundDigits:    3,
			MinOverlap:     2,
			MaxDistance:    0.35,
			RatioTolerance: 0.30,
			CacheDir:       "runtime/cache",
		},
		Viewport: ViewportConfig{
			SafeMarginRatio: 0.12,
			PanStepPixels:   260,
			MaxPanSteps:     24,
			SyncThresholdPx: 60.0,
		},
		Replay: ReplayConfig{
			Enabled:   false,
			OutputDir: "runtime/replay",
		},
	}
}

// Load reads the config file at path, overlaying it on the defaults. A
// missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
