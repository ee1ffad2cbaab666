package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/calibrate"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/capture"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/config"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/graph"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/vision"
)

func newCalibrateCmd() *cobra.Command {
	var (
		graphPath string
		framePath string
		ocrLang   string
	)

	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Run recognition and calibration once and report the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			model, err := graph.LoadJSON(graphPath)
			if err != nil {
				return err
			}
			capturer, err := capture.NewFileCapturer(framePath, 0)
			if err != nil {
				return err
			}

			log := slog.Default()
			ocr, err := vision.NewTitleReader(ocrLang)
			if err != nil {
				return err
			}
			defer ocr.Close()
			detector := vision.NewOpenCVDetector(ocr, log)

			frame, err := capturer.CaptureWindow(cfg.WindowTitle)
			if err != nil {
				return err
			}
			detections := detector.DetectNodes(frame)
			log.Info("detected nodes", "count", len(detections))
			for _, d := range detections {
				log.Debug("detection", "title", d.Title,
					"x", d.BBox.X, "y", d.BBox.Y, "w", d.BBox.Width, "h", d.BBox.Height)
			}

			engine := calibrate.NewEngine(cfg, log)
			result, err := engine.Calibrate(model, detections, capture.CanvasRegion(frame), nil)
			if err != nil {
				return err
			}
			fmt.Printf("strategy=%s score=%.1f matched=%d origin=(%.1f, %.1f) scale=%.2f\n",
				result.Strategy, result.Score, result.Matched,
				result.Transform.Origin.X, result.Transform.Origin.Y, result.Transform.Scale)
			return nil
		},
	}

	cmd.Flags().StringVar(&graphPath, "graph", "", "target graph JSON file")
	cmd.Flags().StringVar(&framePath, "frame", "", "editor frame PNG")
	cmd.Flags().StringVar(&ocrLang, "ocr-lang", "eng", "tesseract language for node titles")
	cmd.MarkFlagRequired("graph")
	cmd.MarkFlagRequired("frame")
	return cmd
}
