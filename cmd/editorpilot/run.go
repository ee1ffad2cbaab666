package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/capture"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/config"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/executor"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/graph"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/input"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/vision"
)

func newRunCmd() *cobra.Command {
	var (
		graphPath string
		stepsPath string
		framePath string
		ocrLang   string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a step list against the editor",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			model, err := graph.LoadJSON(graphPath)
			if err != nil {
				return err
			}
			steps, err := executor.LoadSteps(stepsPath)
			if err != nil {
				return err
			}

			log := slog.Default()
			capturer, err := capture.NewFileCapturer(framePath, 0)
			if err != nil {
				return err
			}
			ocr, err := vision.NewTitleReader(ocrLang)
			if err != nil {
				return err
			}
			defer ocr.Close()
			detector := vision.NewOpenCVDetector(ocr, log)

			recorder, err := executor.NewRecorder(cfg.Replay)
			if err != nil {
				return err
			}
			defer recorder.Close()
			if id := recorder.RunID(); id != "" {
				log.Info("replay recording enabled", "run_id", id)
			}

			exec := executor.New(cfg, model, capturer, detector,
				input.NewLoggingInput(log), recorder, log)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				exec.Session().Cancel()
			}()

			// Single worker; the signal handler above is the only other
			// party touching the session.
			for i, step := range steps {
				log.Info("executing step", "index", i, "kind", step.Kind, "node", step.NodeID)
				if err := exec.Execute(ctx, step); err != nil {
					return fmt.Errorf("step %d: %w", i, err)
				}
			}
			log.Info("run complete", "steps", len(steps))
			return nil
		},
	}

	cmd.Flags().StringVar(&graphPath, "graph", "", "target graph JSON file")
	cmd.Flags().StringVar(&stepsPath, "steps", "", "step list JSON file")
	cmd.Flags().StringVar(&framePath, "frame", "", "editor frame PNG (file capture adapter)")
	cmd.Flags().StringVar(&ocrLang, "ocr-lang", "eng", "tesseract language for node titles")
	cmd.MarkFlagRequired("graph")
	cmd.MarkFlagRequired("steps")
	cmd.MarkFlagRequired("frame")
	return cmd
}
