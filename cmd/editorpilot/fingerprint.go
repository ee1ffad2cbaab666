package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/config"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/graph"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/mapping"
)

func newFingerprintCmd() *cobra.Command {
	var graphPath string

	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Precompute geometric fingerprints for duplicate-title nodes",
		Long: "Computes a neighbor-distance fingerprint per node from the graph layout and " +
			"stores it in the fingerprint cache. During a run the cached fingerprints " +
			"disambiguate nodes that share a title.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			model, err := graph.LoadJSON(graphPath)
			if err != nil {
				return err
			}

			snap := mapping.BuildModelSnapshot(model, cfg.Fingerprint.KNeighbors, cfg.Fingerprint.RoundDigits)
			store := mapping.NewFingerprintStore(cfg.Fingerprint.CacheDir)
			if err := store.Save(model.GraphID, snap); err != nil {
				return err
			}
			fmt.Printf("graph=%s nodes=%d signature=%s\n",
				model.GraphID, len(snap.Items), snap.LayoutSignature[:16])
			return nil
		},
	}

	cmd.Flags().StringVar(&graphPath, "graph", "", "target graph JSON file")
	cmd.MarkFlagRequired("graph")
	return cmd
}
