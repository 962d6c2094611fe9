package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"poimap-server/models"
	"poimap-server/services"
)

var seedFlags struct {
	file       string
	categories string
	mode       string
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Import a snapshot or point list into the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		var snap models.Snapshot
		if seedFlags.file != "" {
			if snap, err = services.LoadSnapshotFile(seedFlags.file); err != nil {
				return err
			}
		}
		if seedFlags.categories != "" {
			categories, err := services.LoadCategoriesFile(seedFlags.categories)
			if err != nil {
				return err
			}
			snap.Categories = append(categories, snap.Categories...)
		}
		if len(snap.Categories) == 0 && len(snap.Points) == 0 {
			return fmt.Errorf("nothing to import: pass --file or --categories")
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		report, err := a.admin.Import(services.WithPrincipal(ctx, services.SystemPrincipal), snap, services.ImportMode(seedFlags.mode))
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(out))
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedFlags.file, "file", "f", "", "snapshot or point list (JSON)")
	seedCmd.Flags().StringVar(&seedFlags.categories, "categories", "", "categories file (YAML)")
	seedCmd.Flags().StringVar(&seedFlags.mode, "mode", string(services.ImportMerge), "merge or replace")
	rootCmd.AddCommand(seedCmd)
}
