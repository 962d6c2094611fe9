package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poimap-server/services"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the whole point database as a JSON snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		snap, err := a.admin.Export(services.WithPrincipal(ctx, services.SystemPrincipal))
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return err
		}
		if exportOut == "" || exportOut == "-" {
			_, err = cmd.OutOrStdout().Write(append(data, '\n'))
			return err
		}
		if err := os.WriteFile(exportOut, data, 0o644); err != nil {
			return err
		}
		logger.Info("snapshot written", zap.String("path", exportOut), zap.Int("points", len(snap.Points)))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (stdout when empty)")
	rootCmd.AddCommand(exportCmd)
}
