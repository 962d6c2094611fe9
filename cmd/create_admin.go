package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var adminFlags struct {
	username string
	password string
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
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

		created, err := a.auth.EnsureAdmin(ctx, adminFlags.username, adminFlags.password)
		if err != nil {
			return err
		}
		if !created {
			return fmt.Errorf("user %q already exists", adminFlags.username)
		}
		cmd.Printf("administrator %s created\n", adminFlags.username)
		return nil
	},
}

func init() {
	createAdminCmd.Flags().StringVar(&adminFlags.username, "username", "", "login name")
	createAdminCmd.Flags().StringVar(&adminFlags.password, "password", "", "password (min 6 characters)")
	createAdminCmd.MarkFlagRequired("username")
	createAdminCmd.MarkFlagRequired("password")
	rootCmd.AddCommand(createAdminCmd)
}
