package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/migrations"
)

func newMigrateCommand(opts Options) *cobra.Command {
	var down bool
	var steps int
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 0 {
				return fmt.Errorf("migrate: --steps must not be negative")
			}
			cfg, logger, err := loadRuntime(opts, "migrate")
			if err != nil {
				return err
			}
			dir := migrations.Up
			if down {
				dir = migrations.Down
			}
			version, err := migrations.Run(cfg.PGDSN, dir, steps, logger)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll migrations back instead of applying them")
	cmd.Flags().IntVar(&steps, "steps", 0, "number of migrations to apply (0 = all)")
	return cmd
}
