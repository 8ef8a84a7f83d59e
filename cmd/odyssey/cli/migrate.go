package cli

import (
	"github.com/spf13/cobra"

	"github.com/odyssey-crm/odyssey-crm/internal/app"
	"github.com/odyssey-crm/odyssey-crm/internal/platform/migrate"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			return migrate.Up(cfg.PGDSN, app.NewLogger(cfg))
		},
	}
}
