// Package cli holds the odyssey command tree.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand builds the odyssey command. Without a subcommand it serves
// HTTP.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "odyssey",
		Short:         "Odyssey CRM server and operator tools",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(newServeCommand(), newMigrateCommand(), newJobsCommand())
	return root
}
