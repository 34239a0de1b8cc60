package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the top-level "sitepulse" command and registers all
// subcommands.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sitepulse",
		Short:         "Construction progress analytics: validate settings, refresh data, inspect trends",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newValidateCmd(),
		newRefreshCmd(),
		newTrendsCmd(),
	)

	return root
}
