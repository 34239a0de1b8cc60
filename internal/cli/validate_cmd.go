package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/samijaber1/sitepulse/internal/settings"
)

func newValidateCmd() *cobra.Command {
	var configPaths []string

	cmd := &cobra.Command{
		Use:   "validate [files...]",
		Short: "Validate dashboard settings files",
		RunE: func(cmd *cobra.Command, args []string) error {
			files := append(configPaths, args...)
			if len(files) == 0 {
				return fmt.Errorf("--config flag is required")
			}
			return runValidate(cmd, files)
		},
	}

	cmd.Flags().StringArrayVar(&configPaths, "config", nil, "Settings YAML file (repeatable)")
	return cmd
}

func runValidate(cmd *cobra.Command, files []string) error {
	validator, err := settings.NewValidator()
	if err != nil {
		return fmt.Errorf("failed to initialize validator: %w", err)
	}

	var errors []settings.ValidationError
	for _, file := range files {
		errors = append(errors, validator.ValidateFile(file)...)
	}

	if len(errors) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %d settings file(s) valid\n", len(files))
		return nil
	}

	out := cmd.ErrOrStderr()
	fmt.Fprintf(out, "✗ Validation failed with %d error(s):\n\n", len(errors))
	for _, err := range errors {
		if err.Path != "" {
			fmt.Fprintf(out, "%s: %s: %s\n", filepath.Base(err.File), err.Path, err.Message)
		} else {
			fmt.Fprintf(out, "%s: %s\n", filepath.Base(err.File), err.Message)
		}
	}

	return fmt.Errorf("%d validation error(s)", len(errors))
}
